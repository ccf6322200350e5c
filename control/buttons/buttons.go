// Package buttons turns raw button samples into press classifications.  Each button has a counter
// that increments on every sample while the button is held; crossing a threshold classifies the
// press as short, long, or continued.
package buttons

import (
	"fmt"
	"sync"
)

// Sample thresholds, in ticks of Period.
const (
	ShortThreshold     = 4
	LongThreshold      = 56
	ContinuedThreshold = 64

	// repeatCounter is where Repeat parks the counter, so that the next continued press fires
	// a few ticks later.
	repeatCounter = ContinuedThreshold - 5
)

// Button identifies one of the two front-panel buttons.
type Button int

const (
	Set Button = iota
	Adv
)

func (b Button) String() string {
	switch b {
	case Set:
		return "set"
	case Adv:
		return "adv"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// Press is a press classification.
type Press int

const (
	NotPressed Press = iota
	ShortPress
	LongPress
	ContinuedPress
)

func (p Press) String() string {
	switch p {
	case NotPressed:
		return "not pressed"
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	case ContinuedPress:
		return "continued"
	}
	return fmt.Sprintf("press(%d)", int(p))
}

// State is the classifier state of a single button.
type State struct {
	Counter int
	Press   Press
}

// sample updates the state for one tick and reports whether a classification fired.
func (s *State) sample(held bool) bool {
	if !held {
		changed := s.Press != NotPressed
		s.Counter = 0
		s.Press = NotPressed
		return changed
	}
	s.Counter++
	switch {
	case s.Counter >= ContinuedThreshold:
		s.Press = ContinuedPress
		s.Counter = LongThreshold + 1
		return true
	case s.Counter == LongThreshold:
		s.Press = LongPress
		return true
	case s.Counter == ShortThreshold:
		s.Press = ShortPress
		return true
	}
	// A continued press is a level; report it every tick so the consumer keeps repeating.
	return s.Press == ContinuedPress
}

// Classifier holds the state of both buttons.  Sample is called by the sampling tick; everything
// else is called by the consumer.
type Classifier struct {
	mu        sync.Mutex
	states    [2]State
	suspended bool
}

// Sample records one tick's worth of electrical state and reports whether either button's
// classification fired.
func (c *Classifier) Sample(set, adv bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suspended {
		return false
	}
	a := c.states[Set].sample(set)
	b := c.states[Adv].sample(adv)
	return a || b
}

// State returns a copy of a button's state.
func (c *Classifier) State(b Button) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[b]
}

// Press returns a button's current classification.
func (c *Classifier) Press(b Button) Press {
	return c.State(b).Press
}

// Held reports whether the button is physically down.
func (c *Classifier) Held(b Button) bool {
	return c.State(b).Counter > 0
}

// Idle reports whether both buttons are released.
func (c *Classifier) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[Set].Counter == 0 && c.states[Adv].Counter == 0
}

// Consume clears a button's classification after the consumer has acted on it.  The counter keeps
// running, so a short or long press cannot fire again until the button is released.
func (c *Classifier) Consume(b Button) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[b].Press = NotPressed
}

// Repeat consumes a continued press and winds the counter back so that another continued press
// fires a few ticks from now.
func (c *Classifier) Repeat(b Button) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[b].Press = NotPressed
	c.states[b].Counter = repeatCounter
}

// Suspend stops classification and forgets any press in progress.
func (c *Classifier) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = true
	c.states = [2]State{}
}

// Resume restarts classification from a clean state.
func (c *Classifier) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = false
	c.states = [2]State{}
}
