// Package mailbox implements a single-slot mailbox.  A producer posts values without ever blocking,
// and a newer value replaces one that the consumer has not picked up yet.  This is the right shape
// for periodic housekeeping events, where only the latest one matters.
package mailbox

import "sync"

// Slot holds at most one undelivered value.
type Slot[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	ch      chan struct{}
}

// New returns an empty Slot.
func New[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan struct{}, 1)}
}

// Post stores v, replacing any value that has not been taken yet.  It returns true if an earlier
// value was replaced.
func (s *Slot[T]) Post(v T) bool {
	s.mu.Lock()
	superseded := s.pending
	s.value = v
	s.pending = true
	s.mu.Unlock()
	select {
	case s.ch <- struct{}{}:
	default:
	}
	return superseded
}

// C returns a channel that receives after a Post.  Receiving from it does not consume the value;
// call Take for that.
func (s *Slot[T]) C() <-chan struct{} {
	return s.ch
}

// Take returns the pending value and empties the slot.  ok is false if the slot was empty.
func (s *Slot[T]) Take() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return v, false
	}
	v, s.value = s.value, v
	s.pending = false
	return v, true
}
