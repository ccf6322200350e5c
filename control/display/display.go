// Package display paces what the tubes show.  One sub-tick counter, running from 0 to 255, is
// shared between two activities: the fade, which moves the point in each period where the new
// digits replace the old ones, and the brightness PWM, which blanks the tubes for the rest of the
// period once the duty value is reached.
package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

// Blank masks.  Bits 0-5 are tubes, right to left; 6 is the right colon and 7 the left colon.
const (
	Seconds    uint8 = 0b00000011
	Minutes    uint8 = 0b00001100
	MinutesTen uint8 = 0b00001000
	Hours      uint8 = 0b00110000
	HoursTen   uint8 = 0b00100000
	Colons     uint8 = 0b11000000
	All        uint8 = 0b11111111
)

// Colon bits, as passed to Render.
const (
	RightColon uint8 = 1 << 0
	LeftColon  uint8 = 1 << 1
	BothColons       = RightColon | LeftColon
)

const (
	// MaxDuty is the duty value at 100% brightness, and the value used while the override is
	// on.
	MaxDuty = 240

	// period is the value at which the sub-tick counter wraps.
	period = 255

	// SubtickInterval is how often Subtick should be called to get a flicker-free ~120Hz PWM.
	SubtickInterval = 32 * time.Microsecond
)

var dutyTable = [10]uint8{10, 35, 60, 85, 110, 135, 160, 185, 210, 240}

var dutyGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "display_duty_cycle",
	Help: "configured brightness duty value, out of 255",
})

// DutyFor maps a brightness percentage (10, 20, ... 100) to a duty value.  Anything else is full
// brightness.
func DutyFor(pct int) uint8 {
	if pct < 10 || pct > 100 || pct%10 != 0 {
		return MaxDuty
	}
	return dutyTable[pct/10-1]
}

// Encoder turns digits into tube states.  Implementations must be cheap and idempotent; they are
// called several times per sub-tick period.
type Encoder interface {
	// Render shows three two-digit groups (hours, minutes, seconds) and the colons.
	Render(groups [3]uint8, colons uint8)
	// Blank darkens the tubes selected by mask.
	Blank(mask uint8)
}

// Buffer is the state of the crossfade.
type Buffer struct {
	Old, New [3]uint8
	Colons   uint8
	// Fade is the sub-tick position where New replaces Old.
	Fade int
}

// Coordinator owns the display buffers.  Subtick is called by the sub-tick driver; everything
// else is called by the mode state machine.
type Coordinator struct {
	mu  sync.Mutex
	enc Encoder
	buf Buffer

	duty      uint8
	override  bool
	crossfade bool
	step      int
	suppress  uint8
	paused    bool

	counter  int
	compareB int
}

// NewCoordinator returns a Coordinator at full brightness with crossfade disabled.
func NewCoordinator(enc Encoder) *Coordinator {
	dutyGauge.Set(MaxDuty)
	return &Coordinator{
		enc:      enc,
		duty:     MaxDuty,
		step:     1,
		compareB: MaxDuty,
		buf:      Buffer{Fade: MaxDuty},
	}
}

func (c *Coordinator) effectiveDuty() int {
	if c.override {
		return MaxDuty
	}
	return int(c.duty)
}

// clampFade keeps the fade position inside the lit part of the period.
func (c *Coordinator) clampFade() {
	if d := c.effectiveDuty(); c.buf.Fade > d {
		c.buf.Fade = d
	}
}

func (c *Coordinator) render(groups [3]uint8) {
	c.enc.Render(groups, c.buf.Colons)
	if c.suppress != 0 {
		c.enc.Blank(c.suppress)
	}
}

// SetDigits replaces the new buffer and restarts the fade.
func (c *Coordinator) SetDigits(groups [3]uint8, colons uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.New = groups
	c.buf.Colons = colons
	c.buf.Fade = c.effectiveDuty()
}

// SetColons changes the colons without restarting the fade.
func (c *Coordinator) SetColons(colons uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Colons = colons
}

// Blank darkens the tubes in mask immediately.  They stay dark until the next render.
func (c *Coordinator) Blank(mask uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enc.Blank(mask)
}

// SetDutyCycle sets the brightness from a percentage.  It takes effect at the start of the next
// period.
func (c *Coordinator) SetDutyCycle(pct int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duty = DutyFor(pct)
	c.clampFade()
	dutyGauge.Set(float64(c.duty))
}

// SetOverride pins the display to full brightness.
func (c *Coordinator) SetOverride(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = on
	c.clampFade()
}

// SetCrossfade configures fading.  step is clamped to 1-10.
func (c *Coordinator) SetCrossfade(enabled bool, step int) {
	if step < 1 {
		step = 1
	}
	if step > 10 {
		step = 10
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crossfade = enabled
	c.step = step
}

// SetSuppress sets tubes that are blanked after every render, like a leading zero.
func (c *Coordinator) SetSuppress(mask uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppress = mask
}

// Pause stops Subtick from touching the tubes, so the caller can drive them directly with Show and
// Blank.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume restarts pacing from the beginning of a period, showing the old buffer.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.counter = 0
	c.compareB = c.effectiveDuty()
	c.render(c.buf.Old)
}

// Paused reports whether the coordinator is paused.
func (c *Coordinator) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Show renders the new buffer immediately.
func (c *Coordinator) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render(c.buf.New)
}

// Snapshot returns a copy of the buffers.
func (c *Coordinator) Snapshot() Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// FadeTick renders the new digits and moves the fade one step along.  When the fade is done, or
// crossfade is off, the old buffer catches up to the new one.
func (c *Coordinator) FadeTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fadeTick()
}

func (c *Coordinator) fadeTick() {
	c.render(c.buf.New)
	if c.crossfade && !c.override && c.buf.Fade-c.step > 0 {
		c.buf.Fade -= c.step
		return
	}
	c.buf.Old = c.buf.New
}

// Subtick advances the sub-tick counter by one.
func (c *Coordinator) Subtick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.counter++
	if c.counter == c.buf.Fade {
		c.fadeTick()
	}
	if c.counter != c.compareB {
		return
	}
	if c.compareB != period {
		c.enc.Blank(All)
		c.compareB = period
		return
	}
	c.render(c.buf.Old)
	c.counter = 0
	c.compareB = c.effectiveDuty()
}

// Run calls Subtick every interval until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	l := trace.NewEventLog("display", "coordinator")
	defer l.Finish()
	l.Printf("pacing display every %v", interval)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pacing display: %w", ctx.Err())
		case <-t.C:
			c.Subtick()
		}
	}
}
