package rtc

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jrockway/nixie-clock/control/mailbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PhaseInterval is the time between phase events.
const PhaseInterval = 250 * time.Millisecond

// maxCatchUp bounds how far behind the phase ticker will replay missed phases.  Anything longer
// than this is a host clock jump, not a scheduling delay.
const maxCatchUp = time.Minute

// Phase identifies a sub-second boundary.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseQuarter
	PhaseHalf
	PhaseThreeQuarter
	PhaseSecond
)

func (p Phase) String() string {
	switch p {
	case PhaseQuarter:
		return "quarter"
	case PhaseHalf:
		return "half"
	case PhaseThreeQuarter:
		return "three-quarter"
	case PhaseSecond:
		return "second"
	}
	return "none"
}

// PhaseAt returns the phase whose boundary is at t.  t should be a multiple of PhaseInterval.
func PhaseAt(t time.Time) Phase {
	switch time.Duration(t.Nanosecond()) / PhaseInterval {
	case 1:
		return PhaseQuarter
	case 2:
		return PhaseHalf
	case 3:
		return PhaseThreeQuarter
	}
	return PhaseSecond
}

var (
	missedPhaseTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_phase_ticks",
		Help: "count of phase boundaries that were replayed late because the ticker was not scheduled in time",
	})

	supersededPhases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phase_events_superseded",
		Help: "count of phase events overwritten before the mode loop picked them up",
	})
)

// Run advances the clock at each quarter-second boundary and posts the phase to out.  A phase the
// consumer has not taken yet is replaced by the newer one; the clock itself never loses a tick to
// a slow consumer.  Cancelling the context causes this to return immediately.
func (tk *TimeKeeper) Run(ctx context.Context, out *mailbox.Slot[Phase]) error {
	last := time.Now().Truncate(PhaseInterval)
	for {
		next := last.Add(PhaseInterval)

		// Wait until the next phase starts.
		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			return fmt.Errorf("waiting for next phase: %w", ctx.Err())
		}

		now := time.Now().Truncate(PhaseInterval)
		if now.Before(next) && next.Sub(now) <= PhaseInterval {
			// Woke up a hair early; wait for the boundary again.
			continue
		}
		if now.Before(next) || now.Sub(next) > maxCatchUp {
			log.Printf("rtc: host clock jumped from %s to %s; resynchronizing phase ticker", next.Format("15:04:05.000"), now.Format("15:04:05.000"))
			last = now
			continue
		}
		for b := next; !b.After(now); b = b.Add(PhaseInterval) {
			if b.Before(now) {
				missedPhaseTicks.Inc()
			}
			p := PhaseAt(b)
			tk.Phase(p)
			if out.Post(p) {
				supersededPhases.Inc()
			}
		}
		last = now
	}
}
