package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

// Period is the debounce tick.
const Period = 32 * time.Millisecond

var readErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "button_read_errors",
	Help: "count of button samples that could not be read and were treated as released",
})

// Reader reads the logical (true = pressed) state of both buttons.
type Reader interface {
	Read() (set, adv bool, err error)
}

// Sampler feeds a Classifier from a Reader.
type Sampler struct {
	Classifier *Classifier
	Reader     Reader
	// Notify is called whenever a classification fires.  It must not block.
	Notify func()
}

// Poll takes one sample.  A failed read counts as both buttons released.
func (s *Sampler) Poll(l trace.EventLog) {
	set, adv, err := s.Reader.Read()
	if err != nil {
		readErrors.Inc()
		if l != nil {
			l.Errorf("read buttons: %v", err)
		}
		set, adv = false, false
	}
	if s.Classifier.Sample(set, adv) && s.Notify != nil {
		s.Notify()
	}
}

// Run samples the buttons every Period until the context is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	l := trace.NewEventLog("buttons", "sampler")
	defer l.Finish()
	t := time.NewTicker(Period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("sampling buttons: %w", ctx.Err())
		case <-t.C:
			s.Poll(l)
		}
	}
}
