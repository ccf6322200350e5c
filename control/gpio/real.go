//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the buttons from the GPIO character device.
type RealReader struct {
	chip   *gpiocdev.Chip
	setPin *gpiocdev.Line
	advPin *gpiocdev.Line
}

// NewRealReader requests the two button lines as active-low inputs with pull-ups.
func NewRealReader(chipName string, pinSet, pinAdv int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %q: %w", chipName, err)
	}

	setLine, err := chip.RequestLine(pinSet, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request set pin %d: %w", pinSet, err)
	}

	advLine, err := chip.RequestLine(pinAdv, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		setLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request adv pin %d: %w", pinAdv, err)
	}

	return &RealReader{chip: chip, setPin: setLine, advPin: advLine}, nil
}

// Read returns the logical button states.  The lines are requested active-low, so 1 means pressed.
func (r *RealReader) Read() (bool, bool, error) {
	set, err := r.setPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read set pin: %w", err)
	}
	adv, err := r.advPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read adv pin: %w", err)
	}
	return set == 1, adv == 1, nil
}

// Close releases the lines and the chip.
func (r *RealReader) Close() error {
	var errs []error
	if r.setPin != nil {
		if err := r.setPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close set pin: %w", err))
		}
	}
	if r.advPin != nil {
		if err := r.advPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close adv pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// PowerWatcher reports edges on the power-fail sense line.
type PowerWatcher struct {
	line *gpiocdev.Line
}

// WatchPower requests the power-fail sense line and calls notify on every edge.  The line reads
// high while supply power is good, so a falling edge means the supply is failing.  notify is also
// called once with the current state before WatchPower returns.  notify runs on the gpiocdev event
// goroutine and must not block.
func WatchPower(chipName string, offset int, notify func(failing bool)) (*PowerWatcher, error) {
	handler := func(evt gpiocdev.LineEvent) {
		notify(evt.Type == gpiocdev.LineEventFallingEdge)
	}
	line, err := gpiocdev.RequestLine(chipName, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("request power sense pin %d: %w", offset, err)
	}
	v, err := line.Value()
	if err != nil {
		line.Close()
		return nil, fmt.Errorf("read power sense pin: %w", err)
	}
	notify(v == 0)
	return &PowerWatcher{line: line}, nil
}

// Close stops watching.
func (w *PowerWatcher) Close() error {
	if err := w.line.Close(); err != nil {
		return fmt.Errorf("close power sense pin: %w", err)
	}
	return nil
}
