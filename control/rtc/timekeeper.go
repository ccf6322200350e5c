package rtc

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WeekSeconds is the number of seconds in a week.  The drift rate is expressed per week, so the
// correction interval is WeekSeconds divided by the rate.
const WeekSeconds = 604800

var (
	driftCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_corrections",
		Help: "count of one-second software drift corrections applied, by direction",
	}, []string{"direction"})

	dstTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dst_transitions",
		Help: "count of daylight saving time adjustments applied, by rule",
	}, []string{"rule"})
)

// Transition describes when a daylight saving change happens: at the start of Hour on the Week'th
// Weekday of Month.
type Transition struct {
	Hour    int
	Weekday int
	Week    int // 1-4
	Month   int
}

// matches reports whether ts is inside the transition's hour on the right day.
func (t Transition) matches(ts Timestamp) bool {
	return ts.Month == t.Month &&
		ts.Weekday == t.Weekday &&
		ts.Hour == t.Hour &&
		ts.Date > (t.Week-1)*7 &&
		ts.Date <= t.Week*7
}

// Rules are the parts of the clock's configuration that affect timekeeping.
type Rules struct {
	DST         bool
	SpringAhead Transition
	FallBack    Transition
	// DriftRate is the signed number of seconds per week to add (positive) or remove
	// (negative).  Zero disables drift correction.
	DriftRate int
}

// DriftThreshold returns how many seconds pass between drift corrections at the given rate, or 0
// if correction is disabled.
func DriftThreshold(rate int) int {
	if rate < 0 {
		rate = -rate
	}
	if rate == 0 {
		return 0
	}
	return WeekSeconds / rate
}

// Field is a timestamp field that can be edited by hand.
type Field int

const (
	FieldSecond Field = iota
	FieldMinute
	FieldHour
	FieldMonth
	FieldDate
	FieldYear
)

func (f Field) String() string {
	switch f {
	case FieldSecond:
		return "second"
	case FieldMinute:
		return "minute"
	case FieldHour:
		return "hour"
	case FieldMonth:
		return "month"
	case FieldDate:
		return "date"
	case FieldYear:
		return "year"
	}
	return "unknown"
}

// Next returns the field that follows f when cycling through fields in set mode.
func (f Field) Next() Field {
	return (f + 1) % (FieldYear + 1)
}

// TimeKeeper owns the current Timestamp.
type TimeKeeper struct {
	mu         sync.Mutex
	now        Timestamp
	rules      Rules
	dstHandled bool

	// Drift accumulator.
	driftCount     int
	driftThreshold int
	driftPending   int
}

// New returns a TimeKeeper starting at the provided time.
func New(start Timestamp) *TimeKeeper {
	start.Weekday = Weekday(start.Year, start.Month, start.Date)
	return &TimeKeeper{now: start}
}

// Now returns a copy of the current timestamp.
func (tk *TimeKeeper) Now() Timestamp {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.now
}

// Set replaces the current time.  Like any manual edit, this restarts drift bookkeeping.
func (tk *TimeKeeper) Set(ts Timestamp) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	ts.Weekday = Weekday(ts.Year, ts.Month, ts.Date)
	tk.now = ts
	tk.driftCount = 0
}

// Configure installs new DST rules and drift rate.  The drift accumulator keeps counting toward the
// new threshold.
func (tk *TimeKeeper) Configure(r Rules) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.rules = r
	tk.driftThreshold = DriftThreshold(r.DriftRate)
}

// Drift returns the drift accumulator's count, threshold, and pending adjustment.
func (tk *TimeKeeper) Drift() (count, threshold, pending int) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.driftCount, tk.driftThreshold, tk.driftPending
}

// Phase does the timekeeping work for one phase event.  It is called by Run, and directly by tests.
func (tk *TimeKeeper) Phase(p Phase) {
	switch p {
	case PhaseSecond:
		tk.tick()
	case PhaseHalf:
		tk.daylightSaving()
	}
}

// AdvanceSecond moves the clock forward by exactly one second, without drift correction.
func (tk *TimeKeeper) AdvanceSecond() {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.advance()
}

func (tk *TimeKeeper) advance() {
	if tk.now.advance() {
		tk.dstHandled = false
	}
}

// tick is the whole-second tick: apply any pending drift correction, advance the clock, and count
// toward the next correction.
func (tk *TimeKeeper) tick() {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	// Corrections never cross a minute boundary; if we're at the edge, wait a second.
	switch {
	case tk.driftPending > 0 && tk.now.Second < 59:
		tk.now.Second++
		tk.driftPending = 0
		driftCorrections.WithLabelValues("add").Inc()
	case tk.driftPending < 0 && tk.now.Second > 0:
		tk.now.Second--
		tk.driftPending = 0
		driftCorrections.WithLabelValues("subtract").Inc()
	}
	tk.advance()

	if tk.driftThreshold == 0 {
		return
	}
	if tk.driftCount++; tk.driftCount > tk.driftThreshold {
		tk.driftCount = 0
		if tk.rules.DriftRate < 0 {
			tk.driftPending = -1
		} else {
			tk.driftPending = 1
		}
	}
}

// daylightSaving applies at most one DST transition per day.  It runs at the half-second phase so
// that it sees second 0 of the transition hour exactly once.
func (tk *TimeKeeper) daylightSaving() {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if !tk.rules.DST || tk.dstHandled || tk.now.Second != 0 {
		return
	}
	switch {
	case tk.rules.SpringAhead.matches(tk.now) && tk.now.Hour < 23:
		tk.now.Hour++
		tk.dstHandled = true
		dstTransitions.WithLabelValues("spring_ahead").Inc()
	case tk.rules.FallBack.matches(tk.now) && tk.now.Hour > 0:
		tk.now.Hour--
		tk.dstHandled = true
		dstTransitions.WithLabelValues("fall_back").Inc()
	}
}

// Edit increments one field the way the set-mode "advance" button does.  Seconds are reset to zero
// rather than incremented.  Editing restarts drift bookkeeping, since the user just told us what
// time it is.
func (tk *TimeKeeper) Edit(f Field) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	ts := &tk.now
	switch f {
	case FieldSecond:
		ts.Second = 0
	case FieldMinute:
		ts.Minute = (ts.Minute + 1) % 60
	case FieldHour:
		ts.Hour = (ts.Hour + 1) % 24
	case FieldMonth:
		if ts.Month++; ts.Month > 12 {
			ts.Month = 1
		}
	case FieldDate:
		if ts.Date++; ts.Date > DaysInMonth(ts.Month, ts.Year) {
			ts.Date = 1
		}
	case FieldYear:
		ts.Year = (ts.Year + 1) % 100
	}
	if max := DaysInMonth(ts.Month, ts.Year); ts.Date > max {
		ts.Date = max
	}
	ts.Weekday = Weekday(ts.Year, ts.Month, ts.Date)
	tk.driftCount = 0
}
