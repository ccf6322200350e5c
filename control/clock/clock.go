// Package clock is the clock's top-level controller.  It consumes phase events, button presses, and
// power edges, decides what mode the clock is in, and tells the display what to show.
package clock

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrockway/nixie-clock/control/buttons"
	"github.com/jrockway/nixie-clock/control/display"
	"github.com/jrockway/nixie-clock/control/mailbox"
	"github.com/jrockway/nixie-clock/control/rtc"
	"github.com/jrockway/nixie-clock/control/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

// Mode is the clock's operating mode.
type Mode int

const (
	Normal Mode = iota
	Set
	Menu
	Date
	Conditioning
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Set:
		return "set"
	case Menu:
		return "menu"
	case Date:
		return "date"
	case Conditioning:
		return "conditioning"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

const (
	// IdleTimeout is how many three-quarter phases without a button press end set or menu
	// mode.
	IdleTimeout = 10

	// patternSeconds is how much of each minute tube conditioning shows the all-digit pattern
	// before showing the time.
	patternSeconds = 57
)

var modeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mode_transitions",
	Help: "count of clock mode changes, by new mode",
}, []string{"to"})

// State is a snapshot of the controller.
type State struct {
	Mode         Mode
	Field        rtc.Field // In Set mode.
	Option       int       // In Menu mode.
	Settings     settings.Settings
	PowerFailing bool
	Idle         int
	Dismissed    bool // Conditioning was cut short for the current window.
	WaitRelease  bool
	NormalColons uint8
	ShowingDate  bool // Periodic date display is active.
}

// Clock is the mode state machine.
type Clock struct {
	// Producers post into these; Run consumes them.
	Phases  *mailbox.Slot[rtc.Phase]
	Buttons *mailbox.Slot[struct{}]
	Power   *mailbox.Slot[bool] // true when supply power is failing

	tk      *rtc.TimeKeeper
	buttons *buttons.Classifier
	disp    *display.Coordinator
	store   settings.Store
	l       trace.EventLog

	mu          sync.Mutex
	settings    settings.Settings
	lastGood    settings.Settings
	mode        Mode
	field       rtc.Field
	option      int
	idle        int
	colons      uint8
	showingDate bool
	dismissed   bool
	waitRelease bool
	failing     bool
}

// New returns a Clock in normal mode running with the provided settings, which should come from
// settings.Load.
func New(tk *rtc.TimeKeeper, cl *buttons.Classifier, disp *display.Coordinator, store settings.Store, s settings.Settings) *Clock {
	c := &Clock{
		Phases:   mailbox.New[rtc.Phase](),
		Buttons:  mailbox.New[struct{}](),
		Power:    mailbox.New[bool](),
		tk:       tk,
		buttons:  cl,
		disp:     disp,
		store:    store,
		l:        trace.NewEventLog("clock", "modes"),
		settings: s,
		lastGood: s,
	}
	c.apply()
	c.enterNormal()
	return c
}

// Close finishes the event log.
func (c *Clock) Close() {
	c.l.Finish()
}

// State returns a snapshot of the controller.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Mode:         c.mode,
		Field:        c.field,
		Option:       c.option,
		Settings:     c.settings,
		PowerFailing: c.failing,
		Idle:         c.idle,
		Dismissed:    c.dismissed,
		WaitRelease:  c.waitRelease,
		NormalColons: c.colons,
		ShowingDate:  c.showingDate,
	}
}

// Run consumes events until the context is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running clock: %w", ctx.Err())
		case <-c.Power.C():
			if failing, ok := c.Power.Take(); ok {
				c.HandlePower(failing)
			}
		case <-c.Phases.C():
			if p, ok := c.Phases.Take(); ok {
				c.HandlePhase(p)
			}
		case <-c.Buttons.C():
			c.Buttons.Take()
			c.Step()
		}
	}
}

// apply pushes the derived values of the current settings to the timekeeper and display.
func (c *Clock) apply() {
	c.tk.Configure(c.settings.DriftRules())
	c.disp.SetDutyCycle(c.settings.Brightness)
}

func (c *Clock) setMode(m Mode) {
	if c.mode != m {
		c.l.Printf("%v -> %v", c.mode, m)
		modeTransitions.WithLabelValues(m.String()).Inc()
	}
	c.mode = m
	c.idle = 0
}

// takeover puts the display under direct control at full brightness.
func (c *Clock) takeover() {
	c.disp.SetOverride(true)
	c.disp.SetCrossfade(false, c.settings.CrossfadeStep)
	c.disp.SetSuppress(0)
	c.disp.Pause()
}

func (c *Clock) enterNormal() {
	c.setMode(Normal)
	c.disp.SetOverride(false)
	c.disp.SetCrossfade(c.settings.Crossfade, c.settings.CrossfadeStep)
	c.showNormal(c.tk.Now())
	if c.disp.Paused() {
		c.disp.Resume()
	}
}

func (c *Clock) enterSet() {
	c.setMode(Set)
	c.field = rtc.FieldSecond
	c.waitRelease = true
	c.takeover()
	c.showSet()
}

func (c *Clock) enterMenu() {
	c.setMode(Menu)
	c.option = 1
	c.waitRelease = true
	c.takeover()
	c.showMenu()
}

func (c *Clock) enterDate() {
	c.setMode(Date)
	c.waitRelease = true
	c.disp.SetSuppress(0)
	c.showDate(c.tk.Now())
}

func (c *Clock) enterConditioning() {
	c.setMode(Conditioning)
	c.takeover()
	c.showConditioning(c.tk.Now())
}

// twelveHour converts an hour to what a 12-hour clock shows.
func twelveHour(h int) int {
	if h %= 12; h == 0 {
		return 12
	}
	return h
}

func (c *Clock) displayHour(h int) uint8 {
	if c.settings.Display24Hour {
		return uint8(h)
	}
	return uint8(twelveHour(h))
}

func dateGroups(now rtc.Timestamp) [3]uint8 {
	return [3]uint8{uint8(now.Month), uint8(now.Date), uint8(now.Year)}
}

func (c *Clock) timeGroups(now rtc.Timestamp) [3]uint8 {
	return [3]uint8{c.displayHour(now.Hour), uint8(now.Minute), uint8(now.Second)}
}

// showNormal starts a fade to the current time, or the date during the periodic date display.
func (c *Clock) showNormal(now rtc.Timestamp) {
	groups := c.timeGroups(now)
	colons := c.colons
	c.showingDate = c.settings.ShowsDate(now.Second)
	if c.showingDate {
		groups = dateGroups(now)
		switch c.settings.DateColonMode {
		case settings.DateColonsOn:
			colons = display.BothColons
		case settings.DateColonsOff:
			colons = 0
		}
	}
	var suppress uint8
	if c.settings.LeadingZeroBlank && groups[0] < 10 {
		suppress = display.HoursTen
	}
	c.disp.SetSuppress(suppress)
	c.disp.SetDigits(groups, colons)
}

// secondColons updates the colons at the start of a second in normal mode.
func (c *Clock) secondColons(now rtc.Timestamp) {
	switch c.settings.ColonMode {
	case settings.ColonsOff, settings.ColonsBlinkHalf:
		c.colons = 0
	case settings.ColonsToggle:
		c.colons ^= display.BothColons
	case settings.ColonsAMPM:
		if now.Hour > 11 {
			c.colons = display.BothColons
		} else {
			c.colons = 0
		}
	case settings.ColonsOn:
		c.colons = display.BothColons
	}
}

// fieldGroup returns the digit group that shows a set-mode field.
func fieldGroup(f rtc.Field) uint8 {
	switch f {
	case rtc.FieldSecond, rtc.FieldYear:
		return display.Seconds
	case rtc.FieldMinute, rtc.FieldDate:
		return display.Minutes
	}
	return display.Hours
}

func dateField(f rtc.Field) bool {
	return f == rtc.FieldMonth || f == rtc.FieldDate || f == rtc.FieldYear
}

// showSet draws the time or date being set, with nothing blanked.
func (c *Clock) showSet() {
	now := c.tk.Now()
	var colons uint8
	groups := c.timeGroups(now)
	switch {
	case dateField(c.field):
		groups = dateGroups(now)
		colons = display.BothColons
	case now.Hour > 11 && !c.settings.Display24Hour:
		colons = display.LeftColon
	}
	c.disp.SetDigits(groups, colons)
	c.disp.Show()
}

// showMenu draws the current option and its value, blanking unused leading digits.
func (c *Clock) showMenu() {
	hi, lo, colons := settings.Read(c.option, c.settings, c.tk.Now().Weekday)
	c.disp.SetDigits([3]uint8{uint8(c.option), hi, lo}, colons)
	c.disp.Show()
	switch {
	case hi == 0:
		c.disp.Blank(display.Minutes)
	case hi < 10:
		c.disp.Blank(display.MinutesTen)
	}
}

func (c *Clock) showDate(now rtc.Timestamp) {
	colons := c.colons
	switch c.settings.DateColonMode {
	case settings.DateColonsOn:
		colons = display.BothColons
	case settings.DateColonsOff:
		colons = 0
	}
	c.disp.SetDigits(dateGroups(now), colons)
}

// showConditioning cycles every cathode of every tube through the hour, showing the time for the
// last few seconds of each minute.
func (c *Clock) showConditioning(now rtc.Timestamp) {
	if now.Second < patternSeconds {
		d := uint8(now.Minute / 6)
		d = d*10 + d
		c.disp.SetDigits([3]uint8{d, d, d}, display.BothColons)
	} else {
		c.disp.SetDigits(c.timeGroups(now), 0)
	}
	c.disp.Show()
}

// HandlePhase does the per-phase housekeeping of the current mode and then steps the state
// machine.
func (c *Clock) HandlePhase(p rtc.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return
	}
	now := c.tk.Now()
	switch c.mode {
	case Normal:
		switch p {
		case rtc.PhaseHalf:
			if c.settings.ColonMode == settings.ColonsBlinkHalf {
				c.colons = display.BothColons
				if !c.showingDate {
					c.disp.SetColons(c.colons)
				}
			}
		case rtc.PhaseSecond:
			c.secondColons(now)
			c.showNormal(now)
		}
	case Set:
		switch p {
		case rtc.PhaseQuarter, rtc.PhaseThreeQuarter:
			c.showSet()
		case rtc.PhaseHalf:
			c.disp.Blank(fieldGroup(c.field))
		case rtc.PhaseSecond:
			c.showSet()
			c.disp.Blank(fieldGroup(c.field))
		}
	case Menu:
		if p == rtc.PhaseSecond {
			c.showMenu()
		}
	case Date:
		if p == rtc.PhaseSecond {
			c.showDate(now)
		}
	case Conditioning:
		if p == rtc.PhaseSecond {
			c.showConditioning(now)
		}
	}
	if p == rtc.PhaseThreeQuarter && (c.mode == Set || c.mode == Menu) && c.idle < IdleTimeout {
		c.idle++
	}
	c.step(p == rtc.PhaseHalf)
}

// Step acts on the current button classifications.
func (c *Clock) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step(false)
}

// step acts on the buttons.  half is set when it runs for a half-second phase, the only time a held
// advance button repeats in the menu.
func (c *Clock) step(half bool) {
	if c.failing {
		return
	}
	if c.waitRelease {
		if !c.buttons.Idle() {
			return
		}
		c.waitRelease = false
	}
	switch c.mode {
	case Normal:
		c.stepNormal()
	case Set:
		c.stepSet()
	case Menu:
		c.stepMenu(half)
	case Date:
		c.stepDate()
	case Conditioning:
		c.stepConditioning()
	}
}

func (c *Clock) stepNormal() {
	set, adv := c.buttons.Press(buttons.Set), c.buttons.Press(buttons.Adv)
	switch {
	case set == buttons.LongPress && adv == buttons.LongPress:
		c.buttons.Consume(buttons.Set)
		c.buttons.Consume(buttons.Adv)
		c.enterMenu()
		return
	case set == buttons.LongPress && !c.buttons.Held(buttons.Adv):
		c.buttons.Consume(buttons.Set)
		c.enterSet()
		return
	case adv == buttons.LongPress && !c.buttons.Held(buttons.Set):
		c.buttons.Consume(buttons.Adv)
		c.enterDate()
		return
	}

	hour := c.tk.Now().Hour
	if !c.settings.InConditioningWindow(hour) {
		c.dismissed = false
		return
	}
	if !c.dismissed && c.buttons.Idle() {
		c.enterConditioning()
	}
}

func (c *Clock) stepSet() {
	switch {
	case c.buttons.Press(buttons.Set) == buttons.ShortPress:
		c.buttons.Consume(buttons.Set)
		c.idle = 0
		c.field = c.field.Next()
		c.showSet()
		c.disp.Blank(fieldGroup(c.field))
	case c.buttons.Press(buttons.Adv) == buttons.ShortPress:
		c.buttons.Consume(buttons.Adv)
		c.idle = 0
		c.tk.Edit(c.field)
		c.showSet()
	case c.buttons.Press(buttons.Adv) == buttons.ContinuedPress:
		c.buttons.Repeat(buttons.Adv)
		c.idle = 0
		c.tk.Edit(c.field)
		c.showSet()
	}
	if c.idle >= IdleTimeout {
		c.l.Printf("set mode timed out at %v", c.tk.Now())
		c.enterNormal()
	}
}

func (c *Clock) stepMenu(half bool) {
	switch {
	case c.buttons.Press(buttons.Set) == buttons.ShortPress:
		c.buttons.Consume(buttons.Set)
		c.idle = 0
		c.option = c.option%settings.Options + 1
		c.showMenu()
	case c.buttons.Press(buttons.Adv) == buttons.ShortPress:
		c.buttons.Consume(buttons.Adv)
		c.idle = 0
		settings.Increment(c.option, &c.settings, false)
		c.showMenu()
	case half && c.buttons.Press(buttons.Adv) == buttons.ContinuedPress:
		c.buttons.Repeat(buttons.Adv)
		c.idle = 0
		settings.Increment(c.option, &c.settings, true)
		c.showMenu()
	}
	if c.idle >= IdleTimeout {
		c.commit()
		c.enterNormal()
	}
}

// commit stores the settings edited in the menu.  If they cannot be stored, the clock goes back to
// running on the last settings that were.
func (c *Clock) commit() {
	next, err := settings.Commit(c.store, c.settings, c.lastGood)
	if err != nil {
		c.l.Errorf("%v", err)
	} else {
		c.l.Printf("settings committed")
	}
	c.settings = next
	c.lastGood = next
	c.apply()
}

func (c *Clock) stepDate() {
	set, adv := c.buttons.Press(buttons.Set), c.buttons.Press(buttons.Adv)
	if set != buttons.ShortPress && adv != buttons.ShortPress {
		return
	}
	c.buttons.Consume(buttons.Set)
	c.buttons.Consume(buttons.Adv)
	c.enterNormal()
}

func (c *Clock) stepConditioning() {
	if !c.buttons.Idle() {
		c.l.Printf("conditioning dismissed")
		c.dismissed = true
		c.waitRelease = true
		c.enterNormal()
		return
	}
	if !c.settings.InConditioningWindow(c.tk.Now().Hour) {
		c.enterNormal()
	}
}

// HandlePower reacts to a power edge.  While power is failing the tubes are dark and buttons are
// ignored, but the time keeps running.  When power returns, the settings are reloaded and the clock
// starts over in normal mode.
func (c *Clock) HandlePower(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failing == c.failing {
		return
	}
	c.failing = failing
	if failing {
		c.l.Printf("power failing")
		c.buttons.Suspend()
		c.disp.Pause()
		c.disp.Blank(display.All)
		return
	}

	c.l.Printf("power restored")
	s, err := settings.Load(c.store)
	if err != nil {
		c.l.Errorf("load settings: %v", err)
	}
	c.settings = s
	c.lastGood = s
	c.apply()
	c.dismissed = false
	c.waitRelease = false
	c.enterNormal()
	c.buttons.Resume()
}
