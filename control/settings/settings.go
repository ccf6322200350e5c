// Package settings holds the clock's user configuration, the menu that edits it, and the policy
// for keeping it in durable storage.
package settings

import (
	"github.com/jrockway/nixie-clock/control/display"
	"github.com/jrockway/nixie-clock/control/rtc"
)

// Marker identifies an initialized settings record.
const Marker = 0xA5

// Colon modes.
const (
	ColonsOff = iota
	ColonsBlinkHalf
	ColonsToggle
	ColonsAMPM
	ColonsOn
)

// Colon modes while the date is shown.
const (
	DateColonsOff = iota
	DateColonsOn
	DateColonsUnchanged
)

// Transition is a DST rule as stored.
type Transition struct {
	Hour    int `json:"hour"`
	Weekday int `json:"weekday"`
	Week    int `json:"week"`
	Month   int `json:"month"`
}

// Settings is the user configuration.
type Settings struct {
	Display24Hour     bool       `json:"display_24hr"`
	LeadingZeroBlank  bool       `json:"leading_zero_blank"`
	Crossfade         bool       `json:"crossfade"`
	CrossfadeStep     int        `json:"crossfade_step"`
	ColonMode         int        `json:"colon_mode"`
	DateColonMode     int        `json:"date_colon_mode"`
	DisplayDate       bool       `json:"display_date"`
	DateAtSecond      int        `json:"date_at_second"`
	DateDuration      int        `json:"date_duration"`
	Brightness        int        `json:"brightness"`
	Conditioning      bool       `json:"conditioning"`
	ConditioningStart int        `json:"conditioning_start_hour"`
	ConditioningHours int        `json:"conditioning_hours"`
	DST               bool       `json:"dst"`
	SpringAhead       Transition `json:"spring_ahead"`
	FallBack          Transition `json:"fall_back"`
	PWMFrequency      int        `json:"pwm_frequency"`
	DriftRate         int        `json:"drift_rate"`
	Marker            uint8      `json:"marker"`
}

// Defaults is the record written to an uninitialized store.  DST defaults to the US rules:
// second Sunday of March and first Sunday of November, both at 2AM.
var Defaults = Settings{
	Display24Hour:     false,
	LeadingZeroBlank:  false,
	Crossfade:         true,
	CrossfadeStep:     3,
	ColonMode:         ColonsToggle,
	DateColonMode:     DateColonsOn,
	DisplayDate:       true,
	DateAtSecond:      40,
	DateDuration:      1,
	Brightness:        100,
	Conditioning:      true,
	ConditioningStart: 3,
	ConditioningHours: 1,
	DST:               true,
	SpringAhead:       Transition{Hour: 2, Weekday: 0, Week: 2, Month: 3},
	FallBack:          Transition{Hour: 2, Weekday: 0, Week: 1, Month: 11},
	PWMFrequency:      0xFF,
	DriftRate:         194,
	Marker:            Marker,
}

// Valid reports whether the record carries the marker.
func (s Settings) Valid() bool {
	return s.Marker == Marker
}

// DutyCycle returns the display duty value for the configured brightness.
func (s Settings) DutyCycle() uint8 {
	return display.DutyFor(s.Brightness)
}

// DriftRules returns the timekeeping rules.
func (s Settings) DriftRules() rtc.Rules {
	return rtc.Rules{
		DST:         s.DST,
		SpringAhead: rtc.Transition(s.SpringAhead),
		FallBack:    rtc.Transition(s.FallBack),
		DriftRate:   s.DriftRate,
	}
}

// InConditioningWindow reports whether hour is inside the tube conditioning window.  The window may
// wrap past midnight.
func (s Settings) InConditioningWindow(hour int) bool {
	if !s.Conditioning || s.ConditioningHours <= 0 {
		return false
	}
	return (hour-s.ConditioningStart+24)%24 < s.ConditioningHours
}

// ShowsDate reports whether the periodic date display is active at second.
func (s Settings) ShowsDate(second int) bool {
	return s.DisplayDate && second >= s.DateAtSecond && second < s.DateAtSecond+s.DateDuration
}
