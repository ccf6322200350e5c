package settings

import "github.com/jrockway/nixie-clock/control/display"

// Options is the number of menu options.  Options are numbered from 1.
const Options = 25

// Menu options that cannot be changed.
const (
	OptionPWMFrequency = 23
	OptionDriftRate    = 24
	OptionWeekday      = 25
)

// maxDrift bounds the drift rate, in seconds per week.
const maxDrift = 325

// ReadOnly reports whether an option only displays a value.
func ReadOnly(option int) bool {
	return option == OptionPWMFrequency || option == OptionWeekday
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Read returns how a menu option is shown: the high and low two-digit groups of the value, and the
// colons.  The drift rate shows its sign on the colons (right for positive, both for negative).
// weekday is the current day of the week, shown by the last option.
func Read(option int, s Settings, weekday int) (hi, lo, colons uint8) {
	split := func(v int) (uint8, uint8) {
		return uint8(v / 100), uint8(v % 100)
	}
	switch option {
	case 1:
		if s.Display24Hour {
			return 0, 24, 0
		}
		return 0, 12, 0
	case 2:
		return 0, flag(s.LeadingZeroBlank), 0
	case 3:
		return 0, flag(s.Crossfade), 0
	case 4:
		return 0, uint8(s.CrossfadeStep), 0
	case 5:
		return 0, uint8(s.ColonMode), 0
	case 6:
		return 0, uint8(s.DateColonMode), 0
	case 7:
		return 0, flag(s.DisplayDate), 0
	case 8:
		return 0, uint8(s.DateAtSecond), 0
	case 9:
		return 0, uint8(s.DateDuration), 0
	case 10:
		hi, lo = split(s.Brightness)
		return hi, lo, 0
	case 11:
		return 0, flag(s.Conditioning), 0
	case 12:
		return 0, uint8(s.ConditioningStart), 0
	case 13:
		return 0, uint8(s.ConditioningHours), 0
	case 14:
		return 0, flag(s.DST), 0
	case 15:
		return 0, uint8(s.SpringAhead.Hour), 0
	case 16:
		return 0, uint8(s.SpringAhead.Weekday), 0
	case 17:
		return 0, uint8(s.SpringAhead.Week), 0
	case 18:
		return 0, uint8(s.SpringAhead.Month), 0
	case 19:
		return 0, uint8(s.FallBack.Hour), 0
	case 20:
		return 0, uint8(s.FallBack.Weekday), 0
	case 21:
		return 0, uint8(s.FallBack.Week), 0
	case 22:
		return 0, uint8(s.FallBack.Month), 0
	case OptionPWMFrequency:
		hi, lo = split(s.PWMFrequency)
		return hi, lo, 0
	case OptionDriftRate:
		if s.DriftRate < 0 {
			hi, lo = split(-s.DriftRate)
			return hi, lo, display.BothColons
		}
		hi, lo = split(s.DriftRate)
		return hi, lo, display.RightColon
	case OptionWeekday:
		return 0, uint8(weekday), 0
	}
	return 0, 0, 0
}

// wrap increments v, going back to lo once it passes hi.
func wrap(v, lo, hi int) int {
	if v++; v > hi {
		return lo
	}
	return v
}

func toggle(b bool) bool { return !b }

// Increment advances a menu option's value by one step, wrapping within the option's range.  fast
// is set while the button is held down; it makes the drift rate move by 10 instead of 1.
func Increment(option int, s *Settings, fast bool) {
	switch option {
	case 1:
		s.Display24Hour = toggle(s.Display24Hour)
	case 2:
		s.LeadingZeroBlank = toggle(s.LeadingZeroBlank)
	case 3:
		s.Crossfade = toggle(s.Crossfade)
	case 4:
		s.CrossfadeStep = wrap(s.CrossfadeStep, 1, 10)
	case 5:
		s.ColonMode = wrap(s.ColonMode, ColonsOff, ColonsOn)
	case 6:
		s.DateColonMode = wrap(s.DateColonMode, DateColonsOff, DateColonsUnchanged)
	case 7:
		s.DisplayDate = toggle(s.DisplayDate)
	case 8:
		if s.DateAtSecond < 50 {
			s.DateAtSecond += 10
		} else {
			s.DateAtSecond = 0
		}
	case 9:
		s.DateDuration = wrap(s.DateDuration, 1, 10)
	case 10:
		if s.Brightness < 100 {
			s.Brightness += 10
		} else {
			s.Brightness = 10
		}
	case 11:
		s.Conditioning = toggle(s.Conditioning)
	case 12:
		s.ConditioningStart = wrap(s.ConditioningStart, 0, 23)
	case 13:
		s.ConditioningHours = wrap(s.ConditioningHours, 1, 12)
	case 14:
		s.DST = toggle(s.DST)
	case 15:
		s.SpringAhead.Hour = wrap(s.SpringAhead.Hour, 1, 22)
	case 16:
		s.SpringAhead.Weekday = wrap(s.SpringAhead.Weekday, 0, 6)
	case 17:
		s.SpringAhead.Week = wrap(s.SpringAhead.Week, 1, 4)
	case 18:
		s.SpringAhead.Month = wrap(s.SpringAhead.Month, 1, 12)
	case 19:
		s.FallBack.Hour = wrap(s.FallBack.Hour, 1, 22)
	case 20:
		s.FallBack.Weekday = wrap(s.FallBack.Weekday, 0, 6)
	case 21:
		s.FallBack.Week = wrap(s.FallBack.Week, 1, 4)
	case 22:
		s.FallBack.Month = wrap(s.FallBack.Month, 1, 12)
	case OptionDriftRate:
		step := 1
		if fast {
			step = 10
		}
		if s.DriftRate+step > maxDrift {
			s.DriftRate = -maxDrift
		} else {
			s.DriftRate += step
		}
	}
}
