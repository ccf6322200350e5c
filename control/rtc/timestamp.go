// Package rtc keeps the clock's time of day.  The timestamp is advanced by a quarter-second phase
// ticker, corrected for crystal drift, and adjusted for daylight saving time.  Nothing else is
// allowed to advance it; the only other writer is the Edit entry point used while the user sets the
// time.
package rtc

import (
	"fmt"
	"time"
)

// Timestamp is a calendar time with a two-digit year.  Year 0 is 2000, and because the device
// never sees a year outside 2000-2099, every year divisible by 4 is a leap year.
type Timestamp struct {
	Year    int // 0-99
	Month   int // 1-12
	Date    int // 1-31
	Weekday int // 0-6, Sunday is 0
	Hour    int // 0-23
	Minute  int // 0-59
	Second  int // 0-59
}

// Epoch is the time the clock starts at when nothing better is known.
var Epoch = Timestamp{Year: 20, Month: 1, Date: 1, Weekday: Weekday(20, 1, 1)}

// IsLeap reports whether the two-digit year has a February 29th.
func IsLeap(year int) bool {
	return year%4 == 0
}

// DaysInMonth returns the number of days in the month.
func DaysInMonth(month, year int) int {
	switch month {
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	}
	return 31
}

// Weekday returns the day of the week for a date, with Sunday as 0.
func Weekday(year, month, date int) int {
	return int(time.Date(2000+year, time.Month(month), date, 0, 0, 0, 0, time.UTC).Weekday())
}

// FromTime converts a time.Time in the 21st century to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{
		Year:    t.Year() % 100,
		Month:   int(t.Month()),
		Date:    t.Day(),
		Weekday: int(t.Weekday()),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
	}
}

// Valid reports whether every field is in range and the date exists.
func (ts Timestamp) Valid() bool {
	switch {
	case ts.Year < 0 || ts.Year > 99:
		return false
	case ts.Month < 1 || ts.Month > 12:
		return false
	case ts.Date < 1 || ts.Date > DaysInMonth(ts.Month, ts.Year):
		return false
	case ts.Hour < 0 || ts.Hour > 23:
		return false
	case ts.Minute < 0 || ts.Minute > 59:
		return false
	case ts.Second < 0 || ts.Second > 59:
		return false
	}
	return true
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("20%02d-%02d-%02d %02d:%02d:%02d (day %d)", ts.Year, ts.Month, ts.Date, ts.Hour, ts.Minute, ts.Second, ts.Weekday)
}

// advance moves the timestamp forward by one second, rolling over into the next minute, hour, day,
// month, and year as needed.  It returns true when the day changed.
func (ts *Timestamp) advance() bool {
	if ts.Second++; ts.Second < 60 {
		return false
	}
	ts.Second = 0
	if ts.Minute++; ts.Minute < 60 {
		return false
	}
	ts.Minute = 0
	if ts.Hour++; ts.Hour < 24 {
		return false
	}
	ts.Hour = 0
	if ts.Date++; ts.Date > DaysInMonth(ts.Month, ts.Year) {
		ts.Date = 1
		if ts.Month++; ts.Month > 12 {
			ts.Month = 1
			ts.Year = (ts.Year + 1) % 100
		}
	}
	ts.Weekday = Weekday(ts.Year, ts.Month, ts.Date)
	return true
}
