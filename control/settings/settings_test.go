package settings

import (
	"testing"

	"github.com/jrockway/nixie-clock/control/rtc"
)

func TestDefaults(t *testing.T) {
	if !Defaults.Valid() {
		t.Error("defaults are not valid")
	}
	if got, want := Defaults.DutyCycle(), uint8(240); got != want {
		t.Errorf("default duty cycle:\n  got: %v\n want: %v", got, want)
	}
	if got, want := rtc.DriftThreshold(Defaults.DriftRate), 3117; got != want {
		t.Errorf("default drift threshold:\n  got: %v\n want: %v", got, want)
	}
}

func TestDriftRules(t *testing.T) {
	s := Defaults
	s.DriftRate = -12
	want := rtc.Rules{
		DST:         true,
		SpringAhead: rtc.Transition{Hour: 2, Weekday: 0, Week: 2, Month: 3},
		FallBack:    rtc.Transition{Hour: 2, Weekday: 0, Week: 1, Month: 11},
		DriftRate:   -12,
	}
	if got := s.DriftRules(); got != want {
		t.Errorf("rules:\n  got: %+v\n want: %+v", got, want)
	}
}

func TestConditioningWindow(t *testing.T) {
	testData := []struct {
		name     string
		enabled  bool
		start    int
		hours    int
		inWindow []int
	}{
		{"default", true, 3, 1, []int{3}},
		{"disabled", false, 3, 1, nil},
		{"several hours", true, 1, 3, []int{1, 2, 3}},
		{"past midnight", true, 22, 4, []int{22, 23, 0, 1}},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			s := Defaults
			s.Conditioning = test.enabled
			s.ConditioningStart = test.start
			s.ConditioningHours = test.hours
			want := make(map[int]bool)
			for _, h := range test.inWindow {
				want[h] = true
			}
			for h := 0; h < 24; h++ {
				if got := s.InConditioningWindow(h); got != want[h] {
					t.Errorf("hour %d:\n  got: %v\n want: %v", h, got, want[h])
				}
			}
		})
	}
}

func TestShowsDate(t *testing.T) {
	s := Defaults
	s.DateAtSecond = 40
	s.DateDuration = 3
	for sec := 0; sec < 60; sec++ {
		want := sec >= 40 && sec < 43
		if got := s.ShowsDate(sec); got != want {
			t.Errorf("second %d:\n  got: %v\n want: %v", sec, got, want)
		}
	}
	s.DisplayDate = false
	if s.ShowsDate(41) {
		t.Error("date shown with periodic date display disabled")
	}
}
