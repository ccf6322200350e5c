package rtc

import (
	"testing"
	"time"
)

// zeller is an independent day-of-week calculation (Sunday = 0) used to check Weekday.
func zeller(year, month, day int) int {
	if month < 3 {
		month += 12
		year--
	}
	k := year % 100
	j := year / 100
	h := (day + 13*(month+1)/5 + k + k/4 + j/4 + 5*j) % 7
	// Zeller's h has Saturday = 0.
	return (h + 6) % 7
}

func TestWeekday(t *testing.T) {
	for year := 20; year <= 99; year++ {
		for month := 1; month <= 12; month++ {
			for date := 1; date <= DaysInMonth(month, year); date++ {
				if got, want := Weekday(year, month, date), zeller(2000+year, month, date); got != want {
					t.Fatalf("weekday of 20%02d-%02d-%02d:\n  got: %v\n want: %v", year, month, date, got, want)
				}
			}
		}
	}
}

func TestLeapDay(t *testing.T) {
	for year := 0; year <= 99; year++ {
		got := DaysInMonth(2, year) == 29
		if want := year%4 == 0; got != want {
			t.Errorf("february 29th exists in 20%02d:\n  got: %v\n want: %v", year, got, want)
		}
	}
}

func TestAdvanceToNewYear(t *testing.T) {
	starts := []Timestamp{
		{Year: 20, Month: 1, Date: 1},
		{Year: 23, Month: 2, Date: 28, Hour: 23, Minute: 59, Second: 59},
		{Year: 24, Month: 2, Date: 28, Hour: 12, Minute: 30, Second: 1},
		{Year: 25, Month: 12, Date: 31, Hour: 23, Minute: 59, Second: 59},
		{Year: 99, Month: 11, Date: 30, Hour: 6, Minute: 7, Second: 8},
	}
	for _, start := range starts {
		t0 := time.Date(2000+start.Year, time.Month(start.Month), start.Date, start.Hour, start.Minute, start.Second, 0, time.UTC)
		t1 := time.Date(2000+start.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		remaining := int(t1.Sub(t0) / time.Second)

		tk := New(start)
		for i := 0; i < remaining; i++ {
			tk.AdvanceSecond()
		}
		want := Timestamp{Year: (start.Year + 1) % 100, Month: 1, Date: 1}
		want.Weekday = Weekday(want.Year, 1, 1)
		if got := tk.Now(); got != want {
			t.Errorf("advance %v by %d seconds:\n  got: %v\n want: %v", start, remaining, got, want)
		}
	}
}

func TestRolloverRecomputesWeekday(t *testing.T) {
	tk := New(Timestamp{Year: 24, Month: 2, Date: 28, Hour: 23, Minute: 59, Second: 59})
	tk.AdvanceSecond()
	got := tk.Now()
	if got.Month != 2 || got.Date != 29 {
		t.Fatalf("leap day rollover: got %v", got)
	}
	if want := Weekday(24, 2, 29); got.Weekday != want {
		t.Errorf("weekday after rollover:\n  got: %v\n want: %v", got.Weekday, want)
	}
}

func TestEdit(t *testing.T) {
	testData := []struct {
		name  string
		start Timestamp
		field Field
		want  Timestamp
	}{
		{
			name:  "second resets",
			start: Timestamp{Year: 21, Month: 5, Date: 5, Hour: 1, Minute: 2, Second: 42},
			field: FieldSecond,
			want:  Timestamp{Year: 21, Month: 5, Date: 5, Hour: 1, Minute: 2, Second: 0},
		},
		{
			name:  "minute wraps",
			start: Timestamp{Year: 21, Month: 5, Date: 5, Minute: 59},
			field: FieldMinute,
			want:  Timestamp{Year: 21, Month: 5, Date: 5, Minute: 0},
		},
		{
			name:  "hour wraps",
			start: Timestamp{Year: 21, Month: 5, Date: 5, Hour: 23},
			field: FieldHour,
			want:  Timestamp{Year: 21, Month: 5, Date: 5, Hour: 0},
		},
		{
			name:  "month wraps",
			start: Timestamp{Year: 21, Month: 12, Date: 5},
			field: FieldMonth,
			want:  Timestamp{Year: 21, Month: 1, Date: 5},
		},
		{
			name:  "february 28th in a common year",
			start: Timestamp{Year: 23, Month: 2, Date: 28},
			field: FieldDate,
			want:  Timestamp{Year: 23, Month: 2, Date: 1},
		},
		{
			name:  "february 28th in a leap year",
			start: Timestamp{Year: 24, Month: 2, Date: 28},
			field: FieldDate,
			want:  Timestamp{Year: 24, Month: 2, Date: 29},
		},
		{
			name:  "april 30th",
			start: Timestamp{Year: 24, Month: 4, Date: 30},
			field: FieldDate,
			want:  Timestamp{Year: 24, Month: 4, Date: 1},
		},
		{
			name:  "year wraps",
			start: Timestamp{Year: 99, Month: 3, Date: 3},
			field: FieldYear,
			want:  Timestamp{Year: 0, Month: 3, Date: 3},
		},
		{
			name:  "month change clamps the date",
			start: Timestamp{Year: 23, Month: 1, Date: 31},
			field: FieldMonth,
			want:  Timestamp{Year: 23, Month: 2, Date: 28},
		},
		{
			name:  "year change clamps leap day",
			start: Timestamp{Year: 24, Month: 2, Date: 29},
			field: FieldYear,
			want:  Timestamp{Year: 25, Month: 2, Date: 28},
		},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			tk := New(test.start)
			tk.Edit(test.field)
			want := test.want
			want.Weekday = Weekday(want.Year, want.Month, want.Date)
			if got := tk.Now(); got != want {
				t.Errorf("edit %v:\n  got: %v\n want: %v", test.field, got, want)
			}
		})
	}
}

func TestFieldCycle(t *testing.T) {
	want := []Field{FieldMinute, FieldHour, FieldMonth, FieldDate, FieldYear, FieldSecond}
	f := FieldSecond
	for i, w := range want {
		f = f.Next()
		if f != w {
			t.Errorf("step %d: got %v, want %v", i, f, w)
		}
	}
}

// secondSundayOfMarch2021 is 2021-03-14, a Sunday in the second week.
var secondSundayOfMarch2021 = Timestamp{Year: 21, Month: 3, Date: 14, Hour: 2}

func usRules() Rules {
	return Rules{
		DST:         true,
		SpringAhead: Transition{Hour: 2, Weekday: 0, Week: 2, Month: 3},
		FallBack:    Transition{Hour: 2, Weekday: 0, Week: 1, Month: 11},
	}
}

func TestSpringAheadOnce(t *testing.T) {
	tk := New(secondSundayOfMarch2021)
	tk.Configure(usRules())

	tk.Phase(PhaseHalf)
	if got, want := tk.Now().Hour, 3; got != want {
		t.Fatalf("hour after spring ahead:\n  got: %v\n want: %v", got, want)
	}

	// Make the rule match again later the same day; it must not fire twice.
	tk.mu.Lock()
	tk.now.Hour = 2
	tk.mu.Unlock()
	tk.Phase(PhaseHalf)
	if got, want := tk.Now().Hour, 2; got != want {
		t.Errorf("hour after second match on the same day:\n  got: %v\n want: %v", got, want)
	}
}

func TestFallBackOnce(t *testing.T) {
	tk := New(Timestamp{Year: 21, Month: 11, Date: 7, Hour: 2})
	tk.Configure(usRules())

	tk.Phase(PhaseHalf)
	if got, want := tk.Now().Hour, 1; got != want {
		t.Fatalf("hour after fall back:\n  got: %v\n want: %v", got, want)
	}

	// An hour later it's 2:00 again.
	for i := 0; i < 3600; i++ {
		tk.AdvanceSecond()
	}
	tk.Phase(PhaseHalf)
	if got, want := tk.Now().Hour, 2; got != want {
		t.Errorf("hour after repeated 2:00:\n  got: %v\n want: %v", got, want)
	}
}

func TestDSTGuardResetsAtMidnight(t *testing.T) {
	tk := New(Timestamp{Year: 21, Month: 3, Date: 14, Hour: 23, Minute: 59, Second: 59})
	tk.Configure(usRules())
	tk.mu.Lock()
	tk.dstHandled = true
	tk.mu.Unlock()
	tk.AdvanceSecond()
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if tk.dstHandled {
		t.Error("dst guard still set after midnight")
	}
}

func TestDSTIgnoresWrongWeekOrSecond(t *testing.T) {
	testData := []struct {
		name string
		ts   Timestamp
	}{
		{name: "first week", ts: Timestamp{Year: 21, Month: 3, Date: 7, Hour: 2}},
		{name: "third week", ts: Timestamp{Year: 21, Month: 3, Date: 21, Hour: 2}},
		{name: "not second zero", ts: Timestamp{Year: 21, Month: 3, Date: 14, Hour: 2, Second: 1}},
		{name: "wrong hour", ts: Timestamp{Year: 21, Month: 3, Date: 14, Hour: 1}},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			tk := New(test.ts)
			tk.Configure(usRules())
			tk.Phase(PhaseHalf)
			if got, want := tk.Now().Hour, test.ts.Hour; got != want {
				t.Errorf("hour:\n  got: %v\n want: %v", got, want)
			}
		})
	}
}

func TestDSTDisabled(t *testing.T) {
	tk := New(secondSundayOfMarch2021)
	r := usRules()
	r.DST = false
	tk.Configure(r)
	tk.Phase(PhaseHalf)
	if got, want := tk.Now().Hour, 2; got != want {
		t.Errorf("hour with dst disabled:\n  got: %v\n want: %v", got, want)
	}
}

func TestDriftCorrectionAdds(t *testing.T) {
	tk := New(Timestamp{Year: 21, Month: 6, Date: 1})
	tk.Configure(Rules{DriftRate: 194})
	_, threshold, _ := tk.Drift()
	if got, want := threshold, 604800/194; got != want {
		t.Fatalf("threshold:\n  got: %v\n want: %v", got, want)
	}

	// Tick until the accumulator overflows.
	ticks := 0
	for {
		tk.Phase(PhaseSecond)
		ticks++
		if _, _, pending := tk.Drift(); pending != 0 {
			break
		}
		if ticks > threshold+1 {
			t.Fatalf("no correction pending after %d ticks", ticks)
		}
	}
	if got, want := ticks, threshold+1; got != want {
		t.Errorf("ticks until correction:\n  got: %v\n want: %v", got, want)
	}
	count, _, pending := tk.Drift()
	if count != 0 || pending != 1 {
		t.Errorf("after overflow: count=%v pending=%v, want count=0 pending=1", count, pending)
	}

	before := tk.Now()
	if before.Second == 59 {
		t.Fatal("test start time lands the correction on second 59; pick another")
	}
	tk.Phase(PhaseSecond)
	after := tk.Now()
	if got, want := (after.Minute*60+after.Second)-(before.Minute*60+before.Second), 2; got != want {
		t.Errorf("seconds advanced by the corrected tick:\n  got: %v\n want: %v", got, want)
	}
	if count, _, pending := tk.Drift(); count != 1 || pending != 0 {
		t.Errorf("after correction: count=%v pending=%v, want count=1 pending=0", count, pending)
	}
}

func TestDriftCorrectionSubtracts(t *testing.T) {
	tk := New(Timestamp{Year: 21, Month: 6, Date: 1, Second: 10})
	tk.Configure(Rules{DriftRate: -1})
	tk.mu.Lock()
	tk.driftPending = -1
	tk.mu.Unlock()
	tk.Phase(PhaseSecond)
	if got, want := tk.Now().Second, 10; got != want {
		t.Errorf("second after subtracting tick:\n  got: %v\n want: %v", got, want)
	}
}

func TestDriftCorrectionWaitsForMinuteEdge(t *testing.T) {
	tk := New(Timestamp{Year: 21, Month: 6, Date: 1, Second: 59})
	tk.mu.Lock()
	tk.driftPending = 1
	tk.mu.Unlock()
	tk.Phase(PhaseSecond)
	if _, _, pending := tk.Drift(); pending != 1 {
		t.Errorf("correction applied at second 59")
	}
	if got, want := tk.Now().Second, 0; got != want {
		t.Errorf("second:\n  got: %v\n want: %v", got, want)
	}
	tk.Phase(PhaseSecond)
	if got, want := tk.Now().Second, 2; got != want {
		t.Errorf("second after delayed correction:\n  got: %v\n want: %v", got, want)
	}
}

func TestEditResetsDrift(t *testing.T) {
	tk := New(Timestamp{Year: 21, Month: 6, Date: 1})
	tk.Configure(Rules{DriftRate: 100})
	for i := 0; i < 50; i++ {
		tk.Phase(PhaseSecond)
	}
	tk.Edit(FieldMinute)
	if count, _, _ := tk.Drift(); count != 0 {
		t.Errorf("drift count after edit:\n  got: %v\n want: 0", count)
	}
}

func TestDriftDisabled(t *testing.T) {
	if got := DriftThreshold(0); got != 0 {
		t.Errorf("threshold for rate 0: got %v, want 0", got)
	}
	tk := New(Timestamp{Year: 21, Month: 6, Date: 1})
	tk.Configure(Rules{})
	for i := 0; i < 10; i++ {
		tk.Phase(PhaseSecond)
	}
	if count, _, _ := tk.Drift(); count != 0 {
		t.Errorf("drift count with correction disabled: got %v", count)
	}
}
