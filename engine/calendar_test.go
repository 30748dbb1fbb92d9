package engine_test

import (
	"testing"
	"time"

	"github.com/warp/tenancy-engine/engine"
)

// stubHolidays marks fixed dates as national holidays and knows only the
// years it was given.
type stubHolidays struct {
	dates map[string]bool
	years map[int]bool
}

func newStubHolidays(dates ...engine.Date) *stubHolidays {
	s := &stubHolidays{dates: map[string]bool{}, years: map[int]bool{}}
	for _, d := range dates {
		s.dates[d.String()] = true
		s.years[d.Year()] = true
	}
	return s
}

func (s *stubHolidays) IsHoliday(d engine.Date, _ string) bool { return s.dates[d.String()] }
func (s *stubHolidays) HasYear(year int) bool                  { return s.years[year] }

// =============================================================================
// WORKING DAY CLASSIFICATION
// =============================================================================

func TestIsWorkingDay_WeekendsExcluded(t *testing.T) {
	cal := engine.NewWorkingDayCalendar(engine.NoHolidays{}, "")

	if cal.IsWorkingDay(date(2026, time.January, 10)) { // Saturday
		t.Error("Saturday should not be a working day")
	}
	if cal.IsWorkingDay(date(2026, time.January, 11)) { // Sunday
		t.Error("Sunday should not be a working day")
	}
	if !cal.IsWorkingDay(date(2026, time.January, 12)) { // Monday
		t.Error("Monday should be a working day")
	}
}

func TestIsWorkingDay_HolidaysExcluded(t *testing.T) {
	newYear := date(2026, time.January, 1)
	cal := engine.NewWorkingDayCalendar(newStubHolidays(newYear), "")

	if cal.IsWorkingDay(newYear) {
		t.Error("A listed holiday should not be a working day")
	}
	if !cal.IsWorkingDay(date(2026, time.January, 2)) {
		t.Error("An unlisted Friday should be a working day")
	}
}

// =============================================================================
// WORKING DAYS BETWEEN
// =============================================================================

func TestWorkingDaysBetween_SameDayIsZero(t *testing.T) {
	cal := engine.NewWorkingDayCalendar(engine.NoHolidays{}, "")
	d := date(2026, time.January, 7)
	if got := cal.WorkingDaysBetween(d, d); got != 0 {
		t.Errorf("WorkingDaysBetween(d, d): expected 0, got %d", got)
	}
}

func TestWorkingDaysBetween_SkipsWeekendAndHoliday(t *testing.T) {
	// GIVEN: Fri 2026-01-02 through Thu 2026-01-08, with Tue Jan 6 a holiday
	// THEN: Working days after Friday are Mon 5, Wed 7, Thu 8 = 3

	cal := engine.NewWorkingDayCalendar(newStubHolidays(date(2026, time.January, 6)), "")
	got := cal.WorkingDaysBetween(date(2026, time.January, 2), date(2026, time.January, 8))
	if got != 3 {
		t.Errorf("Expected 3 working days, got %d", got)
	}
}

func TestWorkingDaysBetween_ReversedArgumentsSwap(t *testing.T) {
	cal := engine.NewWorkingDayCalendar(engine.NoHolidays{}, "")
	a := date(2026, time.January, 5)
	b := date(2026, time.January, 9)
	if cal.WorkingDaysBetween(a, b) != cal.WorkingDaysBetween(b, a) {
		t.Error("Reversed arguments should yield the same count")
	}
}

func TestWorkingDaysBetween_UnknownYearFallsBackToWeekdays(t *testing.T) {
	// GIVEN: A holiday table that only covers 2026
	// WHEN: Counting across a year with no table
	// THEN: Every weekday counts (degraded but deterministic)

	cal := engine.NewWorkingDayCalendar(newStubHolidays(date(2026, time.January, 1)), "")
	// 2031-01-06 (Mon) through 2031-01-10 (Fri): 4 weekdays after Monday
	got := cal.WorkingDaysBetween(date(2031, time.January, 6), date(2031, time.January, 10))
	if got != 4 {
		t.Errorf("Expected 4 working days in unknown year, got %d", got)
	}
}
