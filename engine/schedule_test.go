package engine_test

import (
	"testing"
	"time"

	"github.com/warp/tenancy-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func weeklyOn(wd time.Weekday) engine.DueDay {
	return engine.DueDay{Weekday: wd}
}

func monthlyOn(day int) engine.DueDay {
	return engine.DueDay{DayOfMonth: day}
}

// =============================================================================
// WEEKLY / FORTNIGHTLY GENERATION
// =============================================================================

func TestGenerateDueDates_Weekly_FirstDueOnOrAfterAnchor(t *testing.T) {
	// GIVEN: Weekly rent due on Wednesdays, tracking starts Thu 2026-01-01
	// WHEN: Generating through 2026-01-22
	// THEN: Due dates are the three Wednesdays Jan 7, 14, 21

	sched, err := engine.GenerateDueDates(engine.Weekly, weeklyOn(time.Wednesday),
		date(2026, time.January, 1), date(2026, time.January, 22))
	if err != nil {
		t.Fatalf("GenerateDueDates failed: %v", err)
	}

	want := []engine.Date{
		date(2026, time.January, 7),
		date(2026, time.January, 14),
		date(2026, time.January, 21),
	}
	if len(sched.Dates) != len(want) {
		t.Fatalf("Expected %d due dates, got %d: %v", len(want), len(sched.Dates), sched.Dates)
	}
	for i, d := range want {
		if !sched.Dates[i].Equal(d) {
			t.Errorf("Due date %d: expected %s, got %s", i, d, sched.Dates[i])
		}
	}
	if sched.Truncated {
		t.Error("Short horizon should not truncate")
	}
}

func TestGenerateDueDates_Weekly_AnchorOnDueDay(t *testing.T) {
	// GIVEN: Weekly rent due on Mondays, tracking starts on a Monday
	// WHEN: Generating the schedule
	// THEN: The anchor itself is the first due date

	anchor := date(2026, time.January, 5) // a Monday
	sched, err := engine.GenerateDueDates(engine.Weekly, weeklyOn(time.Monday),
		anchor, date(2026, time.January, 19))
	if err != nil {
		t.Fatalf("GenerateDueDates failed: %v", err)
	}
	if len(sched.Dates) == 0 || !sched.Dates[0].Equal(anchor) {
		t.Errorf("Expected first due date %s, got %v", anchor, sched.Dates)
	}
}

func TestGenerateDueDates_Fortnightly_StepIsFourteenDays(t *testing.T) {
	// GIVEN: Fortnightly rent due on Fridays
	// WHEN: Generating over six weeks
	// THEN: Consecutive due dates are exactly 14 days apart

	sched, err := engine.GenerateDueDates(engine.Fortnightly, weeklyOn(time.Friday),
		date(2026, time.February, 2), date(2026, time.March, 15))
	if err != nil {
		t.Fatalf("GenerateDueDates failed: %v", err)
	}
	if len(sched.Dates) < 3 {
		t.Fatalf("Expected at least 3 due dates, got %d", len(sched.Dates))
	}
	for i := 1; i < len(sched.Dates); i++ {
		if gap := engine.DaysBetween(sched.Dates[i-1], sched.Dates[i]); gap != 14 {
			t.Errorf("Gap between %s and %s: expected 14 days, got %d",
				sched.Dates[i-1], sched.Dates[i], gap)
		}
	}
}

// =============================================================================
// MONTHLY GENERATION
// =============================================================================

func TestGenerateDueDates_Monthly_DayOfMonth(t *testing.T) {
	// GIVEN: Monthly rent due on the 15th, tracking starts 2026-01-20
	// THEN: First due date is Feb 15 (Jan 15 already passed)

	sched, err := engine.GenerateDueDates(engine.Monthly, monthlyOn(15),
		date(2026, time.January, 20), date(2026, time.April, 30))
	if err != nil {
		t.Fatalf("GenerateDueDates failed: %v", err)
	}

	want := []engine.Date{
		date(2026, time.February, 15),
		date(2026, time.March, 15),
		date(2026, time.April, 15),
	}
	if len(sched.Dates) != len(want) {
		t.Fatalf("Expected %d due dates, got %d: %v", len(want), len(sched.Dates), sched.Dates)
	}
	for i, d := range want {
		if !sched.Dates[i].Equal(d) {
			t.Errorf("Due date %d: expected %s, got %s", i, d, sched.Dates[i])
		}
	}
}

func TestGenerateDueDates_Monthly_DayOutOfRangeRejected(t *testing.T) {
	// Days 29-31 do not exist in every month, so the accepted range is 1-28.
	_, err := engine.GenerateDueDates(engine.Monthly, monthlyOn(31),
		date(2026, time.January, 1), date(2026, time.June, 30))
	if !engine.IsInputError(err) {
		t.Errorf("Expected InputError for day-of-month 31, got %v", err)
	}
}

// =============================================================================
// ORDERING AND RUNAWAY GUARDS
// =============================================================================

func TestGenerateDueDates_StrictlyIncreasing(t *testing.T) {
	sched, err := engine.GenerateDueDates(engine.Weekly, weeklyOn(time.Tuesday),
		date(2025, time.March, 1), date(2025, time.December, 31))
	if err != nil {
		t.Fatalf("GenerateDueDates failed: %v", err)
	}
	for i, d := range sched.Dates {
		if d.Weekday() != time.Tuesday {
			t.Errorf("Due date %s is not a Tuesday", d)
		}
		if i > 0 && !sched.Dates[i-1].Before(d) {
			t.Fatalf("Dates not strictly increasing at %d: %s then %s",
				i, sched.Dates[i-1], d)
		}
	}
}

func TestGenerateDueDates_RunawayHorizonTruncates(t *testing.T) {
	// GIVEN: A weekly schedule and a horizon years away
	// WHEN: Generation hits the period cap
	// THEN: It stops and reports Truncated instead of hanging

	sched, err := engine.GenerateDueDates(engine.Weekly, weeklyOn(time.Monday),
		date(2020, time.January, 6), date(2035, time.January, 1))
	if err != nil {
		t.Fatalf("GenerateDueDates failed: %v", err)
	}
	if !sched.Truncated {
		t.Error("Expected Truncated=true for a multi-year weekly horizon")
	}
	if sched.Len() == 0 {
		t.Error("Truncation should still return the generated prefix")
	}
}

func TestGenerateDueDates_UnknownFrequencyRejected(t *testing.T) {
	_, err := engine.GenerateDueDates(engine.Frequency("daily"), weeklyOn(time.Monday),
		date(2026, time.January, 1), date(2026, time.February, 1))
	if !engine.IsInputError(err) {
		t.Errorf("Expected InputError for unknown frequency, got %v", err)
	}
}
