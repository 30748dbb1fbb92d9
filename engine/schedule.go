/*
schedule.go - Due-date generation

PURPOSE:
  Produces the ordered sequence of rent obligation dates for a tenancy
  given its frequency and due day. Pure function of the inputs and
  restartable: the same (frequency, dueDay, anchor, horizon) always
  yields the same sequence.

ALGORITHM:
  Weekly/fortnightly:
    First due date is the first occurrence of the due weekday on or after
    the anchor, found with (target - current + 7) mod 7. Offset 0 means
    the anchor itself IS the first due date, not the next cycle.
    Step by 7 or 14 days.

  Monthly:
    If the anchor's day-of-month <= dueDay, the first due date is this
    month's dueDay; otherwise next month's. Step by whole months.
    dueDay is restricted to 1-28 so the sequence never hits month-length
    edge cases.

TERMINATION:
  Dates are generated up to and including the horizon. Two runaway guards
  back up the horizon check: an iteration cap (~100 periods) and a hard
  366-day look-ahead past the horizon. Hitting a guard truncates the
  sequence and sets Schedule.Truncated - observable, never swallowed.
  The guards are a safety net, not a business rule.
*/
package engine

// Runaway guards. Weekly generation over a year is ~52 periods, so 100
// comfortably covers every legitimate horizon the callers use.
const (
	maxSchedulePeriods = 100
	maxLookaheadDays   = 366
)

// Schedule is the output of due-date generation: strictly increasing
// dates, each satisfying the weekday/day-of-month constraint.
type Schedule struct {
	Dates     []Date
	Truncated bool
}

// Len returns the number of generated due dates.
func (s Schedule) Len() int { return len(s.Dates) }

// GenerateDueDates returns the ordered due dates from anchor through
// horizon (inclusive). Invalid frequency or due day fails fast with an
// InputError; the core never silently defaults.
func GenerateDueDates(freq Frequency, due DueDay, anchor, horizon Date) (Schedule, error) {
	if !freq.Valid() {
		return Schedule{}, &InputError{Field: "frequency", Value: string(freq), Reason: "unknown frequency"}
	}

	first, step, err := firstDueDate(freq, due, anchor)
	if err != nil {
		return Schedule{}, err
	}

	var sched Schedule
	current := first
	for i := 0; ; i++ {
		if i >= maxSchedulePeriods {
			sched.Truncated = true
			break
		}
		if current.After(horizon) {
			break
		}
		sched.Dates = append(sched.Dates, current)

		if step > 0 {
			current = current.AddDays(step)
		} else {
			current = current.AddMonths(1)
		}

		// Hard look-ahead cap: never generate unboundedly past the horizon
		// even if stepping misbehaves.
		if DaysBetween(horizon, current) > maxLookaheadDays {
			sched.Truncated = true
			break
		}
	}
	return sched, nil
}

// firstDueDate resolves the first obligation date on/after the anchor and
// the day step (0 means step by whole months).
func firstDueDate(freq Frequency, due DueDay, anchor Date) (Date, int, error) {
	switch freq {
	case Weekly, Fortnightly:
		offset := (int(due.Weekday) - int(anchor.Weekday()) + 7) % 7
		first := anchor.AddDays(offset)
		step := 7
		if freq == Fortnightly {
			step = 14
		}
		return first, step, nil

	case Monthly:
		if due.DayOfMonth < 1 || due.DayOfMonth > 28 {
			return Date{}, 0, &InputError{Field: "due_day", Value: due.String(), Reason: "day of month must be 1-28"}
		}
		first := NewDate(anchor.Year(), anchor.Month(), due.DayOfMonth)
		if anchor.Day() > due.DayOfMonth {
			first = first.AddMonths(1)
		}
		return first, 0, nil

	default:
		return Date{}, 0, &InputError{Field: "frequency", Value: string(freq), Reason: "unknown frequency"}
	}
}
