/*
rentstate.go - Rent balance / overdue snapshot calculation

PURPOSE:
  Folds a tenancy's obligations and payment history into a single
  RentCalculationResult as of a given instant. Deterministic and
  side-effect free: the balance must always be reproducible purely from
  (settings, ordered payments/obligations, asOf) - no hidden state.

TWO ENTRY POINTS:
  CalculateRentState:
    Pure, schedule-derived. Obligations are regenerated from the settings
    via schedule.go. This is the reference calculation and works
    identically from a database row set or an in-memory fixture.

  CalculateLedgerState:
    Row-derived. Computes the same result shape from the persisted
    obligation ledger. This is the operative balance once payments have
    been allocated to rows, and the balance the reconciler conserves
    across a settings change.

ALLOCATION:
  Payments satisfy debt FIFO: openingArrears is the initial, oldest debit,
  then obligations oldest-first. PaidUntil is the latest due date whose
  cumulative obligation is fully covered; the earliest unsatisfied due
  date anchors daysOverdue / workingDaysOverdue.

ABSENCE vs ZERO:
  Missing or invalid settings yield (nil, error), never a fabricated
  zero-balance result.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE-DERIVED CALCULATION
// =============================================================================

// CalculateRentState computes the balance/overdue snapshot as of asOf from
// settings and actual money received. cal may be nil, in which case
// working-day counting excludes weekends only.
func CalculateRentState(settings *TenancySettings, payments []PaymentHistoryEntry, asOf Date, cal *WorkingDayCalendar) (*RentCalculationResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if cal == nil {
		cal = NewWorkingDayCalendar(NoHolidays{}, "")
	}

	sched, err := GenerateDueDates(settings.Frequency, settings.DueDay, settings.TrackingStart, asOf)
	if err != nil {
		return nil, err
	}

	totalObligations := settings.RentAmount.Mul(decimal.NewFromInt(int64(len(sched.Dates))))

	totalPaid := decimal.Zero
	for _, p := range payments {
		if p.Date.BeforeOrEqual(asOf) {
			totalPaid = totalPaid.Add(p.Amount)
		}
	}

	// Signed: negative balance is credit and is preserved, not floored.
	balance := totalObligations.Add(settings.OpeningArrears).Sub(totalPaid)

	// FIFO fold: opening arrears consumes payment money first, then each
	// obligation oldest-first. Once the pool goes negative it stays
	// negative, so the first uncovered date is the oldest unsatisfied one.
	pool := totalPaid.Sub(settings.OpeningArrears)
	var paidUntil, oldestUnpaid Date
	for _, d := range sched.Dates {
		pool = pool.Sub(settings.RentAmount)
		if !pool.IsNegative() {
			paidUntil = d
		} else if oldestUnpaid.IsZero() {
			oldestUnpaid = d
		}
	}

	result := &RentCalculationResult{
		TenantID:        settings.TenantID,
		AsOf:            asOf,
		CurrentBalance:  balance,
		PaidUntil:       paidUntil,
		OldestUnpaidDue: oldestUnpaid,
		Truncated:       sched.Truncated,
	}
	result.DaysOverdue, result.WorkingDaysOverdue = overdueDays(oldestUnpaid, asOf, cal)
	return result, nil
}

// =============================================================================
// LEDGER-DERIVED CALCULATION
// =============================================================================

// CalculateLedgerState computes the snapshot from the persisted obligation
// rows instead of a regenerated schedule. Rows falling due after asOf are
// ignored. For an unchanged schedule with payments fully allocated, this
// agrees with CalculateRentState.
func CalculateLedgerState(settings *TenancySettings, obligations []PaymentObligation, asOf Date, cal *WorkingDayCalendar) (*RentCalculationResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if cal == nil {
		cal = NewWorkingDayCalendar(NoHolidays{}, "")
	}

	rows := make([]PaymentObligation, len(obligations))
	copy(rows, obligations)
	sort.Slice(rows, func(i, j int) bool { return rows[i].DueDate.Before(rows[j].DueDate) })

	balance := settings.OpeningArrears
	var paidUntil, oldestUnpaid Date
	// Payments allocate to rows only, so positive opening arrears are
	// never satisfied here: they make the debt overdue from the first
	// due date, exactly as the schedule-derived path reports it.
	covered := !settings.OpeningArrears.IsPositive()
	for _, row := range rows {
		if row.DueDate.After(asOf) {
			break
		}
		out := row.Outstanding()
		balance = balance.Add(out)
		if covered && !out.IsPositive() {
			paidUntil = row.DueDate
		} else {
			covered = false
			if oldestUnpaid.IsZero() {
				oldestUnpaid = row.DueDate
			}
		}
	}

	result := &RentCalculationResult{
		TenantID:        settings.TenantID,
		AsOf:            asOf,
		CurrentBalance:  balance,
		PaidUntil:       paidUntil,
		OldestUnpaidDue: oldestUnpaid,
	}
	result.DaysOverdue, result.WorkingDaysOverdue = overdueDays(oldestUnpaid, asOf, cal)
	return result, nil
}

// overdueDays counts calendar and working days from the earliest
// unsatisfied due date to asOf. Zero when nothing is unsatisfied.
func overdueDays(oldestUnpaid, asOf Date, cal *WorkingDayCalendar) (days, workingDays int) {
	if oldestUnpaid.IsZero() || oldestUnpaid.After(asOf) {
		return 0, 0
	}
	return DaysBetween(oldestUnpaid, asOf), cal.WorkingDaysBetween(oldestUnpaid, asOf)
}
