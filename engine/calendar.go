/*
calendar.go - Working-day classification and statutory day counting

PURPOSE:
  Statutory deadlines under the Residential Tenancies Act are counted in
  WORKING days: calendar days excluding weekends, national statutory
  holidays, and (when a region is supplied) the regional anniversary day.

  A weekend-only business-day count is NOT sufficient here and is an
  explicit defect class: a strike served the day before Easter would
  otherwise accrue working days over the holiday.

HOLIDAY DATA:
  The holiday table is data, versioned by compliance year, injected via
  the HolidayCalendar interface so the core algorithm stays
  calendar-agnostic and testable with synthetic holiday sets
  (nzcalendar provides the production table). Unknown years fall back to
  weekend-only exclusion with a loud warning - never a hard failure.
*/
package engine

import (
	"log"
	"sync"
)

// =============================================================================
// HOLIDAY CALENDAR - Injected, year-versioned holiday data
// =============================================================================

// HolidayCalendar provides holiday lookup for a jurisdiction.
type HolidayCalendar interface {
	// IsHoliday reports whether the date is a national statutory holiday
	// or, when region is non-empty, that region's anniversary day.
	IsHoliday(date Date, region string) bool

	// HasYear reports whether the calendar carries data for the given
	// compliance year. Unknown years make the working-day calendar fall
	// back to weekend-only exclusion.
	HasYear(year int) bool
}

// NoHolidays is a calendar with no holiday data for any year; every
// weekday is a working day. Useful in tests.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date, string) bool { return false }
func (NoHolidays) HasYear(int) bool            { return true }

// =============================================================================
// WORKING-DAY CALENDAR
// =============================================================================

// WorkingDayCalendar classifies dates as working/non-working and counts
// working days between dates. Safe for concurrent use.
type WorkingDayCalendar struct {
	Holidays HolidayCalendar
	Region   string

	mu     sync.Mutex
	warned map[int]bool
}

func NewWorkingDayCalendar(holidays HolidayCalendar, region string) *WorkingDayCalendar {
	if holidays == nil {
		holidays = NoHolidays{}
	}
	return &WorkingDayCalendar{
		Holidays: holidays,
		Region:   region,
		warned:   make(map[int]bool),
	}
}

// IsWorkingDay reports whether d is a working day: not a weekend, not a
// listed holiday for the relevant year.
func (c *WorkingDayCalendar) IsWorkingDay(d Date) bool {
	if d.IsWeekend() {
		return false
	}
	if !c.Holidays.HasYear(d.Year()) {
		c.warnUnknownYear(d.Year())
		return true
	}
	return !c.Holidays.IsHoliday(d, c.Region)
}

// WorkingDaysBetween counts working days strictly after start, up to and
// including end. Arguments in either order yield the same non-negative
// count; WorkingDaysBetween(d, d) is 0.
func (c *WorkingDayCalendar) WorkingDaysBetween(start, end Date) int {
	if end.Before(start) {
		start, end = end, start
	}
	count := 0
	for d := start.AddDays(1); d.BeforeOrEqual(end); d = d.AddDays(1) {
		if c.IsWorkingDay(d) {
			count++
		}
	}
	return count
}

// warnUnknownYear logs once per missing year. Statutory counting with a
// stale holiday table is legally risky; the warning must be loud but the
// calculation must not hard-fail.
func (c *WorkingDayCalendar) warnUnknownYear(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warned[year] {
		return
	}
	c.warned[year] = true
	log.Printf("[Calendar] WARNING: no holiday data for year %d - falling back to weekend-only working day counting", year)
}
