/*
Package engine is the rent arrears and compliance calculation core.

PURPOSE:
  Given a tenancy's settings, its payment history and its notice history,
  the engine answers three questions deterministically at any instant:

    1. How much rent is currently owed?          (rentstate.go)
    2. How many strikes are active?              (compliance.go)
    3. What statutory deadlines are running?     (compliance.go)

  Correctness here is safety-critical: a wrong answer can produce a
  legally invalid eviction notice under the NZ Residential Tenancies Act.

KEY CONCEPTS IN THIS FILE (types.go):
  - TenancySettings:     frequency, rent amount, due day, tracking anchor
  - PaymentObligation:   a persisted ledger row (one rent period owed)
  - PaymentHistoryEntry: actual money received (append-only)
  - StrikeNotice:        an escalating statutory notice (immutable)
  - RemedyNoticeMetadata: frozen debt snapshot taken when a 14-day
                          remedy notice is issued
  - RentCalculationResult: derived snapshot, recomputed on every read

DESIGN PRINCIPLES:
  1. Purity: every calculation is a function of (inputs, asOf). There is
     no stored "current state" to drift out of sync.
  2. Precision: decimal.Decimal for all money. No floats.
  3. Absence over zero: missing or invalid settings yield an error, never
     a fabricated zero balance.
  4. Immutability: notices and payment history are never edited; the
     obligation ledger mutates only through payment allocation and the
     reconciler's atomic delete+recreate.

SEE ALSO:
  - schedule.go:   due-date generation
  - calendar.go:   working-day classification and counting
  - rentstate.go:  balance / overdue snapshot
  - compliance.go: strikes, remedy notices, tribunal windows
*/
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type ObligationID string
type NoticeID string

// =============================================================================
// RENT FREQUENCY
// =============================================================================

type Frequency string

const (
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Fortnightly, Monthly:
		return true
	}
	return false
}

// ParseFrequency accepts the canonical lowercase names, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &InputError{Field: "frequency", Value: s, Reason: "must be weekly, fortnightly or monthly"}
	}
	return f, nil
}

// =============================================================================
// DUE DAY - weekday for weekly/fortnightly, day-of-month for monthly
// =============================================================================

// DueDay identifies when within a cycle rent falls due. Exactly one of the
// two fields is meaningful, selected by the tenancy's Frequency.
// DayOfMonth is restricted to 1-28 so every month has the due day.
type DueDay struct {
	Weekday    time.Weekday
	DayOfMonth int
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDueDay parses a weekday name (weekly/fortnightly) or a day-of-month
// 1-28 (monthly). Invalid input fails fast; the calculation core never
// silently defaults.
func ParseDueDay(freq Frequency, s string) (DueDay, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	switch freq {
	case Weekly, Fortnightly:
		wd, ok := weekdayNames[raw]
		if !ok {
			return DueDay{}, &InputError{Field: "due_day", Value: s, Reason: "unknown weekday name"}
		}
		return DueDay{Weekday: wd}, nil
	case Monthly:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 28 {
			return DueDay{}, &InputError{Field: "due_day", Value: s, Reason: "day of month must be 1-28"}
		}
		return DueDay{DayOfMonth: n}, nil
	default:
		return DueDay{}, &InputError{Field: "frequency", Value: string(freq), Reason: "unknown frequency"}
	}
}

// String renders the due day in the form ParseDueDay accepts.
func (d DueDay) String() string {
	if d.DayOfMonth > 0 {
		return strconv.Itoa(d.DayOfMonth)
	}
	return strings.ToLower(d.Weekday.String())
}

// =============================================================================
// TENANCY SETTINGS
// =============================================================================

// TenancySettings is the rent configuration for one tenancy. It is owned by
// the tenancy and mutated only through the settings-change operation
// (ledger.Reconciler), never directly.
type TenancySettings struct {
	TenantID       TenantID
	Frequency      Frequency
	RentAmount     decimal.Decimal
	DueDay         DueDay
	TrackingStart  Date
	OpeningArrears decimal.Decimal
}

// Validate checks the settings are usable by the calculation core.
func (s *TenancySettings) Validate() error {
	if s == nil {
		return ErrNoSettings
	}
	if !s.Frequency.Valid() {
		return &InputError{Field: "frequency", Value: string(s.Frequency), Reason: "unknown frequency"}
	}
	if !s.RentAmount.IsPositive() {
		return &InputError{Field: "rent_amount", Value: s.RentAmount.String(), Reason: "must be positive"}
	}
	if s.Frequency == Monthly && (s.DueDay.DayOfMonth < 1 || s.DueDay.DayOfMonth > 28) {
		return &InputError{Field: "due_day", Value: s.DueDay.String(), Reason: "day of month must be 1-28"}
	}
	if s.OpeningArrears.IsNegative() {
		return &InputError{Field: "opening_arrears", Value: s.OpeningArrears.String(), Reason: "must not be negative"}
	}
	if s.TrackingStart.IsZero() {
		return &InputError{Field: "tracking_start", Value: "", Reason: "required"}
	}
	return nil
}

// =============================================================================
// PAYMENT OBLIGATION - Persisted ledger row
// =============================================================================

type ObligationStatus string

const (
	StatusUnpaid  ObligationStatus = "unpaid"
	StatusPartial ObligationStatus = "partial"
	StatusPaid    ObligationStatus = "paid"
)

// PaymentObligation is one rent period owed by a tenant. Rows are created
// by schedule generation / reconciliation, mutated when a payment is
// allocated, and deleted only as part of an atomic reconciliation
// delete+recreate.
type PaymentObligation struct {
	ID         ObligationID
	TenantID   TenantID
	DueDate    Date
	AmountDue  decimal.Decimal
	AmountPaid decimal.Decimal
	Status     ObligationStatus
}

// Outstanding is AmountDue - AmountPaid. Negative means the row carries an
// overpayment (credit).
func (o PaymentObligation) Outstanding() decimal.Decimal {
	return o.AmountDue.Sub(o.AmountPaid)
}

// StatusFor derives the row status from amounts.
func StatusFor(amountDue, amountPaid decimal.Decimal) ObligationStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return StatusPaid
	case amountPaid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// =============================================================================
// PAYMENT HISTORY - Actual money received (append-only)
// =============================================================================

type PaymentHistoryEntry struct {
	ID       string
	TenantID TenantID
	Amount   decimal.Decimal
	Date     Date
	Method   string
}

// =============================================================================
// STRIKE NOTICES
// =============================================================================

type NoticeType string

const (
	NoticeStrike1 NoticeType = "strike_1"
	NoticeStrike2 NoticeType = "strike_2"
	NoticeStrike3 NoticeType = "strike_3"
	NoticeRemedy  NoticeType = "remedy_notice"
)

func (t NoticeType) IsStrike() bool {
	return t == NoticeStrike1 || t == NoticeStrike2 || t == NoticeStrike3
}

// StrikeNotice is an escalation notice served on a tenant. Immutable once
// created: the set of notices grows, individual notices are never edited.
//
// OfficialServiceDate (OSD) is the legally-binding service date. It may
// differ from SentAt by delivery-method rules that live outside this core.
type StrikeNotice struct {
	ID                  NoticeID
	TenantID            TenantID
	Type                NoticeType
	SentAt              Date
	OfficialServiceDate Date
}

// RemedyNoticeMetadata freezes the specific unpaid due-dates and total owed
// at the moment a 14-day remedy notice was issued. Remedy status is
// debt-specific, not balance-specific: later, unrelated debt must not make
// an old notice look remedied, and payments against other due-dates must
// not remedy it.
type RemedyNoticeMetadata struct {
	NoticeID  NoticeID
	TenantID  TenantID
	IssuedAt  Date
	ExpiresAt Date
	DueDates  []Date
	TotalOwed decimal.Decimal
}

// =============================================================================
// RENT CALCULATION RESULT - Derived, never persisted
// =============================================================================

// RentCalculationResult is the balance/overdue snapshot as of an instant.
// Recomputed on every read; persisting it would create a second source of
// truth that could drift.
//
// CurrentBalance is signed: negative means the tenant is in credit. The
// core never floors it; flooring for display is a presentation concern.
type RentCalculationResult struct {
	TenantID           TenantID
	AsOf               Date
	CurrentBalance     decimal.Decimal
	DaysOverdue        int
	WorkingDaysOverdue int

	// PaidUntil is the latest due date fully covered by payments (FIFO),
	// zero if none. OldestUnpaidDue is the earliest unsatisfied due date,
	// zero if everything is covered.
	PaidUntil       Date
	OldestUnpaidDue Date

	// Truncated reports that due-date generation hit a runaway guard and
	// the obligation walk is incomplete. Observable, never swallowed.
	Truncated bool
}

// IsOverdue reports whether any obligation is unsatisfied as of the
// evaluation instant.
func (r *RentCalculationResult) IsOverdue() bool {
	return r != nil && !r.OldestUnpaidDue.IsZero()
}

func (r *RentCalculationResult) String() string {
	if r == nil {
		return "<no result>"
	}
	return fmt.Sprintf("balance=%s daysOverdue=%d workingDaysOverdue=%d paidUntil=%s",
		r.CurrentBalance, r.DaysOverdue, r.WorkingDaysOverdue, r.PaidUntil)
}
