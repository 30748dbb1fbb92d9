/*
compliance.go - Strike escalation, remedy notices, tribunal deadlines

PURPOSE:
  Derives the tenancy's compliance position from the notice history and
  the current overdue state. There is NO stored "current state": every
  evaluation reclassifies the full history as of the evaluation instant,
  so the result is idempotent and replayable. Escalation "happens" only
  in the sense that an external workflow appends new StrikeNotice
  records; this machine merely classifies what exists.

THE RULES (Residential Tenancies Act s55, as implemented):
  - A strike may be issued at 5 working days of arrears; the second at
    10; the third at 15. Tiers are sequential and strict: tier k is
    ELIGIBLE only when exactly k-1 strikes are active and the threshold
    is met. At most one tier is ELIGIBLE at a time.
  - Strikes count toward escalation only within a 90-calendar-day window
    anchored at the OSD of the first active strike. If the window lapses
    before three strikes, the count resets to zero and the next strike
    anchors a fresh window.
  - A 14-day remedy notice is evaluated against the debt snapshot frozen
    when it was issued, never against the current balance.
  - Three strikes open a 28-calendar-day tribunal filing window anchored
    at the third strike's OSD. A negative remainder means the window is
    closed - terminal through this path.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Statutory constants. Thresholds are in WORKING days; windows in
// calendar days.
var strikeThresholds = [3]int{5, 10, 15}

const (
	StrikeWindowDays   = 90
	RemedyPeriodDays   = 14
	TribunalWindowDays = 28
)

// =============================================================================
// TIER STATES
// =============================================================================

type TierState string

const (
	TierSent     TierState = "SENT"
	TierEligible TierState = "ELIGIBLE"
	TierInactive TierState = "INACTIVE"
)

// TierStates classifies the three strike tiers given the active strike
// count and the current working-days-overdue figure.
//
// Invariants: at most one tier is ELIGIBLE; every tier at or below the
// active count is SENT; tier k is never ELIGIBLE unless tiers 1..k-1 are
// SENT.
func TierStates(activeCount, workingDaysOverdue int) [3]TierState {
	var tiers [3]TierState
	for i := range tiers {
		k := i + 1
		switch {
		case k <= activeCount:
			tiers[i] = TierSent
		case k == activeCount+1 && workingDaysOverdue >= strikeThresholds[i]:
			tiers[i] = TierEligible
		default:
			tiers[i] = TierInactive
		}
	}
	return tiers
}

// =============================================================================
// STRIKE WINDOW - 90 calendar days from the first active strike's OSD
// =============================================================================

// StrikeWindowStatus reports the rolling escalation window.
type StrikeWindowStatus struct {
	// Anchor is the OSD of the first strike in the current window, zero
	// when no strike has been served.
	Anchor    Date
	ExpiresAt Date

	// ActiveCount is the number of strikes counting toward escalation.
	// Zero once the window lapses without reaching three.
	ActiveCount int
	IsExpired   bool
}

// strikeFold walks strike notices chronologically by OSD and returns the
// window anchor, the in-window count, and the OSD of the third strike of
// the window that reached three (zero if none did). Notices served after
// asOf are ignored.
func strikeFold(notices []StrikeNotice, asOf Date) (anchor Date, count int, thirdOSD Date) {
	strikes := make([]StrikeNotice, 0, len(notices))
	for _, n := range notices {
		if n.Type.IsStrike() && n.OfficialServiceDate.BeforeOrEqual(asOf) {
			strikes = append(strikes, n)
		}
	}
	sort.Slice(strikes, func(i, j int) bool {
		return strikes[i].OfficialServiceDate.Before(strikes[j].OfficialServiceDate)
	})

	for _, s := range strikes {
		osd := s.OfficialServiceDate
		if anchor.IsZero() || osd.After(anchor.AddDays(StrikeWindowDays)) {
			// Outside the current window: this strike anchors a fresh one.
			anchor = osd
			count = 1
		} else {
			count++
		}
		if count == 3 {
			thirdOSD = osd
		}
	}
	return anchor, count, thirdOSD
}

// CheckStrikeWindow reports the escalation window as of asOf.
func CheckStrikeWindow(notices []StrikeNotice, asOf Date) StrikeWindowStatus {
	anchor, count, _ := strikeFold(notices, asOf)
	status := StrikeWindowStatus{Anchor: anchor, ActiveCount: count}
	if anchor.IsZero() {
		return status
	}
	status.ExpiresAt = anchor.AddDays(StrikeWindowDays)
	if count < 3 && asOf.After(status.ExpiresAt) {
		status.IsExpired = true
		status.ActiveCount = 0
	}
	return status
}

// =============================================================================
// REMEDY NOTICE - 14-day notice to cure a frozen, specific debt
// =============================================================================

// RemedyNoticeStatus is the classification of an issued remedy notice as
// of the evaluation instant.
type RemedyNoticeStatus struct {
	NoticeID  NoticeID
	IssuedAt  Date
	ExpiresAt Date

	// Remedied iff nothing remains outstanding on the frozen due-dates.
	// Debt-specific: paying down OTHER due-dates does not remedy the
	// notice, and new debt accrued afterward does not un-remedy it.
	Remedied bool
	Expired  bool

	// CanFileToTribunal iff Expired and not Remedied.
	CanFileToTribunal bool

	// AmountOutstanding is the unremedied remainder of the frozen debt.
	AmountOutstanding decimal.Decimal
}

// CheckRemedyNotice evaluates a remedy notice against its frozen
// metadata. obligations is the persisted ledger; only rows whose due date
// is in the frozen set contribute.
func CheckRemedyNotice(meta RemedyNoticeMetadata, obligations []PaymentObligation, asOf Date) RemedyNoticeStatus {
	// Keyed by formatted date: Date wraps time.Time, whose == is stricter
	// than calendar-day equality.
	frozen := make(map[string]bool, len(meta.DueDates))
	for _, d := range meta.DueDates {
		frozen[d.String()] = true
	}

	// What counts is what the frozen rows still owe NOW, not the
	// cumulative AmountPaid: money paid before issuance already reduced
	// the frozen total and must not double-count toward curing it.
	outstanding := decimal.Zero
	for _, row := range obligations {
		if !frozen[row.DueDate.String()] {
			continue
		}
		if out := row.Outstanding(); out.IsPositive() {
			outstanding = outstanding.Add(out)
		}
	}

	status := RemedyNoticeStatus{
		NoticeID:          meta.NoticeID,
		IssuedAt:          meta.IssuedAt,
		ExpiresAt:         meta.ExpiresAt,
		Remedied:          !outstanding.IsPositive(),
		Expired:           asOf.After(meta.ExpiresAt),
		AmountOutstanding: outstanding,
	}
	status.CanFileToTribunal = status.Expired && !status.Remedied
	return status
}

// NewRemedyMetadata freezes the debt snapshot for a remedy notice issued
// at issuedAt: the due dates of every row with money outstanding as of
// the issue date, and their total.
func NewRemedyMetadata(noticeID NoticeID, tenantID TenantID, issuedAt Date, obligations []PaymentObligation) RemedyNoticeMetadata {
	meta := RemedyNoticeMetadata{
		NoticeID:  noticeID,
		TenantID:  tenantID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.AddDays(RemedyPeriodDays),
		TotalOwed: decimal.Zero,
	}
	for _, row := range obligations {
		if row.DueDate.After(issuedAt) {
			continue
		}
		if out := row.Outstanding(); out.IsPositive() {
			meta.DueDates = append(meta.DueDates, row.DueDate)
			meta.TotalOwed = meta.TotalOwed.Add(out)
		}
	}
	return meta
}

// =============================================================================
// TRIBUNAL FILING WINDOW - 28 calendar days from the third strike's OSD
// =============================================================================

type TribunalWindowStatus struct {
	OpensAt  Date
	Deadline Date

	// DaysRemaining is deadline - asOf in calendar days; negative means
	// the window has closed (terminal, no further filing through this
	// path).
	DaysRemaining int
	IsOpen        bool
}

// CheckTribunalWindow reports the filing window, or nil when no window
// has ever opened (fewer than three strikes in any 90-day window).
func CheckTribunalWindow(notices []StrikeNotice, asOf Date) *TribunalWindowStatus {
	_, _, thirdOSD := strikeFold(notices, asOf)
	if thirdOSD.IsZero() {
		return nil
	}
	deadline := thirdOSD.AddDays(TribunalWindowDays)
	remaining := DaysBetween(asOf, deadline)
	return &TribunalWindowStatus{
		OpensAt:       thirdOSD,
		Deadline:      deadline,
		DaysRemaining: remaining,
		IsOpen:        remaining >= 0 && asOf.AfterOrEqual(thirdOSD),
	}
}

// =============================================================================
// COMPLIANCE STATE - Single evaluation entry point
// =============================================================================

// ComplianceState is the full compliance classification at an instant.
type ComplianceState struct {
	TenantID          TenantID
	AsOf              Date
	ActiveStrikeCount int
	Tiers             [3]TierState
	Window            StrikeWindowStatus
	Remedy            *RemedyNoticeStatus
	Tribunal          *TribunalWindowStatus
}

// EvaluateCompliance classifies the notice history. remedyMeta may be nil
// when no remedy notice has been issued. Pure: calling it twice with
// identical inputs yields identical output.
func EvaluateCompliance(tenantID TenantID, notices []StrikeNotice, remedyMeta *RemedyNoticeMetadata, obligations []PaymentObligation, workingDaysOverdue int, asOf Date) ComplianceState {
	window := CheckStrikeWindow(notices, asOf)

	state := ComplianceState{
		TenantID:          tenantID,
		AsOf:              asOf,
		ActiveStrikeCount: window.ActiveCount,
		Tiers:             TierStates(window.ActiveCount, workingDaysOverdue),
		Window:            window,
		Tribunal:          CheckTribunalWindow(notices, asOf),
	}
	if remedyMeta != nil {
		status := CheckRemedyNotice(*remedyMeta, obligations, asOf)
		state.Remedy = &status
	}
	return state
}
