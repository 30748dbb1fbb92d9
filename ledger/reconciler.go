/*
reconciler.go - Schedule regeneration with balance conservation

PURPOSE:
  When a tenancy's rent amount, frequency or due day changes, the
  persisted obligation rows describe the wrong schedule. The reconciler
  rebuilds them: delete everything from the tracking start forward,
  regenerate under the new settings, and redistribute payments so the
  tenant's net owed amount is unchanged. Only the SHAPE of future
  obligations changes; the debt does not.

ALGORITHM:
  (a) compute the current balance from the old row set
  (b) delete all rows from trackingStart forward
  (c) regenerate the due-date sequence under the new settings
  (d) create one Unpaid row per date at the new rent amount
  (e) redistribute: the paid pool (new gross obligation minus the carried
      debt) is applied newest-first, so the OLDEST rows are the ones left
      unpaid - arrears are the oldest debt. Credit overhang is absorbed
      as overpayment on the newest row.

CONSERVATION LIMITS:
  If the new schedule's gross obligation cannot carry the old debt (e.g.
  rent lowered sharply), no redistribution can conserve the balance
  through rows alone. Every row is left Unpaid and BalancePreserved is
  reported false - a detectable state for operator remediation, never
  auto-repaired.

CONCURRENCY:
  Regenerate is NOT safe to run concurrently for the same tenant: two
  interleaved delete+insert sequences can double-delete or leave an
  inconsistent row count. It must be invoked through the single-writer
  queue worker (worker.go).
*/
package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
)

// =============================================================================
// RECONCILER
// =============================================================================

// ReconcileResult reports what a regeneration did.
type ReconcileResult struct {
	RecordsDeleted   int
	RecordsCreated   int
	BalancePreserved bool
}

type Reconciler struct {
	Tenancies   TenancyStore
	Obligations ObligationStore
	Calendar    *engine.WorkingDayCalendar

	// Now is injectable for simulation/testing; defaults to engine.Today.
	Now func() engine.Date
}

func (r *Reconciler) now() engine.Date {
	if r.Now != nil {
		return r.Now()
	}
	return engine.Today()
}

// Regenerate rebuilds the tenant's obligation ledger under newSettings,
// conserving the pre-change balance. TrackingStart and OpeningArrears are
// carried over from the stored settings: the settings-change operation
// only alters frequency, due day and amount.
func (r *Reconciler) Regenerate(ctx context.Context, tenantID engine.TenantID, newSettings engine.TenancySettings) (ReconcileResult, error) {
	asOf := r.now()

	old, err := r.Tenancies.GetSettings(ctx, tenantID)
	if err != nil {
		return ReconcileResult{}, err
	}
	newSettings.TenantID = tenantID
	newSettings.TrackingStart = old.TrackingStart
	newSettings.OpeningArrears = old.OpeningArrears
	if err := newSettings.Validate(); err != nil {
		return ReconcileResult{}, err
	}

	// (a) balance under the old schedule, from the persisted rows.
	oldRows, err := r.Obligations.ListByTenant(ctx, tenantID)
	if err != nil {
		return ReconcileResult{}, err
	}
	oldState, err := engine.CalculateLedgerState(&old, oldRows, asOf, r.Calendar)
	if err != nil {
		return ReconcileResult{}, err
	}
	oldBalance := oldState.CurrentBalance

	// (b) delete from tracking start forward. From here until CreateBatch
	// succeeds the ledger is mid-regeneration; a failure below leaves the
	// queue item failed and the state detectable.
	deleted, err := r.Obligations.DeleteFrom(ctx, tenantID, old.TrackingStart)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("delete obligations: %w", err)
	}

	// (c) regenerate under the new settings.
	sched, err := engine.GenerateDueDates(newSettings.Frequency, newSettings.DueDay, newSettings.TrackingStart, asOf)
	if err != nil {
		return ReconcileResult{RecordsDeleted: deleted}, fmt.Errorf("%w: %v", engine.ErrLedgerInconsistent, err)
	}
	if sched.Truncated {
		log.Printf("[Reconciler] tenant %s: due-date generation truncated at runaway guard", tenantID)
	}

	// (d)+(e) build rows and redistribute the preserved balance.
	rows, preserved := redistribute(tenantID, newSettings, sched.Dates, oldBalance)

	if len(rows) > 0 {
		if err := r.Obligations.CreateBatch(ctx, rows); err != nil {
			// Delete succeeded, insert failed: detectable bad state for
			// operator remediation, not auto-repaired.
			return ReconcileResult{RecordsDeleted: deleted}, fmt.Errorf("%w: recreate failed: %v", engine.ErrLedgerInconsistent, err)
		}
	}

	// Verify conservation against the ledger we just wrote.
	newState, err := engine.CalculateLedgerState(&newSettings, rows, asOf, r.Calendar)
	if err != nil {
		return ReconcileResult{RecordsDeleted: deleted, RecordsCreated: len(rows)}, err
	}
	preserved = preserved && newState.CurrentBalance.Equal(oldBalance)
	if !preserved {
		log.Printf("[Reconciler] tenant %s: balance NOT preserved (old=%s new=%s) - flagged for operator review",
			tenantID, oldBalance, newState.CurrentBalance)
	}

	if err := r.Tenancies.SaveSettings(ctx, newSettings); err != nil {
		return ReconcileResult{RecordsDeleted: deleted, RecordsCreated: len(rows)}, fmt.Errorf("save settings: %w", err)
	}

	return ReconcileResult{
		RecordsDeleted:   deleted,
		RecordsCreated:   len(rows),
		BalancePreserved: preserved,
	}, nil
}

// redistribute builds the new row set and applies the paid pool
// newest-first. Returns the rows and whether the pool could represent the
// carried debt at all.
func redistribute(tenantID engine.TenantID, settings engine.TenancySettings, dates []engine.Date, oldBalance decimal.Decimal) ([]engine.PaymentObligation, bool) {
	rows := make([]engine.PaymentObligation, len(dates))
	for i, d := range dates {
		rows[i] = engine.PaymentObligation{
			ID:         engine.ObligationID(uuid.NewString()),
			TenantID:   tenantID,
			DueDate:    d,
			AmountDue:  settings.RentAmount,
			AmountPaid: decimal.Zero,
			Status:     engine.StatusUnpaid,
		}
	}
	if len(rows) == 0 {
		// Nothing to redistribute; balance reduces to opening arrears.
		return rows, oldBalance.Equal(settings.OpeningArrears)
	}

	total := settings.RentAmount.Mul(decimal.NewFromInt(int64(len(rows))))
	debt := oldBalance.Sub(settings.OpeningArrears) // portion the rows must carry
	pool := total.Sub(debt)                         // amount to mark as paid

	if pool.IsNegative() {
		// New schedule cannot carry the debt: leave every row unpaid and
		// report the shortfall.
		return rows, false
	}

	// Credit overhang (tenant paid ahead of the whole schedule) rides on
	// the newest row as an overpayment.
	excess := decimal.Zero
	if pool.GreaterThan(total) {
		excess = pool.Sub(total)
		pool = total
	}

	for i := len(rows) - 1; i >= 0 && pool.IsPositive(); i-- {
		pay := decimal.Min(pool, rows[i].AmountDue)
		rows[i].AmountPaid = pay
		rows[i].Status = engine.StatusFor(rows[i].AmountDue, pay)
		pool = pool.Sub(pay)
	}
	if excess.IsPositive() {
		last := len(rows) - 1
		rows[last].AmountPaid = rows[last].AmountPaid.Add(excess)
		rows[last].Status = engine.StatusFor(rows[last].AmountDue, rows[last].AmountPaid)
	}
	return rows, true
}
