/*
schedule.go - Obligation row top-up

PURPOSE:
  Obligation rows are persisted, but due dates keep arriving. The
  ScheduleKeeper brings a tenant's row set up to date by creating rows
  for due dates that have passed since the last one was persisted.
  Idempotent: existing due dates are never touched, only missing ones
  are appended, so it is safe to run before every ledger read.
*/
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
)

// ScheduleKeeper tops up obligation rows through a given date.
type ScheduleKeeper struct {
	Tenancies   TenancyStore
	Obligations ObligationStore
}

// EnsureThrough creates any missing obligation rows with due dates up to
// and including 'through'. Returns the number of rows created.
func (k *ScheduleKeeper) EnsureThrough(ctx context.Context, tenantID engine.TenantID, through engine.Date) (int, error) {
	settings, err := k.Tenancies.GetSettings(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	sched, err := engine.GenerateDueDates(settings.Frequency, settings.DueDay, settings.TrackingStart, through)
	if err != nil {
		return 0, err
	}

	existing, err := k.Obligations.ListByTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, row := range existing {
		have[row.DueDate.String()] = true
	}

	var missing []engine.PaymentObligation
	for _, d := range sched.Dates {
		if have[d.String()] {
			continue
		}
		missing = append(missing, engine.PaymentObligation{
			ID:         engine.ObligationID(uuid.NewString()),
			TenantID:   tenantID,
			DueDate:    d,
			AmountDue:  settings.RentAmount,
			AmountPaid: decimal.Zero,
			Status:     engine.StatusUnpaid,
		})
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := k.Obligations.CreateBatch(ctx, missing); err != nil {
		return 0, err
	}
	return len(missing), nil
}
