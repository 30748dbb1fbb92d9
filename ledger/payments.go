/*
payments.go - Payment recording and FIFO allocation

PURPOSE:
  Records actual money received and allocates it across the obligation
  ledger. Allocation is FIFO: the oldest outstanding row is satisfied
  first, mirroring how the rent state calculator folds payments. Money
  beyond the whole ledger rides on the newest row as an overpayment so
  the ledger-derived balance keeps carrying the credit.
*/
package ledger

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
)

// PaymentService records payments and keeps the obligation rows in step.
type PaymentService struct {
	Payments    PaymentStore
	Obligations ObligationStore
}

// RecordPayment appends a payment history entry and allocates the amount
// FIFO across outstanding rows. The history entry is the ground truth;
// row updates are the derived view.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID engine.TenantID, amount decimal.Decimal, date engine.Date, method string) (engine.PaymentHistoryEntry, error) {
	if !amount.IsPositive() {
		return engine.PaymentHistoryEntry{}, &engine.InputError{Field: "amount", Value: amount.String(), Reason: "must be positive"}
	}

	entry := engine.PaymentHistoryEntry{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Amount:   amount,
		Date:     date,
		Method:   method,
	}
	if err := s.Payments.AppendPayment(ctx, entry); err != nil {
		return engine.PaymentHistoryEntry{}, err
	}

	if err := s.allocate(ctx, tenantID, amount); err != nil {
		return engine.PaymentHistoryEntry{}, err
	}
	return entry, nil
}

func (s *PaymentService) allocate(ctx context.Context, tenantID engine.TenantID, amount decimal.Decimal) error {
	rows, err := s.Obligations.ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DueDate.Before(rows[j].DueDate) })

	remaining := amount
	for i := range rows {
		if !remaining.IsPositive() {
			break
		}
		out := rows[i].Outstanding()
		if !out.IsPositive() {
			continue
		}
		pay := decimal.Min(remaining, out)
		newPaid := rows[i].AmountPaid.Add(pay)
		if err := s.Obligations.UpdatePayment(ctx, rows[i].ID, newPaid, engine.StatusFor(rows[i].AmountDue, newPaid)); err != nil {
			return err
		}
		// Keep the local snapshot in step: the overflow branch below
		// must see what this row now carries.
		rows[i].AmountPaid = newPaid
		remaining = remaining.Sub(pay)
	}

	// Credit: everything outstanding is covered, park the rest on the
	// newest row.
	if remaining.IsPositive() && len(rows) > 0 {
		last := rows[len(rows)-1]
		newPaid := last.AmountPaid.Add(remaining)
		return s.Obligations.UpdatePayment(ctx, last.ID, newPaid, engine.StatusFor(last.AmountDue, newPaid))
	}
	return nil
}
