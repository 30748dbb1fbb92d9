package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/ledger"
	"github.com/warp/tenancy-engine/ledger/memory"
)

// =============================================================================
// FIFO ALLOCATION
// =============================================================================

func TestRecordPayment_OldestRowFirst(t *testing.T) {
	// GIVEN: Three unpaid $500 rows
	// WHEN: The tenant pays $700
	// THEN: Jan 7 is paid in full, Jan 14 partially, Jan 21 untouched

	store := memory.New()
	ctx := context.Background()
	seedTenancy(t, store, "tenant-1")

	svc := &ledger.PaymentService{Payments: store, Obligations: store}
	entry, err := svc.RecordPayment(ctx, "tenant-1", money(700), date(2026, time.January, 15), "bank transfer")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, engine.StatusPaid, rows[0].Status)
	assert.True(t, rows[0].AmountPaid.Equal(money(500)))

	assert.Equal(t, engine.StatusPartial, rows[1].Status)
	assert.True(t, rows[1].AmountPaid.Equal(money(200)))

	assert.Equal(t, engine.StatusUnpaid, rows[2].Status)
	assert.True(t, rows[2].AmountPaid.IsZero())
}

func TestRecordPayment_SecondPaymentContinuesWhereFirstStopped(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedTenancy(t, store, "tenant-1")

	svc := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := svc.RecordPayment(ctx, "tenant-1", money(700), date(2026, time.January, 15), "")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, "tenant-1", money(300), date(2026, time.January, 16), "")
	require.NoError(t, err)

	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaid, rows[1].Status, "second payment tops up the partial row")
	assert.True(t, rows[1].AmountPaid.Equal(money(500)))
	assert.Equal(t, engine.StatusUnpaid, rows[2].Status)
}

func TestRecordPayment_CreditParksOnNewestRow(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedTenancy(t, store, "tenant-1")

	svc := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := svc.RecordPayment(ctx, "tenant-1", money(1600), date(2026, time.January, 15), "")
	require.NoError(t, err)

	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	newest := rows[len(rows)-1]
	assert.True(t, newest.AmountPaid.Equal(money(600)), "100 credit rides on the newest row")
	assert.Equal(t, engine.StatusPaid, newest.Status)
}

func TestRecordPayment_NonPositiveAmountRejected(t *testing.T) {
	store := memory.New()
	seedTenancy(t, store, "tenant-1")

	svc := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := svc.RecordPayment(context.Background(), "tenant-1", money(0), date(2026, time.January, 15), "")
	assert.True(t, engine.IsInputError(err))

	// Nothing was appended to the history.
	payments, listErr := store.ListPayments(context.Background(), "tenant-1")
	require.NoError(t, listErr)
	assert.Empty(t, payments)
}

func TestRecordPayment_HistoryIsGroundTruth(t *testing.T) {
	// The history entry and the row mutations must describe the same money.
	store := memory.New()
	ctx := context.Background()
	seedTenancy(t, store, "tenant-1")

	svc := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := svc.RecordPayment(ctx, "tenant-1", money(1200), date(2026, time.January, 15), "cash")
	require.NoError(t, err)

	payments, err := store.ListPayments(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(money(1200)))
	assert.Equal(t, "cash", payments[0].Method)

	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	allocated := money(0)
	for _, row := range rows {
		allocated = allocated.Add(row.AmountPaid)
	}
	assert.True(t, allocated.Equal(money(1200)), "allocation conserves the payment")
}
