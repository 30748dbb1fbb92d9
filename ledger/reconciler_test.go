package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/ledger"
	"github.com/warp/tenancy-engine/ledger/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func money(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func fixedNow(d engine.Date) func() engine.Date {
	return func() engine.Date { return d }
}

// seedTenancy stores weekly $500 Wednesday settings tracked from
// 2026-01-01 and materializes obligation rows through 2026-01-22.
func seedTenancy(t *testing.T, store *memory.Store, tenantID engine.TenantID) engine.TenancySettings {
	t.Helper()
	ctx := context.Background()

	settings := engine.TenancySettings{
		TenantID:      tenantID,
		Frequency:     engine.Weekly,
		RentAmount:    money(500),
		DueDay:        engine.DueDay{Weekday: time.Wednesday},
		TrackingStart: date(2026, time.January, 1),
	}
	require.NoError(t, store.SaveSettings(ctx, settings))

	keeper := &ledger.ScheduleKeeper{Tenancies: store, Obligations: store}
	created, err := keeper.EnsureThrough(ctx, tenantID, date(2026, time.January, 22))
	require.NoError(t, err)
	require.Equal(t, 3, created, "expected rows for Jan 7, 14, 21")

	return settings
}

func newReconciler(store *memory.Store, asOf engine.Date) *ledger.Reconciler {
	return &ledger.Reconciler{
		Tenancies:   store,
		Obligations: store,
		Calendar:    engine.NewWorkingDayCalendar(engine.NoHolidays{}, ""),
		Now:         fixedNow(asOf),
	}
}

func ledgerBalance(t *testing.T, store *memory.Store, tenantID engine.TenantID, asOf engine.Date) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	settings, err := store.GetSettings(ctx, tenantID)
	require.NoError(t, err)
	rows, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	state, err := engine.CalculateLedgerState(&settings, rows, asOf, nil)
	require.NoError(t, err)
	return state.CurrentBalance
}

// =============================================================================
// BALANCE CONSERVATION
// =============================================================================

func TestRegenerate_RentIncreasePreservesBalance(t *testing.T) {
	// GIVEN: Three $500 rows, the oldest paid, balance $1000
	// WHEN: Rent changes to $600 (same frequency and due day)
	// THEN: The rewritten ledger still reports exactly $1000 owed

	store := memory.New()
	ctx := context.Background()
	asOf := date(2026, time.January, 22)
	seedTenancy(t, store, "tenant-1")

	payments := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := payments.RecordPayment(ctx, "tenant-1", money(500), date(2026, time.January, 8), "")
	require.NoError(t, err)
	require.True(t, ledgerBalance(t, store, "tenant-1", asOf).Equal(money(1000)))

	result, err := newReconciler(store, asOf).Regenerate(ctx, "tenant-1", engine.TenancySettings{
		Frequency:  engine.Weekly,
		RentAmount: money(600),
		DueDay:     engine.DueDay{Weekday: time.Wednesday},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.RecordsDeleted)
	assert.Equal(t, 3, result.RecordsCreated)
	assert.True(t, result.BalancePreserved)
	assert.True(t, ledgerBalance(t, store, "tenant-1", asOf).Equal(money(1000)),
		"balance must be conserved across regeneration")

	// Arrears stay on the oldest rows: the paid pool fills newest-first.
	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, engine.StatusUnpaid, rows[0].Status)
	assert.Equal(t, engine.StatusPaid, rows[2].Status)
}

func TestRegenerate_FrequencyChangePreservesBalance(t *testing.T) {
	// GIVEN: Weekly rows carrying $1000 of debt
	// WHEN: The tenancy moves to $2000 monthly due on the 1st
	// THEN: One new row exists and the balance is still $1000

	store := memory.New()
	ctx := context.Background()
	asOf := date(2026, time.January, 22)
	seedTenancy(t, store, "tenant-1")

	payments := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := payments.RecordPayment(ctx, "tenant-1", money(500), date(2026, time.January, 8), "")
	require.NoError(t, err)

	result, err := newReconciler(store, asOf).Regenerate(ctx, "tenant-1", engine.TenancySettings{
		Frequency:  engine.Monthly,
		RentAmount: money(2000),
		DueDay:     engine.DueDay{DayOfMonth: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.RecordsCreated)
	assert.True(t, result.BalancePreserved)
	assert.True(t, ledgerBalance(t, store, "tenant-1", asOf).Equal(money(1000)))

	// Settings are saved under the new terms.
	saved, err := store.GetSettings(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, engine.Monthly, saved.Frequency)
	assert.True(t, saved.RentAmount.Equal(money(2000)))
	assert.True(t, saved.TrackingStart.Equal(date(2026, time.January, 1)),
		"tracking start carries over")
}

func TestRegenerate_CreditRidesOnNewestRow(t *testing.T) {
	// GIVEN: Tenant overpaid by $100 (balance -100)
	// WHEN: Rent changes
	// THEN: The credit survives as an overpayment on the newest row

	store := memory.New()
	ctx := context.Background()
	asOf := date(2026, time.January, 22)
	seedTenancy(t, store, "tenant-1")

	payments := &ledger.PaymentService{Payments: store, Obligations: store}
	_, err := payments.RecordPayment(ctx, "tenant-1", money(1600), date(2026, time.January, 8), "")
	require.NoError(t, err)
	require.True(t, ledgerBalance(t, store, "tenant-1", asOf).Equal(money(-100)))

	result, err := newReconciler(store, asOf).Regenerate(ctx, "tenant-1", engine.TenancySettings{
		Frequency:  engine.Weekly,
		RentAmount: money(600),
		DueDay:     engine.DueDay{Weekday: time.Wednesday},
	})
	require.NoError(t, err)

	assert.True(t, result.BalancePreserved)
	assert.True(t, ledgerBalance(t, store, "tenant-1", asOf).Equal(money(-100)),
		"credit must not be floored away by regeneration")

	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	newest := rows[len(rows)-1]
	assert.True(t, newest.AmountPaid.GreaterThan(newest.AmountDue),
		"the overpayment rides on the newest row")
}

func TestRegenerate_NewScheduleCannotCarryDebt(t *testing.T) {
	// GIVEN: $1500 of debt
	// WHEN: Rent drops so far the new rows total only $900
	// THEN: Every row is unpaid and the shortfall is flagged, not hidden

	store := memory.New()
	ctx := context.Background()
	asOf := date(2026, time.January, 22)
	seedTenancy(t, store, "tenant-1")

	result, err := newReconciler(store, asOf).Regenerate(ctx, "tenant-1", engine.TenancySettings{
		Frequency:  engine.Weekly,
		RentAmount: money(300),
		DueDay:     engine.DueDay{Weekday: time.Wednesday},
	})
	require.NoError(t, err)

	assert.False(t, result.BalancePreserved)
	rows, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, engine.StatusUnpaid, row.Status)
	}
}

func TestRegenerate_UnknownTenant(t *testing.T) {
	store := memory.New()
	_, err := newReconciler(store, date(2026, time.January, 22)).Regenerate(
		context.Background(), "ghost", engine.TenancySettings{
			Frequency:  engine.Weekly,
			RentAmount: money(500),
			DueDay:     engine.DueDay{Weekday: time.Monday},
		})
	assert.ErrorIs(t, err, engine.ErrTenantNotFound)
}

// =============================================================================
// SCHEDULE KEEPER
// =============================================================================

func TestEnsureThrough_Idempotent(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedTenancy(t, store, "tenant-1")

	keeper := &ledger.ScheduleKeeper{Tenancies: store, Obligations: store}

	// Same horizon again: nothing new.
	created, err := keeper.EnsureThrough(ctx, "tenant-1", date(2026, time.January, 22))
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	// A week later: exactly one more row.
	created, err = keeper.EnsureThrough(ctx, "tenant-1", date(2026, time.January, 29))
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}
