/*
Package ledger manages the persisted side of the tenancy engine: the
obligation row set, payment recording/allocation, and the regeneration
queue that rebuilds the schedule after a settings change.

PURPOSE:
  The calculation core (engine) is pure; this package is where the side
  effects live. The contracts here are deliberately narrow:

  - Obligation rows are created in batches and mutated only via payment
    allocation; deletion exists solely for the reconciler's atomic
    delete+recreate.
  - Payment history and notices are append-only.
  - Queue items move pending -> processing -> completed|failed; a failed
    item is retried only by an explicit administrative action.

IMPLEMENTATIONS:
  - ledger/memory: in-memory, for tests and development
  - store/sqlite:  production SQLite (WAL)

SEE ALSO:
  - reconciler.go: the only component that deletes rows
  - payments.go:   FIFO payment allocation
  - queue.go, worker.go: serialized regeneration processing
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// TenancyStore persists tenancy settings. Settings mutate ONLY through
// the settings-change operation (reconciliation), never directly.
type TenancyStore interface {
	SaveSettings(ctx context.Context, settings engine.TenancySettings) error

	// GetSettings returns engine.ErrTenantNotFound for unknown tenants.
	GetSettings(ctx context.Context, tenantID engine.TenantID) (engine.TenancySettings, error)

	ListTenants(ctx context.Context) ([]engine.TenantID, error)
}

// ObligationStore persists the obligation ledger rows.
type ObligationStore interface {
	// CreateBatch inserts rows atomically: either all rows exist
	// afterwards or none do.
	CreateBatch(ctx context.Context, rows []engine.PaymentObligation) error

	// ListByTenant returns the tenant's rows ordered by due date.
	ListByTenant(ctx context.Context, tenantID engine.TenantID) ([]engine.PaymentObligation, error)

	// UpdatePayment sets the paid amount and derived status on one row.
	// This is the only row mutation outside reconciliation.
	UpdatePayment(ctx context.Context, id engine.ObligationID, amountPaid decimal.Decimal, status engine.ObligationStatus) error

	// DeleteFrom removes all rows for the tenant falling due on or after
	// 'from', returning the number deleted. Reserved for the reconciler;
	// delete and the following CreateBatch are one logical step.
	DeleteFrom(ctx context.Context, tenantID engine.TenantID, from engine.Date) (int, error)
}

// PaymentStore persists payment history. Append-only.
type PaymentStore interface {
	AppendPayment(ctx context.Context, entry engine.PaymentHistoryEntry) error
	ListPayments(ctx context.Context, tenantID engine.TenantID) ([]engine.PaymentHistoryEntry, error)
}

// NoticeStore persists strike/remedy notices and the frozen remedy
// snapshots. Notices are immutable once appended.
type NoticeStore interface {
	AppendNotice(ctx context.Context, notice engine.StrikeNotice) error
	ListNotices(ctx context.Context, tenantID engine.TenantID) ([]engine.StrikeNotice, error)

	SaveRemedyMetadata(ctx context.Context, meta engine.RemedyNoticeMetadata) error

	// LatestRemedyMetadata returns the most recently issued snapshot, or
	// (nil, nil) when no remedy notice exists.
	LatestRemedyMetadata(ctx context.Context, tenantID engine.TenantID) (*engine.RemedyNoticeMetadata, error)
}

// QueueStore persists regeneration queue items durably, so a request
// survives a crash between delete and insert.
type QueueStore interface {
	Enqueue(ctx context.Context, item RegenerationRequest) error
	Get(ctx context.Context, id string) (RegenerationRequest, error)

	// NextPending returns the oldest pending item, or (nil, nil) when the
	// queue is drained.
	NextPending(ctx context.Context) (*RegenerationRequest, error)

	// HasInFlight reports whether the tenant has a pending or processing
	// item.
	HasInFlight(ctx context.Context, tenantID engine.TenantID) (bool, error)

	SetStatus(ctx context.Context, id string, status QueueStatus, errorMessage string) error
	ListQueueByTenant(ctx context.Context, tenantID engine.TenantID) ([]RegenerationRequest, error)
}

// Store bundles every persistence concern; both implementations satisfy
// it with one value.
type Store interface {
	TenancyStore
	ObligationStore
	PaymentStore
	NoticeStore
	QueueStore
}
