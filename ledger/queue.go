/*
queue.go - Durable regeneration queue

PURPOSE:
  A settings change must rebuild the tenant's obligation schedule, and
  that rebuild is a delete-then-insert against persisted state. The
  queue makes the request durable (it survives a crash between delete
  and insert) and serializes processing: at most one logical
  regeneration is outstanding per tenant.

LIFECYCLE:
  pending -> processing -> completed | failed

  Failed items are NOT retried automatically; Retry(id) is an explicit
  administrative operation that re-queues the item.

COMPLETION NOTIFICATION:
  One mechanism only: Await blocks on a per-item channel with a bounded
  timeout. Timeout is treated as "assume complete" - ordering is relaxed
  in favour of liveness. (The poll/subscribe hybrid this replaces had a
  duplicate-completion race.)

NO CANCELLATION:
  A regeneration runs to completion or fails terminally; there is no
  partial or cancelled state.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
)

// ErrQueueItemNotFound is returned for unknown regeneration queue IDs.
var ErrQueueItemNotFound = errors.New("regeneration queue item not found")

// =============================================================================
// QUEUE RECORD
// =============================================================================

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// RegenerationRequest is the durable queue record for one settings
// change. Old values are captured for audit; new values are what the
// worker applies.
type RegenerationRequest struct {
	ID       string
	TenantID engine.TenantID

	OldRentAmount decimal.Decimal
	NewRentAmount decimal.Decimal
	OldFrequency  engine.Frequency
	NewFrequency  engine.Frequency
	OldDueDay     string
	NewDueDay     string

	TriggeredAt  time.Time
	Status       QueueStatus
	ErrorMessage string
}

// InFlight reports whether the item still occupies the tenant's
// single regeneration slot.
func (r RegenerationRequest) InFlight() bool {
	return r.Status == QueuePending || r.Status == QueueProcessing
}

// =============================================================================
// QUEUE - enqueue + single-mechanism completion notification
// =============================================================================

// Queue wraps a QueueStore with in-flight enforcement and per-item
// completion channels.
type Queue struct {
	store QueueStore

	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func NewQueue(store QueueStore) *Queue {
	return &Queue{store: store, waiters: make(map[string]chan struct{})}
}

// SettingsChange is the caller-facing input for a regeneration request.
type SettingsChange struct {
	TenantID   engine.TenantID
	RentAmount decimal.Decimal
	Frequency  engine.Frequency
	DueDay     string
}

// Enqueue records a regeneration request. Returns
// engine.ErrRegenerationInFlight when the tenant already has one
// outstanding - at-most-one logical regeneration per tenant.
func (q *Queue) Enqueue(ctx context.Context, old engine.TenancySettings, change SettingsChange) (RegenerationRequest, error) {
	if _, err := engine.ParseDueDay(change.Frequency, change.DueDay); err != nil {
		return RegenerationRequest{}, err
	}
	if !change.RentAmount.IsPositive() {
		return RegenerationRequest{}, &engine.InputError{Field: "rent_amount", Value: change.RentAmount.String(), Reason: "must be positive"}
	}

	// The in-flight check and the insert must be one atomic step:
	// without the lock, two concurrent changes for the same tenant can
	// both pass the check and both land in the queue.
	q.mu.Lock()
	defer q.mu.Unlock()

	inFlight, err := q.store.HasInFlight(ctx, change.TenantID)
	if err != nil {
		return RegenerationRequest{}, err
	}
	if inFlight {
		return RegenerationRequest{}, engine.ErrRegenerationInFlight
	}

	item := RegenerationRequest{
		ID:            uuid.NewString(),
		TenantID:      change.TenantID,
		OldRentAmount: old.RentAmount,
		NewRentAmount: change.RentAmount,
		OldFrequency:  old.Frequency,
		NewFrequency:  change.Frequency,
		OldDueDay:     old.DueDay.String(),
		NewDueDay:     change.DueDay,
		TriggeredAt:   time.Now().UTC(),
		Status:        QueuePending,
	}
	if err := q.store.Enqueue(ctx, item); err != nil {
		return RegenerationRequest{}, fmt.Errorf("enqueue regeneration: %w", err)
	}
	return item, nil
}

// Await blocks until the item completes (or fails), the context is
// cancelled, or the timeout elapses. A timeout returns nil: the caller
// assumes completion and re-reads state.
func (q *Queue) Await(ctx context.Context, id string, timeout time.Duration) error {
	q.mu.Lock()
	// Already terminal? Don't wait on a notification that has fired.
	if item, err := q.store.Get(ctx, id); err == nil && !item.InFlight() {
		q.mu.Unlock()
		return nil
	}
	ch, ok := q.waiters[id]
	if !ok {
		ch = make(chan struct{})
		q.waiters[id] = ch
	}
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return nil // assume complete; liveness over ordering
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyDone releases every waiter for the item. Called by the worker
// after the item reaches a terminal status.
func (q *Queue) notifyDone(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.waiters[id]; ok {
		close(ch)
		delete(q.waiters, id)
	}
}

// Retry re-queues a failed item. Administrative operation: failed items
// are never retried automatically.
func (q *Queue) Retry(ctx context.Context, id string) (RegenerationRequest, error) {
	item, err := q.store.Get(ctx, id)
	if err != nil {
		return RegenerationRequest{}, err
	}
	if item.Status != QueueFailed {
		return RegenerationRequest{}, &engine.InputError{Field: "status", Value: string(item.Status), Reason: "only failed items can be retried"}
	}
	if err := q.store.SetStatus(ctx, id, QueuePending, ""); err != nil {
		return RegenerationRequest{}, err
	}
	item.Status = QueuePending
	item.ErrorMessage = ""
	return item, nil
}

// Get returns the queue record.
func (q *Queue) Get(ctx context.Context, id string) (RegenerationRequest, error) {
	return q.store.Get(ctx, id)
}
