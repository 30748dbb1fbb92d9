// Package memory provides an in-memory ledger.Store for tests and
// development. The engine must work identically from a database row set
// or an in-memory fixture; this is the fixture.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/ledger"
)

// Store keeps everything in maps guarded by one RWMutex. Good enough for
// tests; the sqlite store is the production path.
type Store struct {
	mu          sync.RWMutex
	settings    map[engine.TenantID]engine.TenancySettings
	obligations map[engine.TenantID][]engine.PaymentObligation
	payments    map[engine.TenantID][]engine.PaymentHistoryEntry
	notices     map[engine.TenantID][]engine.StrikeNotice
	remedies    map[engine.TenantID][]engine.RemedyNoticeMetadata
	queue       []ledger.RegenerationRequest
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		settings:    make(map[engine.TenantID]engine.TenancySettings),
		obligations: make(map[engine.TenantID][]engine.PaymentObligation),
		payments:    make(map[engine.TenantID][]engine.PaymentHistoryEntry),
		notices:     make(map[engine.TenantID][]engine.StrikeNotice),
		remedies:    make(map[engine.TenantID][]engine.RemedyNoticeMetadata),
	}
}

// =============================================================================
// TENANCY SETTINGS
// =============================================================================

func (s *Store) SaveSettings(_ context.Context, settings engine.TenancySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.TenantID] = settings
	return nil
}

func (s *Store) GetSettings(_ context.Context, tenantID engine.TenantID) (engine.TenancySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[tenantID]
	if !ok {
		return engine.TenancySettings{}, engine.ErrTenantNotFound
	}
	return settings, nil
}

func (s *Store) ListTenants(_ context.Context) ([]engine.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.TenantID, 0, len(s.settings))
	for id := range s.settings {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (s *Store) CreateBatch(_ context.Context, rows []engine.PaymentObligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.obligations[row.TenantID] = append(s.obligations[row.TenantID], row)
	}
	return nil
}

func (s *Store) ListByTenant(_ context.Context, tenantID engine.TenantID) ([]engine.PaymentObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]engine.PaymentObligation, len(s.obligations[tenantID]))
	copy(rows, s.obligations[tenantID])
	sort.Slice(rows, func(i, j int) bool { return rows[i].DueDate.Before(rows[j].DueDate) })
	return rows, nil
}

func (s *Store) UpdatePayment(_ context.Context, id engine.ObligationID, amountPaid decimal.Decimal, status engine.ObligationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tenantID, rows := range s.obligations {
		for i := range rows {
			if rows[i].ID == id {
				rows[i].AmountPaid = amountPaid
				rows[i].Status = status
				s.obligations[tenantID] = rows
				return nil
			}
		}
	}
	return engine.ErrLedgerInconsistent
}

func (s *Store) DeleteFrom(_ context.Context, tenantID engine.TenantID, from engine.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []engine.PaymentObligation
	deleted := 0
	for _, row := range s.obligations[tenantID] {
		if row.DueDate.AfterOrEqual(from) {
			deleted++
		} else {
			kept = append(kept, row)
		}
	}
	s.obligations[tenantID] = kept
	return deleted, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) AppendPayment(_ context.Context, entry engine.PaymentHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[entry.TenantID] = append(s.payments[entry.TenantID], entry)
	return nil
}

func (s *Store) ListPayments(_ context.Context, tenantID engine.TenantID) ([]engine.PaymentHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.PaymentHistoryEntry, len(s.payments[tenantID]))
	copy(out, s.payments[tenantID])
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// NOTICES
// =============================================================================

func (s *Store) AppendNotice(_ context.Context, notice engine.StrikeNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices[notice.TenantID] = append(s.notices[notice.TenantID], notice)
	return nil
}

func (s *Store) ListNotices(_ context.Context, tenantID engine.TenantID) ([]engine.StrikeNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.StrikeNotice, len(s.notices[tenantID]))
	copy(out, s.notices[tenantID])
	sort.Slice(out, func(i, j int) bool {
		return out[i].OfficialServiceDate.Before(out[j].OfficialServiceDate)
	})
	return out, nil
}

func (s *Store) SaveRemedyMetadata(_ context.Context, meta engine.RemedyNoticeMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remedies[meta.TenantID] = append(s.remedies[meta.TenantID], meta)
	return nil
}

func (s *Store) LatestRemedyMetadata(_ context.Context, tenantID engine.TenantID) (*engine.RemedyNoticeMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metas := s.remedies[tenantID]
	if len(metas) == 0 {
		return nil, nil
	}
	latest := metas[0]
	for _, m := range metas[1:] {
		if m.IssuedAt.After(latest.IssuedAt) {
			latest = m
		}
	}
	out := latest
	out.DueDates = append([]engine.Date(nil), latest.DueDates...)
	return &out, nil
}

// =============================================================================
// REGENERATION QUEUE
// =============================================================================

func (s *Store) Enqueue(_ context.Context, item ledger.RegenerationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, item)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (ledger.RegenerationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.queue {
		if item.ID == id {
			return item, nil
		}
	}
	return ledger.RegenerationRequest{}, ledger.ErrQueueItemNotFound
}

func (s *Store) NextPending(_ context.Context) (*ledger.RegenerationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.queue {
		if item.Status == ledger.QueuePending {
			out := item
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) HasInFlight(_ context.Context, tenantID engine.TenantID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.queue {
		if item.TenantID == tenantID && item.InFlight() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SetStatus(_ context.Context, id string, status ledger.QueueStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].ID == id {
			s.queue[i].Status = status
			s.queue[i].ErrorMessage = errorMessage
			return nil
		}
	}
	return ledger.ErrQueueItemNotFound
}

func (s *Store) ListQueueByTenant(_ context.Context, tenantID engine.TenantID) ([]ledger.RegenerationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.RegenerationRequest
	for _, item := range s.queue {
		if item.TenantID == tenantID {
			out = append(out, item)
		}
	}
	return out, nil
}
