/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store (tenancy settings, obligation rows, payment
  history, notices, regeneration queue) on SQLite. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  tenancies:           rent settings per tenancy
  obligations:         the obligation ledger rows
  payments:            append-only payment history
  notices:             immutable strike/remedy notices
  remedy_metadata:     frozen debt snapshots for remedy notices
  regeneration_queue:  durable settings-change queue

MUTATION DISCIPLINE:
  - payments and notices: INSERT only, no UPDATE/DELETE
  - obligations: UPDATE limited to (amount_paid, status); DELETE limited
    to the reconciler's delete-from-date, paired with the batch insert
  - regeneration_queue: status/error transitions only

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery. The durable queue
  relies on this - a regeneration request survives a crash between
  delete and insert.

USAGE:
  store, err := sqlite.New("./data/tenancy.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/memory:   in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// New opens (and migrates) a SQLite database. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; contention shows up as SQLITE_BUSY unless
	// connections queue behind a single one.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenancies (
		tenant_id       TEXT PRIMARY KEY,
		frequency       TEXT NOT NULL,
		rent_amount     TEXT NOT NULL,
		due_day         TEXT NOT NULL,
		tracking_start  TEXT NOT NULL,
		opening_arrears TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS obligations (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		due_date    TEXT NOT NULL,
		amount_due  TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		status      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_obligations_tenant_due
		ON obligations(tenant_id, due_date);

	CREATE TABLE IF NOT EXISTS payments (
		id        TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		amount    TEXT NOT NULL,
		paid_on   TEXT NOT NULL,
		method    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_payments_tenant_date
		ON payments(tenant_id, paid_on);

	CREATE TABLE IF NOT EXISTS notices (
		id                    TEXT PRIMARY KEY,
		tenant_id             TEXT NOT NULL,
		notice_type           TEXT NOT NULL,
		sent_at               TEXT NOT NULL,
		official_service_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notices_tenant_osd
		ON notices(tenant_id, official_service_date);

	CREATE TABLE IF NOT EXISTS remedy_metadata (
		notice_id  TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL,
		issued_at  TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		total_owed TEXT NOT NULL,
		due_dates  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS regeneration_queue (
		id              TEXT PRIMARY KEY,
		tenant_id       TEXT NOT NULL,
		old_rent_amount TEXT NOT NULL,
		new_rent_amount TEXT NOT NULL,
		old_frequency   TEXT NOT NULL,
		new_frequency   TEXT NOT NULL,
		old_due_day     TEXT NOT NULL,
		new_due_day     TEXT NOT NULL,
		triggered_at    TEXT NOT NULL,
		status          TEXT NOT NULL,
		error_message   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_queue_tenant_status
		ON regeneration_queue(tenant_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt decimal %q: %w", s, err)
	}
	return d, nil
}

// =============================================================================
// TENANCY SETTINGS
// =============================================================================

func (s *Store) SaveSettings(ctx context.Context, settings engine.TenancySettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenancies (tenant_id, frequency, rent_amount, due_day, tracking_start, opening_arrears)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			frequency = excluded.frequency,
			rent_amount = excluded.rent_amount,
			due_day = excluded.due_day,
			tracking_start = excluded.tracking_start,
			opening_arrears = excluded.opening_arrears`,
		string(settings.TenantID), string(settings.Frequency), settings.RentAmount.String(),
		settings.DueDay.String(), settings.TrackingStart.String(), settings.OpeningArrears.String())
	return err
}

func (s *Store) GetSettings(ctx context.Context, tenantID engine.TenantID) (engine.TenancySettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT frequency, rent_amount, due_day, tracking_start, opening_arrears
		FROM tenancies WHERE tenant_id = ?`, string(tenantID))

	var freq, rent, dueDay, start, arrears string
	if err := row.Scan(&freq, &rent, &dueDay, &start, &arrears); err != nil {
		if err == sql.ErrNoRows {
			return engine.TenancySettings{}, engine.ErrTenantNotFound
		}
		return engine.TenancySettings{}, err
	}

	settings := engine.TenancySettings{TenantID: tenantID, Frequency: engine.Frequency(freq)}
	var err error
	if settings.RentAmount, err = scanDecimal(rent); err != nil {
		return engine.TenancySettings{}, err
	}
	if settings.OpeningArrears, err = scanDecimal(arrears); err != nil {
		return engine.TenancySettings{}, err
	}
	if settings.TrackingStart, err = engine.ParseDate(start); err != nil {
		return engine.TenancySettings{}, err
	}
	if settings.DueDay, err = engine.ParseDueDay(settings.Frequency, dueDay); err != nil {
		return engine.TenancySettings{}, err
	}
	return settings, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]engine.TenantID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM tenancies ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TenantID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, engine.TenantID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (s *Store) CreateBatch(ctx context.Context, obligations []engine.PaymentObligation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO obligations (id, tenant_id, due_date, amount_due, amount_paid, status)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range obligations {
		_, err := stmt.ExecContext(ctx, string(o.ID), string(o.TenantID), o.DueDate.String(),
			o.AmountDue.String(), o.AmountPaid.String(), string(o.Status))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListByTenant(ctx context.Context, tenantID engine.TenantID) ([]engine.PaymentObligation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, due_date, amount_due, amount_paid, status
		FROM obligations WHERE tenant_id = ? ORDER BY due_date`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.PaymentObligation
	for rows.Next() {
		var id, due, amountDue, amountPaid, status string
		if err := rows.Scan(&id, &due, &amountDue, &amountPaid, &status); err != nil {
			return nil, err
		}
		o := engine.PaymentObligation{
			ID:       engine.ObligationID(id),
			TenantID: tenantID,
			Status:   engine.ObligationStatus(status),
		}
		if o.DueDate, err = engine.ParseDate(due); err != nil {
			return nil, err
		}
		if o.AmountDue, err = scanDecimal(amountDue); err != nil {
			return nil, err
		}
		if o.AmountPaid, err = scanDecimal(amountPaid); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePayment(ctx context.Context, id engine.ObligationID, amountPaid decimal.Decimal, status engine.ObligationStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE obligations SET amount_paid = ?, status = ? WHERE id = ?`,
		amountPaid.String(), string(status), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrLedgerInconsistent
	}
	return nil
}

func (s *Store) DeleteFrom(ctx context.Context, tenantID engine.TenantID, from engine.Date) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM obligations WHERE tenant_id = ? AND due_date >= ?`,
		string(tenantID), from.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// PAYMENTS (append-only)
// =============================================================================

func (s *Store) AppendPayment(ctx context.Context, entry engine.PaymentHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, tenant_id, amount, paid_on, method)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, string(entry.TenantID), entry.Amount.String(), entry.Date.String(), entry.Method)
	return err
}

func (s *Store) ListPayments(ctx context.Context, tenantID engine.TenantID) ([]engine.PaymentHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, paid_on, method
		FROM payments WHERE tenant_id = ? ORDER BY paid_on`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.PaymentHistoryEntry
	for rows.Next() {
		var id, amount, paidOn string
		var method sql.NullString
		if err := rows.Scan(&id, &amount, &paidOn, &method); err != nil {
			return nil, err
		}
		entry := engine.PaymentHistoryEntry{ID: id, TenantID: tenantID, Method: method.String}
		if entry.Amount, err = scanDecimal(amount); err != nil {
			return nil, err
		}
		if entry.Date, err = engine.ParseDate(paidOn); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// NOTICES (immutable)
// =============================================================================

func (s *Store) AppendNotice(ctx context.Context, notice engine.StrikeNotice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notices (id, tenant_id, notice_type, sent_at, official_service_date)
		VALUES (?, ?, ?, ?, ?)`,
		string(notice.ID), string(notice.TenantID), string(notice.Type),
		notice.SentAt.String(), notice.OfficialServiceDate.String())
	return err
}

func (s *Store) ListNotices(ctx context.Context, tenantID engine.TenantID) ([]engine.StrikeNotice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, notice_type, sent_at, official_service_date
		FROM notices WHERE tenant_id = ? ORDER BY official_service_date`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.StrikeNotice
	for rows.Next() {
		var id, noticeType, sentAt, osd string
		if err := rows.Scan(&id, &noticeType, &sentAt, &osd); err != nil {
			return nil, err
		}
		n := engine.StrikeNotice{
			ID:       engine.NoticeID(id),
			TenantID: tenantID,
			Type:     engine.NoticeType(noticeType),
		}
		if n.SentAt, err = engine.ParseDate(sentAt); err != nil {
			return nil, err
		}
		if n.OfficialServiceDate, err = engine.ParseDate(osd); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) SaveRemedyMetadata(ctx context.Context, meta engine.RemedyNoticeMetadata) error {
	dates := make([]string, len(meta.DueDates))
	for i, d := range meta.DueDates {
		dates[i] = d.String()
	}
	encoded, err := json.Marshal(dates)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO remedy_metadata (notice_id, tenant_id, issued_at, expires_at, total_owed, due_dates)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(meta.NoticeID), string(meta.TenantID), meta.IssuedAt.String(),
		meta.ExpiresAt.String(), meta.TotalOwed.String(), string(encoded))
	return err
}

func (s *Store) LatestRemedyMetadata(ctx context.Context, tenantID engine.TenantID) (*engine.RemedyNoticeMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT notice_id, issued_at, expires_at, total_owed, due_dates
		FROM remedy_metadata WHERE tenant_id = ?
		ORDER BY issued_at DESC LIMIT 1`, string(tenantID))

	var noticeID, issuedAt, expiresAt, totalOwed, dueDates string
	if err := row.Scan(&noticeID, &issuedAt, &expiresAt, &totalOwed, &dueDates); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	meta := engine.RemedyNoticeMetadata{
		NoticeID: engine.NoticeID(noticeID),
		TenantID: tenantID,
	}
	var err error
	if meta.IssuedAt, err = engine.ParseDate(issuedAt); err != nil {
		return nil, err
	}
	if meta.ExpiresAt, err = engine.ParseDate(expiresAt); err != nil {
		return nil, err
	}
	if meta.TotalOwed, err = scanDecimal(totalOwed); err != nil {
		return nil, err
	}
	var dates []string
	if err := json.Unmarshal([]byte(dueDates), &dates); err != nil {
		return nil, fmt.Errorf("corrupt remedy due_dates: %w", err)
	}
	for _, raw := range dates {
		d, err := engine.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		meta.DueDates = append(meta.DueDates, d)
	}
	return &meta, nil
}

// =============================================================================
// REGENERATION QUEUE
// =============================================================================

func (s *Store) Enqueue(ctx context.Context, item ledger.RegenerationRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO regeneration_queue
			(id, tenant_id, old_rent_amount, new_rent_amount, old_frequency, new_frequency,
			 old_due_day, new_due_day, triggered_at, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.TenantID),
		item.OldRentAmount.String(), item.NewRentAmount.String(),
		string(item.OldFrequency), string(item.NewFrequency),
		item.OldDueDay, item.NewDueDay,
		item.TriggeredAt.UTC().Format(time.RFC3339), string(item.Status), item.ErrorMessage)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (ledger.RegenerationRequest, error) {
	row := s.db.QueryRowContext(ctx, queueSelect+` WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return ledger.RegenerationRequest{}, ledger.ErrQueueItemNotFound
	}
	return item, err
}

func (s *Store) NextPending(ctx context.Context) (*ledger.RegenerationRequest, error) {
	row := s.db.QueryRowContext(ctx, queueSelect+` WHERE status = ? ORDER BY triggered_at LIMIT 1`,
		string(ledger.QueuePending))
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) HasInFlight(ctx context.Context, tenantID engine.TenantID) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM regeneration_queue
		WHERE tenant_id = ? AND status IN (?, ?)`,
		string(tenantID), string(ledger.QueuePending), string(ledger.QueueProcessing))
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetStatus(ctx context.Context, id string, status ledger.QueueStatus, errorMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE regeneration_queue SET status = ?, error_message = ? WHERE id = ?`,
		string(status), errorMessage, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrQueueItemNotFound
	}
	return nil
}

func (s *Store) ListQueueByTenant(ctx context.Context, tenantID engine.TenantID) ([]ledger.RegenerationRequest, error) {
	rows, err := s.db.QueryContext(ctx, queueSelect+` WHERE tenant_id = ? ORDER BY triggered_at`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.RegenerationRequest
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

const queueSelect = `
	SELECT id, tenant_id, old_rent_amount, new_rent_amount, old_frequency, new_frequency,
	       old_due_day, new_due_day, triggered_at, status, error_message
	FROM regeneration_queue`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (ledger.RegenerationRequest, error) {
	var item ledger.RegenerationRequest
	var tenantID, oldRent, newRent, oldFreq, newFreq, triggeredAt, status string
	var errorMessage sql.NullString

	err := row.Scan(&item.ID, &tenantID, &oldRent, &newRent, &oldFreq, &newFreq,
		&item.OldDueDay, &item.NewDueDay, &triggeredAt, &status, &errorMessage)
	if err != nil {
		return ledger.RegenerationRequest{}, err
	}

	item.TenantID = engine.TenantID(tenantID)
	item.OldFrequency = engine.Frequency(oldFreq)
	item.NewFrequency = engine.Frequency(newFreq)
	item.Status = ledger.QueueStatus(status)
	item.ErrorMessage = errorMessage.String
	if item.OldRentAmount, err = scanDecimal(oldRent); err != nil {
		return ledger.RegenerationRequest{}, err
	}
	if item.NewRentAmount, err = scanDecimal(newRent); err != nil {
		return ledger.RegenerationRequest{}, err
	}
	if item.TriggeredAt, err = time.Parse(time.RFC3339, triggeredAt); err != nil {
		return ledger.RegenerationRequest{}, fmt.Errorf("corrupt triggered_at %q: %w", triggeredAt, err)
	}
	return item, nil
}
