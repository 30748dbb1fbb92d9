/*
handlers.go - HTTP handlers for the tenancy engine

PURPOSE:
  Exposes the calculation engine and the ledger over REST. Handlers
  parse/validate input, delegate to the engine and ledger services, and
  serialize results. No business rules live here.

ENDPOINTS:
  POST /api/tenancies                      Create tenancy
  GET  /api/tenancies/{id}/rent-state      Balance/overdue snapshot
  GET  /api/tenancies/{id}/compliance      Strikes, remedy, tribunal
  GET  /api/tenancies/{id}/ledger          Obligation rows
  POST /api/tenancies/{id}/payments        Record payment
  POST /api/tenancies/{id}/notices         Append strike/remedy notice
  PUT  /api/tenancies/{id}/settings        Settings change (queued regen)
  GET  /api/tenancies/{id}/export.csv      GST CSV download
  GET  /api/compliance/queue/{id}          Regeneration item status
  POST /api/compliance/queue/{id}/retry    Admin retry of failed item

EVALUATION INSTANT:
  Read endpoints accept ?as_of=2006-01-02 for simulation/testing;
  default is today. The engine itself never reads the clock.

ERROR MAPPING:
  400 invalid input, 404 unknown tenant/item, 409 regeneration already
  in flight, 500 everything else.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/export"
	"github.com/warp/tenancy-engine/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Queue    *ledger.Queue
	Payments *ledger.PaymentService
	Keeper   *ledger.ScheduleKeeper
	Calendar *engine.WorkingDayCalendar

	// AwaitTimeout bounds how long a settings change blocks on the
	// regeneration worker before assuming completion.
	AwaitTimeout time.Duration

	// Now is injectable for tests; defaults to engine.Today.
	Now func() engine.Date
}

func NewHandler(store ledger.Store, queue *ledger.Queue, cal *engine.WorkingDayCalendar) *Handler {
	return &Handler{
		Store:        store,
		Queue:        queue,
		Payments:     &ledger.PaymentService{Payments: store, Obligations: store},
		Keeper:       &ledger.ScheduleKeeper{Tenancies: store, Obligations: store},
		Calendar:     cal,
		AwaitTimeout: 10 * time.Second,
	}
}

func (h *Handler) now() engine.Date {
	if h.Now != nil {
		return h.Now()
	}
	return engine.Today()
}

// asOf resolves the evaluation instant from the query string.
func (h *Handler) asOf(r *http.Request) (engine.Date, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.now(), nil
	}
	return engine.ParseDate(raw)
}

// =============================================================================
// TENANCIES
// =============================================================================

func (h *Handler) CreateTenancy(w http.ResponseWriter, r *http.Request) {
	var req CreateTenancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	freq, err := engine.ParseFrequency(req.Frequency)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dueDay, err := engine.ParseDueDay(freq, req.DueDay)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rent, err := parseAmount("rent_amount", req.RentAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	start, err := engine.ParseDate(req.TrackingStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	arrears := decimal.Zero
	if req.OpeningArrears != "" {
		if arrears, err = parseAmount("opening_arrears", req.OpeningArrears); err != nil {
			writeEngineError(w, err)
			return
		}
	}

	settings := engine.TenancySettings{
		TenantID:       engine.TenantID(req.TenantID),
		Frequency:      freq,
		RentAmount:     rent,
		DueDay:         dueDay,
		TrackingStart:  start,
		OpeningArrears: arrears,
	}
	if settings.TenantID == "" {
		settings.TenantID = engine.TenantID(uuid.NewString())
	}
	if err := settings.Validate(); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.Store.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := h.Keeper.EnsureThrough(r.Context(), settings.TenantID, h.now()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"tenant_id": string(settings.TenantID)})
}

// =============================================================================
// RENT STATE
// =============================================================================

func (h *Handler) GetRentState(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	settings, err := h.Store.GetSettings(r.Context(), tenantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := engine.CalculateRentState(&settings, payments, asOf, h.Calendar)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRentStateResponse(result))
}

// =============================================================================
// COMPLIANCE
// =============================================================================

func (h *Handler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	settings, err := h.Store.GetSettings(r.Context(), tenantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rentState, err := engine.CalculateRentState(&settings, payments, asOf, h.Calendar)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	notices, err := h.Store.ListNotices(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	remedyMeta, err := h.Store.LatestRemedyMetadata(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	obligations, err := h.Store.ListByTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	state := engine.EvaluateCompliance(tenantID, notices, remedyMeta, obligations, rentState.WorkingDaysOverdue, asOf)
	writeJSON(w, http.StatusOK, toComplianceResponse(state, rentState.WorkingDaysOverdue))
}

// =============================================================================
// LEDGER
// =============================================================================

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))

	if _, err := h.Keeper.EnsureThrough(r.Context(), tenantID, h.now()); err != nil {
		writeEngineError(w, err)
		return
	}
	rows, err := h.Store.ListByTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponses(rows))
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Top up rows first so the allocation sees every due date.
	if _, err := h.Keeper.EnsureThrough(r.Context(), tenantID, h.now()); err != nil {
		writeEngineError(w, err)
		return
	}
	entry, err := h.Payments.RecordPayment(r.Context(), tenantID, amount, date, req.Method)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"payment_id": entry.ID})
}

// =============================================================================
// NOTICES
// =============================================================================

func (h *Handler) AppendNotice(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))

	var req AppendNoticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	noticeType := engine.NoticeType(req.Type)
	if !noticeType.IsStrike() && noticeType != engine.NoticeRemedy {
		writeError(w, http.StatusBadRequest, &engine.InputError{Field: "type", Value: req.Type, Reason: "unknown notice type"})
		return
	}
	sentAt, err := engine.ParseDate(req.SentAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	osd, err := engine.ParseDate(req.OfficialServiceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	notice := engine.StrikeNotice{
		ID:                  engine.NoticeID(uuid.NewString()),
		TenantID:            tenantID,
		Type:                noticeType,
		SentAt:              sentAt,
		OfficialServiceDate: osd,
	}
	if err := h.Store.AppendNotice(r.Context(), notice); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// A remedy notice freezes the debt snapshot at issuance.
	if noticeType == engine.NoticeRemedy {
		if _, err := h.Keeper.EnsureThrough(r.Context(), tenantID, sentAt); err != nil {
			writeEngineError(w, err)
			return
		}
		rows, err := h.Store.ListByTenant(r.Context(), tenantID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		meta := engine.NewRemedyMetadata(notice.ID, tenantID, sentAt, rows)
		if err := h.Store.SaveRemedyMetadata(r.Context(), meta); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"notice_id": string(notice.ID)})
}

// =============================================================================
// SETTINGS CHANGE (queued regeneration)
// =============================================================================

func (h *Handler) ChangeSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))

	var req ChangeSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	freq, err := engine.ParseFrequency(req.Frequency)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rent, err := parseAmount("rent_amount", req.RentAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	old, err := h.Store.GetSettings(r.Context(), tenantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	item, err := h.Queue.Enqueue(r.Context(), old, ledger.SettingsChange{
		TenantID:   tenantID,
		RentAmount: rent,
		Frequency:  freq,
		DueDay:     req.DueDay,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Block until the worker finishes, bounded. Timeout assumes complete.
	if err := h.Queue.Await(r.Context(), item.ID, h.AwaitTimeout); err != nil {
		log.Printf("[API] await regeneration %s: %v", item.ID, err)
	}

	final, err := h.Queue.Get(r.Context(), item.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueItemResponse(final))
}

// =============================================================================
// REGENERATION QUEUE
// =============================================================================

func (h *Handler) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueItemResponse(item))
}

func (h *Handler) RetryQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Queue.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueItemResponse(item))
}

// =============================================================================
// EXPORT
// =============================================================================

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetSettings(r.Context(), tenantID); err != nil {
		writeEngineError(w, err)
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(tenantID)+"-rent.csv"))
	if err := export.WriteCSV(w, export.BuildRows(string(tenantID), payments)); err != nil {
		log.Printf("[API] export for %s: %v", tenantID, err)
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// writeEngineError maps engine/ledger errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsInputError(err), errors.Is(err, engine.ErrNoSettings):
		writeError(w, http.StatusBadRequest, err)
	case engine.IsNotFound(err), errors.Is(err, ledger.ErrQueueItemNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrRegenerationInFlight):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
