/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  JSON boundary types. Money crosses the wire as strings ("520.00") so
  nothing downstream is tempted to float it; dates as "2006-01-02".
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateTenancyRequest struct {
	TenantID       string `json:"tenant_id"`
	Frequency      string `json:"frequency"`
	RentAmount     string `json:"rent_amount"`
	DueDay         string `json:"due_day"`
	TrackingStart  string `json:"tracking_start"`
	OpeningArrears string `json:"opening_arrears,omitempty"`
}

type RecordPaymentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
	Method string `json:"method,omitempty"`
}

type AppendNoticeRequest struct {
	Type                string `json:"type"`
	SentAt              string `json:"sent_at"`
	OfficialServiceDate string `json:"official_service_date"`
}

type ChangeSettingsRequest struct {
	Frequency  string `json:"frequency"`
	RentAmount string `json:"rent_amount"`
	DueDay     string `json:"due_day"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type RentStateResponse struct {
	TenantID           string `json:"tenant_id"`
	AsOf               string `json:"as_of"`
	CurrentBalance     string `json:"current_balance"`
	DaysOverdue        int    `json:"days_overdue"`
	WorkingDaysOverdue int    `json:"working_days_overdue"`
	PaidUntil          string `json:"paid_until,omitempty"`
	OldestUnpaidDue    string `json:"oldest_unpaid_due,omitempty"`
	Truncated          bool   `json:"truncated,omitempty"`
}

func toRentStateResponse(r *engine.RentCalculationResult) RentStateResponse {
	resp := RentStateResponse{
		TenantID:           string(r.TenantID),
		AsOf:               r.AsOf.String(),
		CurrentBalance:     r.CurrentBalance.StringFixed(2),
		DaysOverdue:        r.DaysOverdue,
		WorkingDaysOverdue: r.WorkingDaysOverdue,
		Truncated:          r.Truncated,
	}
	if !r.PaidUntil.IsZero() {
		resp.PaidUntil = r.PaidUntil.String()
	}
	if !r.OldestUnpaidDue.IsZero() {
		resp.OldestUnpaidDue = r.OldestUnpaidDue.String()
	}
	return resp
}

type ObligationResponse struct {
	ID         string `json:"id"`
	DueDate    string `json:"due_date"`
	AmountDue  string `json:"amount_due"`
	AmountPaid string `json:"amount_paid"`
	Status     string `json:"status"`
}

func toObligationResponses(rows []engine.PaymentObligation) []ObligationResponse {
	out := make([]ObligationResponse, len(rows))
	for i, row := range rows {
		out[i] = ObligationResponse{
			ID:         string(row.ID),
			DueDate:    row.DueDate.String(),
			AmountDue:  row.AmountDue.StringFixed(2),
			AmountPaid: row.AmountPaid.StringFixed(2),
			Status:     string(row.Status),
		}
	}
	return out
}

type RemedyStatusResponse struct {
	NoticeID          string `json:"notice_id"`
	IssuedAt          string `json:"issued_at"`
	ExpiresAt         string `json:"expires_at"`
	Remedied          bool   `json:"remedied"`
	Expired           bool   `json:"expired"`
	CanFileToTribunal bool   `json:"can_file_to_tribunal"`
	AmountOutstanding string `json:"amount_outstanding"`
}

type TribunalWindowResponse struct {
	OpensAt       string `json:"opens_at"`
	Deadline      string `json:"deadline"`
	DaysRemaining int    `json:"days_remaining"`
	IsOpen        bool   `json:"is_open"`
}

type ComplianceResponse struct {
	TenantID           string                  `json:"tenant_id"`
	AsOf               string                  `json:"as_of"`
	ActiveStrikeCount  int                     `json:"active_strike_count"`
	WorkingDaysOverdue int                     `json:"working_days_overdue"`
	Tiers              [3]string               `json:"tiers"`
	WindowAnchor       string                  `json:"window_anchor,omitempty"`
	WindowExpiresAt    string                  `json:"window_expires_at,omitempty"`
	WindowExpired      bool                    `json:"window_expired"`
	Remedy             *RemedyStatusResponse   `json:"remedy,omitempty"`
	Tribunal           *TribunalWindowResponse `json:"tribunal,omitempty"`
}

func toComplianceResponse(state engine.ComplianceState, workingDaysOverdue int) ComplianceResponse {
	resp := ComplianceResponse{
		TenantID:           string(state.TenantID),
		AsOf:               state.AsOf.String(),
		ActiveStrikeCount:  state.ActiveStrikeCount,
		WorkingDaysOverdue: workingDaysOverdue,
		WindowExpired:      state.Window.IsExpired,
	}
	for i, tier := range state.Tiers {
		resp.Tiers[i] = string(tier)
	}
	if !state.Window.Anchor.IsZero() {
		resp.WindowAnchor = state.Window.Anchor.String()
		resp.WindowExpiresAt = state.Window.ExpiresAt.String()
	}
	if state.Remedy != nil {
		resp.Remedy = &RemedyStatusResponse{
			NoticeID:          string(state.Remedy.NoticeID),
			IssuedAt:          state.Remedy.IssuedAt.String(),
			ExpiresAt:         state.Remedy.ExpiresAt.String(),
			Remedied:          state.Remedy.Remedied,
			Expired:           state.Remedy.Expired,
			CanFileToTribunal: state.Remedy.CanFileToTribunal,
			AmountOutstanding: state.Remedy.AmountOutstanding.StringFixed(2),
		}
	}
	if state.Tribunal != nil {
		resp.Tribunal = &TribunalWindowResponse{
			OpensAt:       state.Tribunal.OpensAt.String(),
			Deadline:      state.Tribunal.Deadline.String(),
			DaysRemaining: state.Tribunal.DaysRemaining,
			IsOpen:        state.Tribunal.IsOpen,
		}
	}
	return resp
}

type QueueItemResponse struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	OldRentAmount string `json:"old_rent_amount"`
	NewRentAmount string `json:"new_rent_amount"`
	OldFrequency  string `json:"old_frequency"`
	NewFrequency  string `json:"new_frequency"`
	OldDueDay     string `json:"old_due_day"`
	NewDueDay     string `json:"new_due_day"`
	TriggeredAt   string `json:"triggered_at"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

func toQueueItemResponse(item ledger.RegenerationRequest) QueueItemResponse {
	return QueueItemResponse{
		ID:            item.ID,
		TenantID:      string(item.TenantID),
		OldRentAmount: item.OldRentAmount.StringFixed(2),
		NewRentAmount: item.NewRentAmount.StringFixed(2),
		OldFrequency:  string(item.OldFrequency),
		NewFrequency:  string(item.NewFrequency),
		OldDueDay:     item.OldDueDay,
		NewDueDay:     item.NewDueDay,
		TriggeredAt:   item.TriggeredAt.Format("2006-01-02T15:04:05Z07:00"),
		Status:        string(item.Status),
		ErrorMessage:  item.ErrorMessage,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// parseAmount parses a wire money string.
func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &engine.InputError{Field: field, Value: s, Reason: "not a decimal amount"}
	}
	return d, nil
}
