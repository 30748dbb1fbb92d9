package export_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/export"
)

func entry(amount string, d engine.Date, method string) engine.PaymentHistoryEntry {
	return engine.PaymentHistoryEntry{
		ID:       "pay-" + d.String(),
		TenantID: "tenant-1",
		Amount:   decimal.RequireFromString(amount),
		Date:     d,
		Method:   method,
	}
}

// =============================================================================
// GST ARITHMETIC
// =============================================================================

func TestGSTComponent_ThreeTwentyThirds(t *testing.T) {
	// NZ GST is 15%: the component of a GST-inclusive amount is 3/23 of it.
	cases := []struct{ amount, want string }{
		{"520.00", "67.83"},
		{"115.00", "15.00"},
		{"500.00", "65.22"},
		{"0.01", "0.00"},
	}
	for _, tc := range cases {
		got := export.GSTComponent(decimal.RequireFromString(tc.amount))
		if got.StringFixed(2) != tc.want {
			t.Errorf("GST of %s: expected %s, got %s", tc.amount, tc.want, got.StringFixed(2))
		}
	}
}

// =============================================================================
// CSV SHAPE
// =============================================================================

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	// The header is a published contract: accounting tools import by
	// column name.

	payments := []engine.PaymentHistoryEntry{
		entry("520.00", engine.NewDate(2026, time.January, 7), "bank transfer"),
		entry("520.00", engine.NewDate(2026, time.January, 14), ""),
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.BuildRows("Flat 2, 1 Example St", payments)); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d records", len(records))
	}

	wantHeader := []string{"Date", "Vendor", "Category", "Amount (Incl GST)", "GST Component", "Notes"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("Header column %d: expected %q, got %q", i, col, records[0][i])
		}
	}

	first := records[1]
	if first[0] != "2026-01-07" {
		t.Errorf("Expected date 2026-01-07, got %q", first[0])
	}
	if first[1] != "Flat 2, 1 Example St" {
		t.Errorf("Expected vendor in column 2, got %q", first[1])
	}
	if first[2] != "Rent" {
		t.Errorf("Expected category Rent, got %q", first[2])
	}
	if first[3] != "520.00" {
		t.Errorf("Expected amount 520.00, got %q", first[3])
	}
	if first[4] != "67.83" {
		t.Errorf("Expected GST 67.83, got %q", first[4])
	}
	if first[5] != "bank transfer" {
		t.Errorf("Expected method in notes, got %q", first[5])
	}
}

func TestWriteCSV_NoPayments(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected header only, got %d records", len(records))
	}
}
