/*
Package export renders payment history as a GST-inclusive CSV.

PURPOSE:
  Downstream accounting tools consume a fixed CSV shape. The header and
  the GST extraction formula are a hard external contract:

    Date,Vendor,Category,Amount (Incl GST),GST Component,Notes

  GST component = amount x 3/23, the NZ 15% GST-inclusive extraction
  (15/115 reduced). Reproduced exactly; do not "improve" it.
*/
package export

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"

	"github.com/warp/tenancy-engine/engine"
)

// Header is the exact downstream contract.
var Header = []string{"Date", "Vendor", "Category", "Amount (Incl GST)", "GST Component", "Notes"}

var (
	gstNumerator   = decimal.NewFromInt(3)
	gstDenominator = decimal.NewFromInt(23)
)

// Row is one export line.
type Row struct {
	Date     engine.Date
	Vendor   string
	Category string
	Amount   decimal.Decimal
	Notes    string
}

// GSTComponent extracts the GST portion of a GST-inclusive amount:
// amount x 3/23, rounded to 2 dp.
func GSTComponent(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(gstNumerator).Div(gstDenominator).Round(2)
}

// BuildRows maps a tenant's payment history to export rows. The payment
// method rides in Notes.
func BuildRows(vendor string, payments []engine.PaymentHistoryEntry) []Row {
	rows := make([]Row, len(payments))
	for i, p := range payments {
		rows[i] = Row{
			Date:     p.Date,
			Vendor:   vendor,
			Category: "Rent",
			Amount:   p.Amount,
			Notes:    p.Method,
		}
	}
	return rows
}

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Date.String(),
			r.Vendor,
			r.Category,
			r.Amount.StringFixed(2),
			GSTComponent(r.Amount).StringFixed(2),
			r.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
