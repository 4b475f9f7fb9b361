// Package sheets defines the outbound port used to export submitted bills.
package sheets

import (
	"context"

	"billed/internal/core"
)

// BillExporter appends a submitted bill to an external ledger and returns a
// reference to the written row.
type BillExporter interface {
	ExportBill(ctx context.Context, b core.Bill) (rowRef string, err error)
}

// Header is the column order of exported rows.
var Header = []string{"ID", "Date", "Email", "Type", "Name", "Amount", "VAT", "Pct", "Commentary", "Status", "Receipt"}

// Row renders a bill in Header order.
func Row(b core.Bill) []any {
	return []any{
		b.ID,
		b.Date.String(),
		b.Email,
		string(b.Type),
		b.Name,
		b.Amount.Euros(),
		b.VAT,
		b.Pct,
		b.Commentary,
		string(b.Status),
		b.FileURL,
	}
}
