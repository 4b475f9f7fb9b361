// Package memory is an in-process bill exporter that keeps exported rows.
package memory

import (
	"context"
	"fmt"
	"sync"

	"billed/internal/core"
	"billed/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows [][]any
	ids  []string
	// Err, when set, is returned by every export.
	Err error
}

var _ sheets.BillExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportBill(_ context.Context, b core.Bill) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return "", e.Err
	}
	e.rows = append(e.rows, sheets.Row(b))
	e.ids = append(e.ids, b.ID)
	return fmt.Sprintf("mem:%d", len(e.rows)), nil
}

// Rows returns the exported rows in Header order.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.rows...)
}

// IDs returns the exported bill ids in export order.
func (e *Exporter) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}
