package memory

import (
	"context"
	"errors"
	"testing"

	"billed/internal/core"
	"billed/internal/sheets"
)

func TestExporterRecordsRows(t *testing.T) {
	e := New()
	ref, err := e.ExportBill(context.Background(), core.Bill{ID: "b1", Name: "Taxi", Amount: core.Money{Cents: 1250}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("ExportBill = %q, %v", ref, err)
	}
	rows := e.Rows()
	if len(rows) != 1 || len(rows[0]) != len(sheets.Header) {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0][5] != 12.5 {
		t.Errorf("amount column = %v", rows[0][5])
	}
	if ids := e.IDs(); len(ids) != 1 || ids[0] != "b1" {
		t.Errorf("ids = %v", ids)
	}
}

func TestExporterError(t *testing.T) {
	e := New()
	e.Err = errors.New("quota exceeded")
	if _, err := e.ExportBill(context.Background(), core.Bill{ID: "b1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(e.Rows()) != 0 {
		t.Errorf("row recorded on error")
	}
}
