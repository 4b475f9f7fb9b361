package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"billed/internal/amqp"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/metrics"
	sheetsmem "billed/internal/sheets/memory"
	"billed/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	bills    map[string]core.Bill
	exported map[string]bool
	order    []string
}

func newFakeStore(bills ...core.Bill) *fakeStore {
	s := &fakeStore{bills: map[string]core.Bill{}, exported: map[string]bool{}}
	for _, b := range bills {
		s.bills[b.ID] = b
		s.order = append(s.order, b.ID)
	}
	return s
}

func (s *fakeStore) GetBill(_ context.Context, id string) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (s *fakeStore) IsExported(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return false, fmt.Errorf("bill %s: %w", id, storage.ErrNotFound)
	}
	return s.exported[id], nil
}

func (s *fakeStore) PendingExports(_ context.Context, limit int) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Bill
	for _, id := range s.order {
		if !s.exported[id] && !s.bills[id].Draft() && len(out) < limit {
			out = append(out, s.bills[id])
		}
	}
	return out, nil
}

func (s *fakeStore) MarkExported(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported[id] = true
	return nil
}

func submitted(id string) core.Bill {
	return core.Bill{
		ID:     id,
		Email:  "employee@test.tld",
		Type:   core.TypeHotel,
		Name:   "Hôtel " + id,
		Amount: core.Money{Cents: 9900},
		Date:   core.NewDate(2024, 5, 1),
		Pct:    20,
		Status: core.StatusPending,
	}
}

func newWorker(st ExportStore, exp *sheetsmem.Exporter, batch int) *ExportWorker {
	return NewExportWorker(st, exp, batch, metrics.New(), log.New(log.Config{Output: io.Discard}))
}

func TestHandleBillSubmitted(t *testing.T) {
	st := newFakeStore(submitted("b1"), core.Bill{ID: "draft"})
	exp := sheetsmem.New()
	w := newWorker(st, exp, 10)
	ctx := context.Background()

	if err := w.HandleBillSubmitted(ctx, amqp.NewBillSubmittedMessage("b1", "employee@test.tld")); err != nil {
		t.Fatalf("HandleBillSubmitted: %v", err)
	}
	if err := w.HandleBillSubmitted(ctx, amqp.NewBillSubmittedMessage("draft", "")); err != nil {
		t.Fatalf("draft: %v", err)
	}
	if err := w.HandleBillSubmitted(ctx, amqp.NewBillSubmittedMessage("gone", "")); err != nil {
		t.Fatalf("unknown bill should be acknowledged: %v", err)
	}

	if ids := exp.IDs(); len(ids) != 1 || ids[0] != "b1" {
		t.Errorf("exported = %v", ids)
	}
	if !st.exported["b1"] || st.exported["draft"] {
		t.Errorf("exported flags = %v", st.exported)
	}
}

func TestBillExportedOnceAcrossPassAndEvents(t *testing.T) {
	st := newFakeStore(submitted("b1"))
	exp := sheetsmem.New()
	w := newWorker(st, exp, 10)
	ctx := context.Background()

	if n, err := w.ExportPending(ctx); err != nil || n != 1 {
		t.Fatalf("ExportPending = %d, %v", n, err)
	}
	msg := amqp.NewBillSubmittedMessage("b1", "employee@test.tld")
	for i := 0; i < 2; i++ {
		if err := w.HandleBillSubmitted(ctx, msg); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if ids := exp.IDs(); len(ids) != 1 {
		t.Errorf("exported ids = %v, want b1 once", ids)
	}
}

func TestHandleBillSubmittedExportError(t *testing.T) {
	exp := sheetsmem.New()
	exp.Err = errors.New("quota exceeded")
	st := newFakeStore(submitted("b1"))
	w := newWorker(st, exp, 10)

	if err := w.HandleBillSubmitted(context.Background(), amqp.NewBillSubmittedMessage("b1", "")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if st.exported["b1"] {
		t.Errorf("bill marked exported after failure")
	}
}

func TestExportPendingBatches(t *testing.T) {
	st := newFakeStore(submitted("b1"), submitted("b2"), submitted("b3"), core.Bill{ID: "draft"})
	exp := sheetsmem.New()
	w := newWorker(st, exp, 2)
	ctx := context.Background()

	n, err := w.ExportPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first pass = %d, %v", n, err)
	}
	n, err = w.ExportPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("second pass = %d, %v", n, err)
	}
	n, _ = w.ExportPending(ctx)
	if n != 0 {
		t.Fatalf("third pass exported %d", n)
	}
	if len(exp.Rows()) != 3 {
		t.Errorf("rows = %d, want 3", len(exp.Rows()))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := newFakeStore(submitted("b1"))
	exp := sheetsmem.New()
	w := newWorker(st, exp, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Hour) }()

	deadline := time.After(2 * time.Second)
	for len(exp.IDs()) == 0 {
		select {
		case <-deadline:
			t.Fatal("startup pass did not export")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
