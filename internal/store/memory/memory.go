// Package memory is an in-process bills resource. It records every call so
// tests can assert on what the NewBill form sent.
package memory

import (
	"context"
	"fmt"
	"sync"

	"billed/internal/core"
	"billed/internal/store"
)

// Store implements store.Store over a map. Set CreateFunc or UpdateFunc to
// override the default behavior.
type Store struct {
	mu sync.Mutex

	CreateFunc func(ctx context.Context, req store.CreateRequest) (core.UploadResult, error)
	UpdateFunc func(ctx context.Context, req store.UpdateRequest) (core.Bill, error)

	// BaseURL prefixes generated file URLs.
	BaseURL string

	bills      map[string]core.Bill
	order      []string
	creates    []store.CreateRequest
	updates    []store.UpdateRequest
	billsCalls int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		BaseURL: "https://localhost:3456/images",
		bills:   make(map[string]core.Bill),
	}
}

// Seed preloads bills returned by List.
func (s *Store) Seed(bills ...core.Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bills {
		if _, ok := s.bills[b.ID]; !ok {
			s.order = append(s.order, b.ID)
		}
		s.bills[b.ID] = b
	}
}

// Bills returns the bills resource and counts the access.
func (s *Store) Bills() store.Bills {
	s.mu.Lock()
	s.billsCalls++
	s.mu.Unlock()
	return (*bills)(s)
}

// BillsCalls reports how many times Bills was called.
func (s *Store) BillsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billsCalls
}

// Creates returns the recorded create requests.
func (s *Store) Creates() []store.CreateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.CreateRequest(nil), s.creates...)
}

// Updates returns the recorded update requests.
func (s *Store) Updates() []store.UpdateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.UpdateRequest(nil), s.updates...)
}

type bills Store

func (b *bills) Create(ctx context.Context, req store.CreateRequest) (core.UploadResult, error) {
	s := (*Store)(b)
	s.mu.Lock()
	s.creates = append(s.creates, req)
	fn := s.CreateFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("bill-%d", len(s.order)+1)
	bill := core.Bill{ID: key, Status: core.StatusPending}
	if req.Data != nil {
		bill.Email, _ = req.Data.Get("email")
		if f, ok := req.Data.File("file"); ok {
			bill.FileName = f.Name
			bill.FileURL = s.BaseURL + "/" + f.Name
		}
	}
	s.bills[key] = bill
	s.order = append(s.order, key)
	return core.UploadResult{FileURL: bill.FileURL, Key: key}, nil
}

func (b *bills) Update(ctx context.Context, req store.UpdateRequest) (core.Bill, error) {
	s := (*Store)(b)
	s.mu.Lock()
	s.updates = append(s.updates, req)
	fn := s.UpdateFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[req.Selector]; !ok {
		return core.Bill{}, &store.APIError{Status: 404, Message: "bill not found"}
	}
	bill := req.Data
	bill.ID = req.Selector
	s.bills[req.Selector] = bill
	return bill, nil
}

func (b *bills) List(context.Context) ([]core.Bill, error) {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Bill, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bills[id])
	}
	return out, nil
}
