// Package services orchestrates bills across storage, blobs and events.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"billed/internal/blob"
	"billed/internal/cache"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/storage"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidFileType = errors.New("file type not allowed")
)

// AllowedExtensions are the receipt formats accepted on upload.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

type (
	BillRepository interface {
		CreateBill(ctx context.Context, nb storage.NewBill) (core.Bill, error)
		GetBill(ctx context.Context, id string) (core.Bill, error)
		SubmitBill(ctx context.Context, b core.Bill) (core.Bill, error)
		ListBills(ctx context.Context, email string) ([]core.Bill, error)
	}

	BlobStore interface {
		Save(ctx context.Context, fileName string, r io.Reader, maxBytes int64) (blob.Object, error)
		Delete(key string) error
	}

	EventPublisher interface {
		PublishBillSubmitted(ctx context.Context, billID, email string) error
	}
)

// BillService implements the bills API operations.
type BillService struct {
	repo           BillRepository
	blobs          BlobStore
	events         EventPublisher
	lists          *cache.BillLists
	metrics        *metrics.Metrics
	logger         *log.Logger
	maxUploadBytes int64
}

type Option func(*BillService)

// WithEvents publishes bill.submitted after each submit.
func WithEvents(p EventPublisher) Option { return func(s *BillService) { s.events = p } }

// WithListCache caches bill lists per viewer.
func WithListCache(c *cache.BillLists) Option { return func(s *BillService) { s.lists = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *BillService) { s.metrics = m } }

func WithLogger(l *log.Logger) Option { return func(s *BillService) { s.logger = l } }

func NewBillService(repo BillRepository, blobs BlobStore, maxUploadBytes int64, opts ...Option) *BillService {
	s := &BillService{
		repo:           repo,
		blobs:          blobs,
		maxUploadBytes: maxUploadBytes,
		logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentBills)
	return s
}

// Upload stores a receipt and creates the pending bill it belongs to. The
// owner is the form email when given; employees may only upload for themselves.
func (s *BillService) Upload(ctx context.Context, viewer core.Session, email, fileName string, r io.Reader) (core.UploadResult, error) {
	owner := strings.TrimSpace(email)
	if owner == "" {
		owner = viewer.Email
	}
	if owner != viewer.Email && !viewer.IsAdmin() {
		return core.UploadResult{}, fmt.Errorf("upload for %s: %w", owner, ErrForbidden)
	}
	if !allowedExtension(fileName) {
		return core.UploadResult{}, fmt.Errorf("%q: %w", fileName, ErrInvalidFileType)
	}

	obj, err := s.blobs.Save(ctx, fileName, r, s.maxUploadBytes)
	if err != nil {
		return core.UploadResult{}, fmt.Errorf("save receipt: %w", err)
	}

	bill, err := s.repo.CreateBill(ctx, storage.NewBill{
		Email:    owner,
		FileKey:  obj.Key,
		FileURL:  obj.URL,
		FileName: fileName,
	})
	if err != nil {
		if derr := s.blobs.Delete(obj.Key); derr != nil {
			s.logger.ErrorContext(ctx, "Failed to remove orphan receipt", log.FieldError, derr, "key", obj.Key)
		}
		return core.UploadResult{}, err
	}

	s.invalidate(owner)
	if s.metrics != nil {
		s.metrics.BillsUploaded.Inc()
	}
	s.logger.InfoContext(ctx, "Receipt stored",
		log.FieldBillID, bill.ID,
		log.FieldEmail, owner,
		log.FieldFileName, fileName,
		log.FieldSize, obj.Size)

	return core.UploadResult{FileURL: bill.FileURL, Key: bill.ID}, nil
}

// Submit stores the bill metadata sent by the form. The receipt and owner of
// the stored bill are kept; only admins may move a bill out of pending.
func (s *BillService) Submit(ctx context.Context, viewer core.Session, id string, in core.Bill) (core.Bill, error) {
	existing, err := s.Get(ctx, viewer, id)
	if err != nil {
		return core.Bill{}, err
	}

	in.ID = existing.ID
	in.Email = existing.Email
	in.FileURL = existing.FileURL
	in.FileName = existing.FileName
	if in.Status == "" {
		in.Status = core.StatusPending
	}
	if in.Status != core.StatusPending && !viewer.IsAdmin() {
		return core.Bill{}, fmt.Errorf("set status %s: %w", in.Status, ErrForbidden)
	}
	if err := in.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	saved, err := s.repo.SubmitBill(ctx, in)
	if err != nil {
		return core.Bill{}, err
	}

	s.invalidate(saved.Email)
	if s.metrics != nil {
		s.metrics.BillsSubmitted.Inc()
	}
	s.logger.InfoContext(ctx, "Bill submitted",
		log.FieldBillID, saved.ID,
		log.FieldEmail, saved.Email,
		log.FieldAmount, saved.Amount.String(),
		log.FieldStatus, saved.Status)

	s.publish(ctx, saved)
	return saved, nil
}

func (s *BillService) publish(ctx context.Context, b core.Bill) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "No event publisher, skipping bill event", log.FieldBillID, b.ID)
		return
	}
	err := s.events.PublishBillSubmitted(ctx, b.ID, b.Email)
	if s.metrics != nil {
		s.metrics.Events.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		// The periodic export pass picks the bill up later.
		s.logger.ErrorContext(ctx, "Failed to publish bill event", log.FieldBillID, b.ID, log.FieldError, err)
	}
}

// Get returns a bill visible to viewer.
func (s *BillService) Get(ctx context.Context, viewer core.Session, id string) (core.Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}
	if b.Email != viewer.Email && !viewer.IsAdmin() {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, ErrForbidden)
	}
	return b, nil
}

// List returns the viewer's bills, or all bills for an admin.
func (s *BillService) List(ctx context.Context, viewer core.Session) ([]core.Bill, error) {
	if s.lists != nil {
		if bills, ok := s.lists.Get(viewer); ok {
			return bills, nil
		}
	}
	owner := viewer.Email
	if viewer.IsAdmin() {
		owner = ""
	}
	bills, err := s.repo.ListBills(ctx, owner)
	if err != nil {
		return nil, err
	}
	if s.lists != nil {
		s.lists.Set(viewer, bills)
	}
	return bills, nil
}

func (s *BillService) invalidate(owner string) {
	if s.lists != nil {
		s.lists.Invalidate(owner)
	}
}

func allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}
