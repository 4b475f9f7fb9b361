// Package worker exports submitted bills to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billed/internal/amqp"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/sheets"
	"billed/internal/storage"
)

// ExportStore is the storage used by the worker.
type ExportStore interface {
	GetBill(ctx context.Context, id string) (core.Bill, error)
	IsExported(ctx context.Context, id string) (bool, error)
	PendingExports(ctx context.Context, limit int) ([]core.Bill, error)
	MarkExported(ctx context.Context, id string) error
}

// ExportWorker appends submitted bills to the spreadsheet, once each.
type ExportWorker struct {
	storage   ExportStore
	exporter  sheets.BillExporter
	metrics   *metrics.Metrics
	logger    *log.Logger
	batchSize int
}

func NewExportWorker(storage ExportStore, exporter sheets.BillExporter, batchSize int, m *metrics.Metrics, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Default()
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &ExportWorker{
		storage:   storage,
		exporter:  exporter,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: batchSize,
	}
}

// HandleBillSubmitted exports the bill named by an AMQP event. Unknown bills
// are acknowledged so the message is not redelivered forever, and bills the
// periodic pass or an earlier delivery already exported are skipped.
func (w *ExportWorker) HandleBillSubmitted(ctx context.Context, msg *amqp.BillSubmittedMessage) error {
	w.logger.InfoContext(ctx, "Processing bill event", log.FieldBillID, msg.BillID)

	exported, err := w.storage.IsExported(ctx, msg.BillID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Bill from event no longer exists", log.FieldBillID, msg.BillID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get export state: %w", err)
	}
	if exported {
		w.logger.DebugContext(ctx, "Bill already exported", log.FieldBillID, msg.BillID)
		return nil
	}

	bill, err := w.storage.GetBill(ctx, msg.BillID)
	if err != nil {
		return fmt.Errorf("get bill from storage: %w", err)
	}
	return w.export(ctx, bill)
}

// ExportPending exports one batch of submitted bills not yet exported and
// returns how many were written.
func (w *ExportWorker) ExportPending(ctx context.Context) (int, error) {
	pending, err := w.storage.PendingExports(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	done := 0
	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := w.export(ctx, b); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export bill", log.FieldBillID, b.ID, log.FieldError, err)
			continue
		}
		done++
	}
	return done, nil
}

// Run exports pending bills at startup and then every interval.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ExportPending(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("Export loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *ExportWorker) export(ctx context.Context, b core.Bill) error {
	if b.Draft() {
		w.logger.DebugContext(ctx, "Skipping bill without metadata", log.FieldBillID, b.ID)
		return nil
	}
	ref, err := w.exporter.ExportBill(ctx, b)
	if w.metrics != nil {
		w.metrics.Exports.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("export bill %s: %w", b.ID, err)
	}
	if err := w.storage.MarkExported(ctx, b.ID); err != nil {
		// The row is written; a later pass would duplicate it.
		w.logger.ErrorContext(ctx, "Failed to mark bill exported", log.FieldBillID, b.ID, log.FieldError, err)
		return nil
	}
	w.logger.InfoContext(ctx, "Bill exported", log.FieldBillID, b.ID, "row", ref)
	return nil
}
