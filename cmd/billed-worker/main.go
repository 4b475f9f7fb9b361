package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"billed/internal/amqp"
	"billed/internal/cli"
	"billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/sheets"
	gsheet "billed/internal/sheets/google"
	mem "billed/internal/sheets/memory"
	"billed/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentWorker)
	logger.Info("Starting billed-worker", log.FieldOperation, log.OpStartup)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	var exporter sheets.BillExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewWithCredentials(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		exporter = mem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to memory only")
	}

	exports := worker.NewExportWorker(repo, exporter, cfg.ExportBatchSize, metrics.New(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exports.Run(gctx, cfg.ExportInterval)
	})

	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
		g.Go(func() error {
			err := consumer.ConsumeBillSubmitted(gctx, exports.HandleBillSubmitted)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		logger.Info("Consuming bill events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, relying on periodic export", "interval", cfg.ExportInterval)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
