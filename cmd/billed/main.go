package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"billed/internal/amqp"
	"billed/internal/auth"
	"billed/internal/blob"
	"billed/internal/cache"
	"billed/internal/cli"
	apphttp "billed/internal/http"
	"billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp)
	logger.Info("Starting billed server", "port", cfg.Port, log.FieldOperation, log.OpStartup)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	blobs, err := blob.NewDiskStore(cfg.BlobDir, cfg.PublicBaseURL+"/files")
	if err != nil {
		logger.Error("Failed to initialize blob store", log.FieldError, err, "dir", cfg.BlobDir)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	users := auth.NewPasswordAuthenticator(repo)
	if failed := cli.SeedUsers(ctx, logger, users, cfg.SeedUsers); failed > 0 {
		logger.Warn("Some seed users were not created", "failed", failed)
	}

	m := metrics.New()
	lists := cache.NewBillLists(500, cfg.CacheTTL)
	opts := []services.Option{
		services.WithListCache(lists),
		services.WithMetrics(m),
		services.WithLogger(logger),
	}

	// AMQP is optional: without it the worker's periodic pass exports bills.
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, bill events disabled", log.FieldError, err)
		} else {
			defer publisher.Close()
			opts = append(opts, services.WithEvents(publisher))
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	}

	bills := services.NewBillService(repo, blobs, cfg.MaxUploadBytes, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Config:  cfg,
		Bills:   bills,
		Users:   users,
		Tokens:  auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
		Files:   blobs,
		DB:      repo,
		Metrics: m,
		Logger:  logger,
	})
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	caches := cache.NewManager(logger)
	caches.Register(lists)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr, "public_url", cfg.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
