package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/heli-gil/sunny/internal/amqp"
	"github.com/heli-gil/sunny/internal/config"
	applog "github.com/heli-gil/sunny/internal/log"
	gsheet "github.com/heli-gil/sunny/internal/sheets/google"
	"github.com/heli-gil/sunny/internal/storage"
	"github.com/heli-gil/sunny/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "sheets-worker"})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sheets worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sheetsClient, err := gsheet.NewClient(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, sheetsClient, sheetsClient,
		cfg.SyncBatchSize, cfg.SyncInterval)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("Starting sheets worker",
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval)

	if err := exportWorker.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Sheets worker stopped gracefully")
}
