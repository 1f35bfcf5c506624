package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/heli-gil/sunny/internal/amqp"
	"github.com/heli-gil/sunny/internal/config"
	apphttp "github.com/heli-gil/sunny/internal/http"
	applog "github.com/heli-gil/sunny/internal/log"
	"github.com/heli-gil/sunny/internal/rates"
	"github.com/heli-gil/sunny/internal/services"
	"github.com/heli-gil/sunny/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	normalizer := rates.NewNormalizer(rates.WithCacheTTL(cfg.RateCacheTTL))

	// AMQP is optional; without a broker writes stay local and the export
	// backlog sweep catches up later.
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in local-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled - entries will not be exported")
	}

	expenseService := services.NewExpenseService(repo, normalizer, publisher)
	processor := services.NewRecurringProcessor(repo, normalizer, publisher)
	recurringService := services.NewRecurringService(repo, processor)
	invoiceService := services.NewInvoiceService(repo, normalizer)

	partners, err := repo.ListPartners(context.Background())
	if err != nil {
		logger.Error("Failed to load partners", "error", err)
		os.Exit(1)
	}
	policy := services.PolicyForPartners(partners, cfg.BusinessSplitRatio)
	balanceService := services.NewBalanceService(repo, policy)

	server := apphttp.NewServer(cfg, repo, expenseService, recurringService, processor,
		invoiceService, balanceService, logger)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        server.Routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting sunny server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
