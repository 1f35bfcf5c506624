package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/heli-gil/sunny/internal/amqp"
	"github.com/heli-gil/sunny/internal/config"
	"github.com/heli-gil/sunny/internal/core"
	applog "github.com/heli-gil/sunny/internal/log"
	"github.com/heli-gil/sunny/internal/rates"
	"github.com/heli-gil/sunny/internal/services"
	"github.com/heli-gil/sunny/internal/storage"
)

// The scheduler runs shortly after midnight so day-of-month matching sees
// the new calendar day everywhere.
const dailySchedule = "5 0 * * *"

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "recurring-worker"})
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

	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in local-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	processor := services.NewRecurringProcessor(repo, normalizer, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runPass := func() {
		today := core.Today(time.Now())
		result, err := processor.RunDailyPass(ctx, today)
		if err != nil {
			logger.Error("Recurring pass failed", "error", err)
			return
		}
		logger.Info("Recurring pass complete",
			"date", today.String(),
			"created", result.Created,
			"skipped", result.Skipped,
			"errors", len(result.Errors))
	}

	// Catch up immediately in case the process was down over a trigger day.
	logger.Info("Running initial recurring pass")
	runPass()

	c := cron.New()
	if _, err := c.AddFunc(dailySchedule, runPass); err != nil {
		logger.Error("Failed to schedule recurring pass", "error", err)
		os.Exit(1)
	}
	c.Start()
	logger.Info("Recurring worker scheduled", "spec", dailySchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("Recurring worker stopped gracefully")
}
