package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Amansingh0807/OptExAI/internal/amqp"
	"github.com/Amansingh0807/OptExAI/internal/config"
	"github.com/Amansingh0807/OptExAI/internal/currency"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Alert events are optional; without a broker the processor still posts
	// transactions, it just cannot trigger alert emails.
	var events services.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without alert events",
				log.FieldError, err.Error())
		} else {
			defer amqpClient.Close()
			events = amqpClient
		}
	}

	rateCache := currency.NewCache(currency.NewHTTPProvider(cfg.RateProviderURL, nil), cfg.RateCacheTTL)
	converter := currency.NewConverter(rateCache)

	txs := services.NewTransactionService(repo, nil, converter, logger)
	budgets := services.NewBudgetService(repo, converter, events, logger)
	processor := services.NewRecurringProcessor(repo, txs, budgets, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring transaction processor configured",
		"interval", cfg.RecurringInterval.String(),
		"sqlite_db", cfg.SQLiteDBPath)

	run := func() {
		created, err := processor.Run(ctx)
		if err != nil {
			logger.Error("Recurring processing failed", log.FieldError, err.Error())
			return
		}
		if created > 0 {
			logger.Info("Recurring transactions posted", "count", created)
		}
	}

	// Process anything already due before waiting for the first tick.
	run()

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return
		case <-ticker.C:
			run()
		}
	}
}
