package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Amansingh0807/OptExAI/internal/amqp"
	"github.com/Amansingh0807/OptExAI/internal/config"
	"github.com/Amansingh0807/OptExAI/internal/currency"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/notify"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
	"github.com/Amansingh0807/OptExAI/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting alert-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	notifier, err := notify.NewGmailNotifier(context.Background(), notify.Config{
		ClientFile: cfg.GmailOAuthClientFile,
		TokenFile:  cfg.GmailOAuthTokenFile,
		ClientJSON: cfg.GmailOAuthClientJSON,
		TokenJSON:  cfg.GmailOAuthTokenJSON,
		Sender:     cfg.GmailSender,
	})
	if err != nil {
		logger.Error("Failed to initialize Gmail notifier", log.FieldError, err.Error())
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	rateCache := currency.NewCache(currency.NewHTTPProvider(cfg.RateProviderURL, nil), cfg.RateCacheTTL)
	converter := currency.NewConverter(rateCache)

	// The worker recomputes budget status before sending, so stale queue
	// entries never trigger an email.
	budgets := services.NewBudgetService(repo, converter, nil, logger)
	alertWorker := worker.NewAlertWorker(repo, budgets, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Consuming budget alerts", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeBudgetAlerts(ctx, alertWorker.HandleAlertMessage); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Shutdown signal received")
		} else {
			logger.Error("Message consumption failed", log.FieldError, err.Error())
			os.Exit(1)
		}
	}

	// Give in-flight handlers a moment to finish.
	time.Sleep(time.Second)
	logger.Info("Worker stopped gracefully")
}
