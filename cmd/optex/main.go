package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Amansingh0807/OptExAI/internal/ai"
	"github.com/Amansingh0807/OptExAI/internal/amqp"
	"github.com/Amansingh0807/OptExAI/internal/config"
	"github.com/Amansingh0807/OptExAI/internal/currency"
	apphttp "github.com/Amansingh0807/OptExAI/internal/http"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

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

	rateCache := currency.NewCache(currency.NewHTTPProvider(cfg.RateProviderURL, nil), cfg.RateCacheTTL)
	converter := currency.NewConverter(rateCache)

	// The broker is optional: without it budget alerts stay in-process only.
	var events services.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, budget alert emails disabled",
				log.FieldError, err.Error())
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - budget alert emails will not be sent")
	}

	var classifier services.Classifier
	var scanner apphttp.ReceiptScanner
	if cfg.OpenAIAPIKey != "" {
		classifier = ai.NewClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		scanner = ai.NewReceiptScanner(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		logger.Info("AI features enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Info("OPENAI_API_KEY not set - category suggestions and receipt scanning disabled")
	}

	accounts := services.NewAccountService(repo, converter, logger)
	txs := services.NewTransactionService(repo, classifier, converter, logger)
	budgets := services.NewBudgetService(repo, converter, events, logger)

	srv := apphttp.NewServer(":"+cfg.Port, repo, accounts, txs, budgets, scanner, cfg.RequestsPerMinute, logger)
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
