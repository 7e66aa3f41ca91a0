package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daxchui/orderflow/internal/config"
	"github.com/daxchui/orderflow/internal/data/postgres"
	"github.com/daxchui/orderflow/internal/ledger"
	ledgerconsumer "github.com/daxchui/orderflow/internal/ledger/consumer"
	"github.com/daxchui/orderflow/internal/ledger/fault"
	"github.com/daxchui/orderflow/internal/ledger/outboxsweep"
	"github.com/daxchui/orderflow/internal/ledger/service"
	"github.com/daxchui/orderflow/internal/logger"
	"github.com/daxchui/orderflow/internal/platform/messaging/consumers"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	transferRepo := postgres.NewTransferRepository(log, postgresDB)
	entryRepo := postgres.NewLedgerRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	replyProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.PaymentReplyTopic)
	if err != nil {
		log.Error("Failed to initialize payment reply producer", "error", err)
		os.Exit(1)
	}

	notificationProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.NotificationTopic)
	if err != nil {
		log.Error("Failed to initialize notification producer", "error", err)
		os.Exit(1)
	}

	deadLetterProducer, err := producers.NewDeadLetterProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize dead-letter producer", "error", err)
		os.Exit(1)
	}

	injector := fault.NewInjector(cfg.Ledger.FaultEnabled, cfg.Ledger.FaultProbability, 0)

	bankingService := service.NewBankingService(
		log,
		postgresDB,
		accountRepo,
		transferRepo,
		entryRepo,
		outboxRepo,
		injector,
		cfg.Ledger.OpeningBalance,
	)

	paymentHandler, err := ledgerconsumer.NewPaymentHandler(log, bankingService, replyProducer, deadLetterProducer, cfg.WorkerPool.Size)
	if err != nil {
		log.Error("Failed to initialize payment handler", "error", err)
		os.Exit(1)
	}

	requestConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.PaymentRequestTopic, cfg.Kafka.ConsumerGroup)
	if err := requestConsumer.Subscribe(appCtx, paymentHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to payment requests", "error", err)
		os.Exit(1)
	}

	// Settled transfers are swept to the notifier for the settlement archive
	sweeper := outboxsweep.NewSweeper(log, outboxRepo, map[string]producers.MessagePublisher{
		service.EventTransferSettled: notificationProducer,
	}, cfg.Outbox.SweepInterval, cfg.Outbox.BatchSize)
	sweeper.Start(appCtx)

	server := ledger.NewServer(log, cfg, bankingService, injector)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	paymentHandler.Close()

	if err := requestConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err := replyProducer.Close(); err != nil {
		log.Error("Error closing reply producer", "error", err)
	}
	if err := notificationProducer.Close(); err != nil {
		log.Error("Error closing notification producer", "error", err)
	}
	if err := deadLetterProducer.Close(); err != nil {
		log.Error("Error closing dead-letter producer", "error", err)
	}

	postgresDB.Close()

	log.Info("Ledger shutdown completed")
}
