package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/daxchui/orderflow/internal/config"
	"github.com/daxchui/orderflow/internal/data/postgres"
	"github.com/daxchui/orderflow/internal/logger"
	"github.com/daxchui/orderflow/internal/platform/messaging/consumers"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
	"github.com/daxchui/orderflow/internal/platform/messaging/rpc"
	"github.com/daxchui/orderflow/internal/platform/persistence"
	"github.com/daxchui/orderflow/internal/store"
	storeconsumer "github.com/daxchui/orderflow/internal/store/consumer"
	"github.com/daxchui/orderflow/internal/store/service"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("store")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Store",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	storeAccountID, err := uuid.Parse(cfg.Store.AccountID)
	if err != nil {
		log.Error("Invalid store account ID", "value", cfg.Store.AccountID, "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	orderRepo := postgres.NewOrderRepository(log, postgresDB)
	warehouseRepo := postgres.NewWarehouseRepository(log, postgresDB)
	catalogRepo := postgres.NewCatalogRepository(log, postgresDB)

	requestProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.PaymentRequestTopic)
	if err != nil {
		log.Error("Failed to initialize payment request producer", "error", err)
		os.Exit(1)
	}
	deliveryProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.DeliveryRequestTopic)
	if err != nil {
		log.Error("Failed to initialize delivery request producer", "error", err)
		os.Exit(1)
	}
	cancellationProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.CancellationTopic)
	if err != nil {
		log.Error("Failed to initialize cancellation producer", "error", err)
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

	requestor := rpc.NewRequestor(log, requestProducer, cfg.RPC.Timeout)

	// Replies are a broadcast: each instance consumes the reply topic in its
	// own group so every instance sees the replies its requests produced
	replyGroup := cfg.Kafka.ConsumerGroup + "-replies-" + uuid.New().String()
	replyConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.PaymentReplyTopic, replyGroup)
	if err := replyConsumer.Subscribe(appCtx, requestor.HandleReply); err != nil {
		log.Error("Failed to subscribe to payment replies", "error", err)
		os.Exit(1)
	}

	orderService := service.NewOrderService(
		log,
		postgresDB,
		orderRepo,
		warehouseRepo,
		catalogRepo,
		requestor,
		deliveryProducer,
		cancellationProducer,
		notificationProducer,
		storeAccountID,
	)

	statusHandler := storeconsumer.NewStatusHandler(log, orderService, deadLetterProducer)
	statusConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.DeliveryStatusTopic, cfg.Kafka.ConsumerGroup)
	if err := statusConsumer.Subscribe(appCtx, statusHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to delivery statuses", "error", err)
		os.Exit(1)
	}

	server := store.NewServer(log, cfg, orderService)

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

	for _, c := range []*consumers.KafkaConsumer{replyConsumer, statusConsumer} {
		if err := c.Close(); err != nil {
			log.Error("Error closing Kafka consumer", "error", err)
		}
	}
	for _, p := range []producers.MessagePublisher{requestProducer, deliveryProducer, cancellationProducer, notificationProducer} {
		if err := p.Close(); err != nil {
			log.Error("Error closing Kafka producer", "error", err)
		}
	}
	if err := deadLetterProducer.Close(); err != nil {
		log.Error("Error closing dead-letter producer", "error", err)
	}

	postgresDB.Close()

	log.Info("Store shutdown completed")
}
