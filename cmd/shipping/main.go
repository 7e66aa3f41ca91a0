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
	"github.com/daxchui/orderflow/internal/platform/persistence"
	"github.com/daxchui/orderflow/internal/shipping"
	shippingconsumer "github.com/daxchui/orderflow/internal/shipping/consumer"
	"github.com/daxchui/orderflow/internal/shipping/service"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("shipping")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Shipping",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	shipmentRepo := postgres.NewShipmentRepository(log, postgresDB)

	statusProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.DeliveryStatusTopic)
	if err != nil {
		log.Error("Failed to initialize delivery status producer", "error", err)
		os.Exit(1)
	}

	deadLetterProducer, err := producers.NewDeadLetterProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize dead-letter producer", "error", err)
		os.Exit(1)
	}

	deliveryService, err := service.NewDeliveryService(
		log,
		shipmentRepo,
		statusProducer,
		cfg.WorkerPool.Size,
		cfg.Shipment.PreparationDelay,
		cfg.Shipment.TransitDelay,
		cfg.Shipment.LostProbability,
		cfg.Shipment.Seed,
	)
	if err != nil {
		log.Error("Failed to initialize delivery service", "error", err)
		os.Exit(1)
	}

	deliveryHandler := shippingconsumer.NewDeliveryHandler(log, deliveryService, deadLetterProducer)
	requestConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.DeliveryRequestTopic, cfg.Kafka.ConsumerGroup)
	if err := requestConsumer.Subscribe(appCtx, deliveryHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to delivery requests", "error", err)
		os.Exit(1)
	}

	// Cancellations are a broadcast: every instance must learn the hint, so
	// each instance consumes the topic in its own group
	cancelGroup := cfg.Kafka.ConsumerGroup + "-cancel-" + uuid.New().String()
	cancelHandler := shippingconsumer.NewCancelHandler(log, deliveryService, deadLetterProducer)
	cancelConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.CancellationTopic, cancelGroup)
	if err := cancelConsumer.Subscribe(appCtx, cancelHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to cancellations", "error", err)
		os.Exit(1)
	}

	server := shipping.NewServer(log, cfg, deliveryService)

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

	if err := requestConsumer.Close(); err != nil {
		log.Error("Error closing request consumer", "error", err)
	}
	if err := cancelConsumer.Close(); err != nil {
		log.Error("Error closing cancellation consumer", "error", err)
	}

	deliveryService.Wait()
	deliveryService.Close()

	if err := statusProducer.Close(); err != nil {
		log.Error("Error closing status producer", "error", err)
	}
	if err := deadLetterProducer.Close(); err != nil {
		log.Error("Error closing dead-letter producer", "error", err)
	}

	postgresDB.Close()

	log.Info("Shipping shutdown completed")
}
