package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daxchui/orderflow/internal/config"
	"github.com/daxchui/orderflow/internal/data/mongo"
	"github.com/daxchui/orderflow/internal/logger"
	"github.com/daxchui/orderflow/internal/notifier"
	notifierconsumer "github.com/daxchui/orderflow/internal/notifier/consumer"
	"github.com/daxchui/orderflow/internal/notifier/sender"
	"github.com/daxchui/orderflow/internal/platform/messaging/consumers"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("notifier")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Notifier",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	notificationRepo := mongo.NewNotificationRepository(log, mongoDB)

	deadLetterProducer, err := producers.NewDeadLetterProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize dead-letter producer", "error", err)
		os.Exit(1)
	}

	archiveHandler := notifierconsumer.NewArchiveHandler(log, notificationRepo, deadLetterProducer)
	notificationConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.NotificationTopic, cfg.Kafka.ConsumerGroup)
	if err := notificationConsumer.Subscribe(appCtx, archiveHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to notifications", "error", err)
		os.Exit(1)
	}

	notificationSender := sender.NewSender(log, notificationRepo, cfg.Notifier.SendInterval, cfg.Notifier.BatchSize)
	if err := notificationSender.Start(appCtx); err != nil {
		log.Error("Failed to start notification sender", "error", err)
		os.Exit(1)
	}

	server := notifier.NewServer(log, cfg, notificationRepo)

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

	notificationSender.Stop()

	if err := notificationConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err := deadLetterProducer.Close(); err != nil {
		log.Error("Error closing dead-letter producer", "error", err)
	}

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Notifier shutdown completed")
}
