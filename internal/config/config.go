// Package config provides configuration structures and validation for the
// order-fulfillment services. It handles environment-based configuration for
// all major components including HTTP servers, database connections, message
// topics, and the cadence constants of the saga (outbox sweep interval,
// shipment delays, RPC timeout).
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete configuration for one service process. Each field
// represents a major subsystem (HTTP server, databases, messaging, saga
// cadences) and is validated during startup. All services share the same
// shape; each binary only reads the sections it needs.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	RPC         RPCConfig
	Ledger      LedgerConfig
	Store       StoreConfig
	Shipment    ShipmentConfig
	Notifier    NotifierConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains broker and topic configuration. Topic names are shared
// across services; every binary gets the full set.
type KafkaConfig struct {
	Brokers           string
	ConsumerGroup     string
	NumPartitions     int
	ReplicationFactor int
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration

	PaymentRequestTopic  string // store -> ledger (request/reply)
	PaymentReplyTopic    string // ledger -> store (request/reply)
	DeliveryRequestTopic string // store -> shipping
	DeliveryStatusTopic  string // shipping -> store
	CancellationTopic    string // store -> shipping (broadcast)
	NotificationTopic    string // any -> notifier (fire-and-forget)
	DLQTopic             string // unprocessable messages; empty disables parking
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration (notification archive)
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains the ledger outbox sweep configuration
type OutboxConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// RPCConfig bounds the synchronous payment round trip. A reply that does not
// arrive within Timeout is treated the same as a ledger-reported failure.
type RPCConfig struct {
	Timeout time.Duration
}

// LedgerConfig contains ledger engine settings
type LedgerConfig struct {
	OpeningBalance   int64   // minor units credited to every new account
	FaultEnabled     bool    // synthetic transient failures on the transfer path
	FaultProbability float64 // probability in [0,1) when faults are enabled
}

// StoreConfig contains orchestrator settings
type StoreConfig struct {
	AccountID string // ledger account credited by charges, debited by refunds
}

// ShipmentConfig contains the shipment simulation cadences. These are
// configuration, not semantics: tuning them never changes protocol behavior.
type ShipmentConfig struct {
	PreparationDelay time.Duration
	TransitDelay     time.Duration
	LostProbability  float64
	Seed             int64 // seed for the outcome source; 0 means time-based
}

// NotifierConfig contains the notification send loop settings
type NotifierConfig struct {
	SendInterval time.Duration
	BatchSize    int
}

// validate performs validation of all configuration values, ensuring they
// meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	topics := []struct {
		env   string
		value string
	}{
		{"KAFKA_PAYMENT_REQUEST_TOPIC", c.Kafka.PaymentRequestTopic},
		{"KAFKA_PAYMENT_REPLY_TOPIC", c.Kafka.PaymentReplyTopic},
		{"KAFKA_DELIVERY_REQUEST_TOPIC", c.Kafka.DeliveryRequestTopic},
		{"KAFKA_DELIVERY_STATUS_TOPIC", c.Kafka.DeliveryStatusTopic},
		{"KAFKA_CANCELLATION_TOPIC", c.Kafka.CancellationTopic},
		{"KAFKA_NOTIFICATION_TOPIC", c.Kafka.NotificationTopic},
	}
	for _, t := range topics {
		if t.value == "" {
			validationErrors = append(validationErrors, t.env+" is required")
		}
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}

	if c.Outbox.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_SWEEP_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if c.RPC.Timeout <= 0 {
		validationErrors = append(validationErrors, "RPC_TIMEOUT must be greater than 0")
	}

	if c.Ledger.OpeningBalance < 0 {
		validationErrors = append(validationErrors, "LEDGER_OPENING_BALANCE must not be negative")
	}
	if c.Ledger.FaultProbability < 0 || c.Ledger.FaultProbability >= 1 {
		validationErrors = append(validationErrors, "LEDGER_FAULT_PROBABILITY must be in [0, 1)")
	}

	if c.Shipment.PreparationDelay <= 0 {
		validationErrors = append(validationErrors, "SHIPMENT_PREPARATION_DELAY must be greater than 0")
	}
	if c.Shipment.TransitDelay <= 0 {
		validationErrors = append(validationErrors, "SHIPMENT_TRANSIT_DELAY must be greater than 0")
	}
	if c.Shipment.LostProbability < 0 || c.Shipment.LostProbability >= 1 {
		validationErrors = append(validationErrors, "SHIPMENT_LOST_PROBABILITY must be in [0, 1)")
	}

	if c.Notifier.SendInterval <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_SEND_INTERVAL must be greater than 0")
	}
	if c.Notifier.BatchSize <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_BATCH_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
