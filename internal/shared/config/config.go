package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	WorkerHTTPAddr string
	RelayHTTPAddr  string

	// Repository selects the workflow state backend: "postgres", "sqlite" or "memory".
	Repository  string
	DatabaseURL string
	SQLitePath  string

	// KafkaEnabled selects Kafka as the transport between services; when false they POST
	// envelopes to each other's HTTP API.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaGroupID   string
	TopicStarted   string
	TopicScheduled string
	TopicCompleted string

	OrchestratorURL string
	WorkerURL       string

	// Dedup selects the processed-event store: "off", "memory" or "postgres".
	Dedup string

	// OutboxEnabled makes the orchestrator write scheduled steps to the postgres outbox
	// instead of publishing directly; outbox-relay delivers them.
	OutboxEnabled           bool
	OutboxBatchSize         int
	OutboxPollInterval      time.Duration
	OutboxProcessingTimeout time.Duration
	OutboxMaxAttempts       int

	TracingExporter string
	OTLPEndpoint    string

	// HTTPHandlerTimeout bounds every inbound request. It must exceed HTTPStepTimeout, because
	// over HTTP transport a step runs inside the worker's request.
	HTTPHandlerTimeout time.Duration
	HTTPStepTimeout    time.Duration
}

// Load reads .env and then the environment. It returns the config built from valid values and
// defaults together with every malformed or inconsistent setting it found.
func Load() (Config, error) {
	l := &loader{}
	if err := loadDotEnv(".env"); err != nil {
		l.errs = append(l.errs, err)
	}

	cfg := Config{
		AppEnv:   l.str("APP_ENV", "dev"),
		LogLevel: l.str("LOG_LEVEL", "info"),
		HTTPAddr: l.str("HTTP_ADDR", ":8080"),

		WorkerHTTPAddr: l.str("WORKER_HTTP_ADDR", ":8081"),
		RelayHTTPAddr:  l.str("RELAY_HTTP_ADDR", ":8082"),

		Repository:  l.oneOf("REPOSITORY", "postgres", "postgres", "sqlite", "memory"),
		DatabaseURL: l.str("DATABASE_URL", ""),
		SQLitePath:  l.str("SQLITE_PATH", "stepflow.db"),

		KafkaEnabled:   l.boolean("KAFKA_ENABLED", true),
		KafkaBrokers:   l.csv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:   l.str("KAFKA_GROUP_ID", ""),
		TopicStarted:   l.str("KAFKA_TOPIC_WORKFLOW_STARTED", "pipe.workflow.started.v1"),
		TopicScheduled: l.str("KAFKA_TOPIC_STEP_SCHEDULED", "pipe.step.scheduled.v1"),
		TopicCompleted: l.str("KAFKA_TOPIC_STEP_COMPLETED", "pipe.workflow.step.completed.v1"),

		OrchestratorURL: l.str("ORCHESTRATOR_URL", "http://localhost:8080"),
		WorkerURL:       l.str("WORKER_URL", "http://localhost:8081"),

		Dedup: l.oneOf("DEDUP", "off", "off", "memory", "postgres"),

		OutboxEnabled:           l.boolean("OUTBOX_ENABLED", false),
		OutboxBatchSize:         l.positiveInt("OUTBOX_BATCH_SIZE", 50),
		OutboxPollInterval:      l.duration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxProcessingTimeout: l.duration("OUTBOX_PROCESSING_TIMEOUT", 30*time.Second),
		OutboxMaxAttempts:       l.positiveInt("OUTBOX_MAX_ATTEMPTS", 10),

		TracingExporter: l.oneOf("TRACING_EXPORTER", "none", "none", "stdout", "otlp"),
		OTLPEndpoint:    l.str("OTLP_ENDPOINT", "localhost:4317"),

		HTTPHandlerTimeout: l.duration("HTTP_HANDLER_TIMEOUT", 45*time.Second),
		HTTPStepTimeout:    l.duration("HTTP_STEP_TIMEOUT", 30*time.Second),
	}

	if cfg.HTTPHandlerTimeout <= cfg.HTTPStepTimeout {
		l.errs = append(l.errs, fmt.Errorf("HTTP_HANDLER_TIMEOUT (%s) must exceed HTTP_STEP_TIMEOUT (%s)",
			cfg.HTTPHandlerTimeout, cfg.HTTPStepTimeout))
	}

	return cfg, errors.Join(l.errs...)
}
