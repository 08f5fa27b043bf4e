// Package app wires stepflow components from configuration for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/k1networth/stepflow/internal/dedup"
	"github.com/k1networth/stepflow/internal/outbox"
	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/db"
	"github.com/k1networth/stepflow/internal/workflow"
	"github.com/k1networth/stepflow/internal/workflow/repo/postgres"
	"github.com/k1networth/stepflow/internal/workflow/repo/sqlite"
)

// Storage is the opened workflow repository and, for SQL backends, its connection.
type Storage struct {
	Repo workflow.Repository
	DB   *sql.DB
	Kind string
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStorage opens the backend named by cfg.Repository and prepares its schema.
func OpenStorage(ctx context.Context, log *slog.Logger, cfg config.Config) (*Storage, error) {
	switch cfg.Repository {
	case "memory":
		log.Warn("repository_memory", slog.String("hint", "workflow state is lost on restart"))
		return &Storage{Repo: workflow.NewInMemoryRepository(), Kind: "memory"}, nil

	case "sqlite":
		sdb, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		repo, err := sqlite.New(ctx, sdb)
		if err != nil {
			_ = sdb.Close()
			return nil, err
		}
		log.Info("repository_ready", slog.String("kind", "sqlite"), slog.String("path", cfg.SQLitePath))
		return &Storage{Repo: repo, DB: sdb, Kind: "sqlite"}, nil

	case "postgres", "":
		pg, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.MigratePostgres(pg); err != nil {
			_ = pg.Close()
			return nil, err
		}
		log.Info("repository_ready", slog.String("kind", "postgres"))
		return &Storage{Repo: postgres.New(pg), DB: pg, Kind: "postgres"}, nil

	default:
		return nil, fmt.Errorf("unknown REPOSITORY %q", cfg.Repository)
	}
}

// OpenDedup returns the processed-event store selected by cfg.Dedup, or nil when disabled.
func OpenDedup(cfg config.Config, st *Storage) (dedup.Store, error) {
	switch cfg.Dedup {
	case dedup.ModeOff, "":
		return nil, nil
	case dedup.ModeMemory:
		return dedup.NewMemoryStore(dedup.DefaultTTL), nil
	case dedup.ModePostgres:
		if st == nil || st.Kind != "postgres" {
			return nil, fmt.Errorf("DEDUP=postgres requires REPOSITORY=postgres")
		}
		return dedup.NewPostgresStore(st.DB), nil
	default:
		return nil, fmt.Errorf("unknown DEDUP %q", cfg.Dedup)
	}
}

// NewHTTPServer applies the shared server timeouts.
func NewHTTPServer(addr string, h http.Handler, handlerTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           http.TimeoutHandler(h, handlerTimeout, "request timeout"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      handlerTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// OutboxPublisher wraps pub with the postgres outbox when cfg.OutboxEnabled. Scheduled steps
// are then only enqueued; cmd/outbox-relay delivers them.
func OutboxPublisher(cfg config.Config, st *Storage, pub pipe.Publisher) (pipe.Publisher, error) {
	if !cfg.OutboxEnabled {
		return pub, nil
	}
	if st == nil || st.Kind != "postgres" {
		return nil, fmt.Errorf("OUTBOX_ENABLED requires REPOSITORY=postgres")
	}
	return outbox.Publisher{Store: outbox.NewStore(st.DB)}, nil
}

func RelayConfig(cfg config.Config) outbox.RelayConfig {
	return outbox.RelayConfig{
		BatchSize:         cfg.OutboxBatchSize,
		PollInterval:      cfg.OutboxPollInterval,
		ProcessingTimeout: cfg.OutboxProcessingTimeout,
		MaxAttempts:       cfg.OutboxMaxAttempts,
	}
}
