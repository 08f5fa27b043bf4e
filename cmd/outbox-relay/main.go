package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/k1networth/stepflow/internal/app"
	"github.com/k1networth/stepflow/internal/outbox"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/db"
	"github.com/k1networth/stepflow/internal/shared/httpx"
	"github.com/k1networth/stepflow/internal/shared/logger"
)

const appName = "outbox-relay"

func main() {
	cfg, cfgErr := config.Load()
	log := logger.NewWithLevel(os.Stdout, appName, cfg.AppEnv, cfg.LogLevel)
	if cfgErr != nil {
		log.Error("config_invalid", slog.String("err", cfgErr.Error()))
		os.Exit(2)
	}

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is empty")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Error("db_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := pg.Close(); err != nil {
			log.Error("db_close_failed", slog.String("err", err.Error()))
		}
	}()
	if err := db.MigratePostgres(pg); err != nil {
		log.Error("db_migrate_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	topics := app.TopicsFromConfig(cfg)
	pub, closePub := app.NewPublisher(cfg, appName, map[string]string{
		topics.Scheduled: cfg.WorkerURL + "/v1/step/schedule",
	})
	defer func() { _ = closePub() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay := &outbox.Relay{
		Queue:     outbox.NewStore(pg),
		Publisher: pub,
		Log:       log,
		Metrics:   outbox.NewMetrics(reg),
		Config:    app.RelayConfig(cfg),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Run(ctx)
	}()

	srv := app.NewHTTPServer(cfg.RelayHTTPAddr, httpx.NewRouter(log, reg), cfg.HTTPHandlerTimeout)
	httpx.Serve(ctx, log, srv)
	<-done
}
