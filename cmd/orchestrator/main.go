package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/k1networth/stepflow/internal/app"
	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/httpx"
	"github.com/k1networth/stepflow/internal/shared/logger"
	"github.com/k1networth/stepflow/internal/shared/tracing"
)

const appName = "orchestrator"

func main() {
	cfg, cfgErr := config.Load()
	log := logger.NewWithLevel(os.Stdout, appName, cfg.AppEnv, cfg.LogLevel)
	if cfgErr != nil {
		log.Error("config_invalid", slog.String("err", cfgErr.Error()))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		ServiceName:  "stepflow-" + appName,
	})
	if err != nil {
		log.Error("tracing_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(sctx)
	}()

	storage, err := app.OpenStorage(ctx, log, cfg)
	if err != nil {
		log.Error("storage_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = storage.Close() }()

	dd, err := app.OpenDedup(cfg, storage)
	if err != nil {
		log.Error("config_error", slog.String("err", err.Error()))
		os.Exit(2)
	}

	topics := app.TopicsFromConfig(cfg)
	pub, closePub := app.NewPublisher(cfg, appName, map[string]string{
		topics.Scheduled: cfg.WorkerURL + "/v1/step/schedule",
	})
	defer func() { _ = closePub() }()

	pub, err = app.OutboxPublisher(cfg, storage, pub)
	if err != nil {
		log.Error("config_error", slog.String("err", err.Error()))
		os.Exit(2)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	orch := app.NewOrchestrator(log, storage.Repo, pub, app.Options{
		Topics:     topics,
		Registerer: reg,
		Tracer:     tp.Tracer(),
		Dedup:      dd,
	})

	var consumers *app.Consumers
	if cfg.KafkaEnabled {
		groupID := cfg.KafkaGroupID
		if groupID == "" {
			groupID = "stepflow-" + appName
		}
		consumers = app.StartConsumers(ctx, log, cfg, groupID, map[string]pipe.HandlerFunc{
			topics.Started:   app.SkipInvalid(orch.Gate.HandleWorkflowStarted),
			topics.Completed: app.SkipInvalid(orch.Gate.HandleStepCompleted),
		})
	}

	srv := app.NewHTTPServer(cfg.HTTPAddr, httpx.NewRouter(log, reg, orch.API), cfg.HTTPHandlerTimeout)
	log.Info("orchestrator_start",
		slog.String("repository", storage.Kind),
		slog.Bool("kafka", cfg.KafkaEnabled),
		slog.String("dedup", cfg.Dedup),
		slog.Bool("outbox", cfg.OutboxEnabled),
	)
	httpx.Serve(ctx, log, srv)

	if consumers != nil {
		consumers.Wait()
	}
}
