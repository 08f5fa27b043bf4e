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

const appName = "worker"

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

	topics := app.TopicsFromConfig(cfg)
	pub, closePub := app.NewPublisher(cfg, appName, map[string]string{
		topics.Completed: cfg.OrchestratorURL + "/v1/step/completed",
	})
	defer func() { _ = closePub() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	w := app.NewWorker(log, pub, app.Options{
		Topics:          topics,
		Registerer:      reg,
		Tracer:          tp.Tracer(),
		HTTPStepTimeout: cfg.HTTPStepTimeout,
	})
	log.Info("handlers_registered", slog.Any("step_types", w.Dispatcher.Types()))

	var consumers *app.Consumers
	if cfg.KafkaEnabled {
		groupID := cfg.KafkaGroupID
		if groupID == "" {
			groupID = "stepflow-" + appName
		}
		consumers = app.StartConsumers(ctx, log, cfg, groupID, map[string]pipe.HandlerFunc{
			topics.Scheduled: app.SkipInvalid(w.Consumer.HandleStepScheduled),
		})
	}

	srv := app.NewHTTPServer(cfg.WorkerHTTPAddr, httpx.NewRouter(log, reg, w.API), cfg.HTTPHandlerTimeout)
	httpx.Serve(ctx, log, srv)

	if consumers != nil {
		consumers.Wait()
	}
}
