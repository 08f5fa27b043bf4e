package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/k1networth/stepflow/internal/pipe"
)

// Queue is the part of Store a Relay drives.
type Queue interface {
	ResetStuck(ctx context.Context, processingTimeout time.Duration) (int64, error)
	ClaimPending(ctx context.Context, batchSize int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error
	MarkDead(ctx context.Context, id int64, errMsg string) error
}

type RelayConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	return c
}

// Relay delivers claimed outbox rows to the real transport.
type Relay struct {
	Queue     Queue
	Publisher pipe.Publisher
	Log       *slog.Logger
	Metrics   *Metrics
	Config    RelayConfig
	Now       func() time.Time
}

func (r *Relay) Run(ctx context.Context) {
	cfg := r.Config.withDefaults()
	r.Log.Info("relay_start",
		slog.Int("batch_size", cfg.BatchSize),
		slog.String("poll_interval", cfg.PollInterval.String()),
		slog.String("processing_timeout", cfg.ProcessingTimeout.String()),
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Log.Info("relay_shutdown")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one requeue, claim and deliver round and returns how many rows were sent.
func (r *Relay) Tick(ctx context.Context) int {
	cfg := r.Config.withDefaults()
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	if n, err := r.Queue.ResetStuck(ctx, cfg.ProcessingTimeout); err != nil {
		r.Log.Error("outbox_requeue_failed", slog.String("err", err.Error()))
	} else if n > 0 {
		if r.Metrics != nil {
			r.Metrics.RequeuedTotal.Add(float64(n))
		}
		r.Log.Warn("outbox_requeued_stuck", slog.Int64("count", n))
	}

	recs, err := r.Queue.ClaimPending(ctx, cfg.BatchSize)
	if err != nil {
		r.Log.Error("outbox_claim_failed", slog.String("err", err.Error()))
		return 0
	}
	if r.Metrics != nil {
		lag := 0.0
		if len(recs) > 0 {
			lag = now().Sub(recs[0].CreatedAt).Seconds()
		}
		r.Metrics.LagSeconds.Set(lag)
	}

	sent := 0
	for _, rec := range recs {
		pctx := pipe.WithCorrelationID(ctx, rec.CorrelationID)
		err := r.Publisher.Publish(pctx, pipe.Message{Topic: rec.Topic, Key: rec.Key, Value: rec.Payload})
		if err != nil {
			r.failed(ctx, cfg, rec, err, now())
			continue
		}

		if err := r.Queue.MarkSent(ctx, rec.ID); err != nil {
			r.Log.Error("outbox_mark_sent_failed", slog.Int64("id", rec.ID), slog.String("err", err.Error()))
			continue
		}
		if r.Metrics != nil {
			r.Metrics.PublishedTotal.WithLabelValues(rec.Topic).Inc()
		}
		sent++
	}
	return sent
}

func (r *Relay) failed(ctx context.Context, cfg RelayConfig, rec Record, cause error, now time.Time) {
	log := r.Log.With(slog.Int64("id", rec.ID), slog.String("topic", rec.Topic), slog.Int("attempts", rec.Attempts))

	if rec.Attempts >= cfg.MaxAttempts {
		if r.Metrics != nil {
			r.Metrics.DeadTotal.WithLabelValues(rec.Topic).Inc()
		}
		log.Error("outbox_dead", slog.String("err", cause.Error()))
		if err := r.Queue.MarkDead(ctx, rec.ID, cause.Error()); err != nil {
			log.Error("outbox_mark_dead_failed", slog.String("err", err.Error()))
		}
		return
	}

	if r.Metrics != nil {
		r.Metrics.FailedTotal.WithLabelValues(rec.Topic).Inc()
	}
	next := now.Add(Backoff(rec.Attempts, cfg.BaseBackoff, cfg.MaxBackoff))
	log.Warn("outbox_publish_failed", slog.String("err", cause.Error()), slog.Time("next_retry_at", next))
	if err := r.Queue.MarkFailed(ctx, rec.ID, next, cause.Error()); err != nil {
		log.Error("outbox_mark_failed_failed", slog.String("err", err.Error()))
	}
}

// Backoff doubles base per attempt, capped at max.
func Backoff(attempts int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
