package pipe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/k1networth/stepflow/internal/shared/kafkax"
)

const headerCorrelationID = "correlation_id"

// Producer is the subset of kafkax.Producer used by KafkaPublisher.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers ...kafkax.Header) error
}

// KafkaPublisher publishes keyed by workflow id, so one workflow's events share a partition
// and are consumed in order.
type KafkaPublisher struct {
	Producer Producer
}

func (p KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	var headers []kafkax.Header
	if cid := CorrelationID(ctx); cid != "" {
		headers = append(headers, kafkax.Header{Key: headerCorrelationID, Value: cid})
	}
	return p.Producer.Produce(ctx, msg.Topic, []byte(msg.Key), msg.Value, headers...)
}

// Fetcher is the subset of kafkax.Consumer used by Consume.
type Fetcher interface {
	Topic() string
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ConsumeOption tunes Consume.
type ConsumeOption func(*consumeOptions)

type consumeOptions struct {
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// WithRetryBackoff sets the delay between attempts of a failing message, doubling from base up
// to max.
func WithRetryBackoff(base, max time.Duration) ConsumeOption {
	return func(o *consumeOptions) { o.baseBackoff, o.maxBackoff = base, max }
}

// Consume runs fetch, handle, commit until ctx is cancelled. A handler error other than ErrSkip
// retries the same message until it succeeds: a group commit acknowledges every earlier offset
// of the partition, so nothing after a failed message may be fetched or committed.
func Consume(ctx context.Context, log *slog.Logger, c Fetcher, handle HandlerFunc, opts ...ConsumeOption) {
	o := consumeOptions{baseBackoff: 300 * time.Millisecond, maxBackoff: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	log.Info("consumer_start", slog.String("topic", c.Topic()))

	for {
		msg, err := c.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer_shutdown", slog.String("topic", c.Topic()))
				return
			}
			log.Error("kafka_fetch_failed", slog.String("topic", c.Topic()), slog.String("err", err.Error()))
			sleep(ctx, 300*time.Millisecond)
			continue
		}

		hctx := ctx
		for _, h := range msg.Headers {
			if h.Key == headerCorrelationID {
				hctx = WithCorrelationID(ctx, string(h.Value))
			}
		}

		if !handleUntilDone(hctx, log, msg, handle, o) {
			log.Info("consumer_shutdown", slog.String("topic", c.Topic()), slog.Int64("uncommitted_offset", msg.Offset))
			return
		}
		commit(ctx, log, c, msg)
	}
}

// handleUntilDone reports false when ctx ended before msg was handled or skipped.
func handleUntilDone(ctx context.Context, log *slog.Logger, msg kafka.Message, handle HandlerFunc, o consumeOptions) bool {
	backoff := o.baseBackoff
	for attempt := 1; ; attempt++ {
		err := handle(ctx, Message{Topic: msg.Topic, Key: string(msg.Key), Value: msg.Value})
		if err == nil {
			return true
		}
		if errors.Is(err, ErrSkip) {
			// Poison message: commit so the partition is not blocked behind it.
			log.Warn("message_skipped",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("err", err.Error()),
			)
			return true
		}

		log.Error("message_handle_failed",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.String("retry_in", backoff.String()),
			slog.String("err", err.Error()),
		)
		sleep(ctx, backoff)
		if ctx.Err() != nil {
			return false
		}
		backoff = min(backoff*2, o.maxBackoff)
	}
}

// ErrSkip marks a handler failure that redelivery cannot fix, such as a payload that fails validation.
var ErrSkip = errors.New("pipe: skip message")

func commit(ctx context.Context, log *slog.Logger, c Fetcher, msg kafka.Message) {
	if err := c.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		log.Error("kafka_commit_failed", slog.String("topic", msg.Topic), slog.String("err", err.Error()))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
