package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/kafkax"
)

// NewPublisher returns the Kafka publisher when Kafka is enabled, otherwise an HTTP publisher
// posting to endpoints. The returned close function releases the producer.
func NewPublisher(cfg config.Config, clientID string, endpoints map[string]string) (pipe.Publisher, func() error) {
	if !cfg.KafkaEnabled {
		// The peer bounds its own handler with HTTPHandlerTimeout; wait a little longer to see its answer.
		client := &http.Client{Timeout: cfg.HTTPHandlerTimeout + 5*time.Second}
		return pipe.HTTPPublisher{Client: client, Endpoints: endpoints}, func() error { return nil }
	}
	p := kafkax.NewProducer(kafkax.ProducerConfig{Brokers: cfg.KafkaBrokers, ClientID: clientID, WriteTimeout: 10 * time.Second})
	return pipe.KafkaPublisher{Producer: p}, p.Close
}

// SkipInvalid adapts a gate entry point for Kafka: validation failures are committed and
// skipped, everything else is left for redelivery.
func SkipInvalid(fn func(context.Context, []byte) error) pipe.HandlerFunc {
	return func(ctx context.Context, msg pipe.Message) error {
		err := fn(ctx, msg.Value)
		var verr *events.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %w", pipe.ErrSkip, err)
		}
		return err
	}
}

// Consumers runs one Kafka consumer loop per topic until ctx is cancelled.
type Consumers struct {
	wg        sync.WaitGroup
	consumers []*kafkax.Consumer
}

func StartConsumers(ctx context.Context, log *slog.Logger, cfg config.Config, groupID string, byTopic map[string]pipe.HandlerFunc) *Consumers {
	cs := &Consumers{}
	for topic, h := range byTopic {
		c := kafkax.NewConsumer(kafkax.ConsumerConfig{Brokers: cfg.KafkaBrokers, Topic: topic, GroupID: groupID})
		cs.consumers = append(cs.consumers, c)

		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()
			pipe.Consume(ctx, log, c, h)
		}()
	}
	return cs
}

// Wait blocks until every loop has stopped, then closes the readers.
func (cs *Consumers) Wait() {
	cs.wg.Wait()
	for _, c := range cs.consumers {
		_ = c.Close()
	}
}
