// Package pipe moves encoded envelopes between the orchestrator and worker sides.
// Router connects them inside one process; the Kafka adapters connect separate processes.
package pipe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Message is one encoded envelope addressed to a topic. Key groups messages that must stay ordered
// (the workflow id).
type Message struct {
	Topic string
	Key   string
	Value []byte
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error { return f(ctx, msg) }

type HandlerFunc func(ctx context.Context, msg Message) error

// Router is an in-process topic router. Publish delivers to every subscriber of the topic
// synchronously, in subscription order, and stops at the first handler error.
type Router struct {
	mu   sync.RWMutex
	subs map[string][]HandlerFunc
	log  *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{subs: make(map[string][]HandlerFunc), log: log}
}

func (r *Router) Subscribe(topic string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[topic] = append(r.subs[topic], h)
}

func (r *Router) Publish(ctx context.Context, msg Message) error {
	r.mu.RLock()
	subs := append([]HandlerFunc(nil), r.subs[msg.Topic]...)
	r.mu.RUnlock()

	if len(subs) == 0 {
		r.log.Warn("pipe_no_subscribers", slog.String("topic", msg.Topic), slog.String("key", msg.Key))
		return nil
	}

	for _, h := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h(ctx, msg); err != nil {
			return fmt.Errorf("deliver %s: %w", msg.Topic, err)
		}
	}
	return nil
}
