// Package worker executes scheduled steps: the Dispatcher selects a Handler by step type,
// the Consumer turns every attempt into exactly one result, and the Emitter publishes it.
package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/k1networth/stepflow/internal/shared/events"
)

// StepContext identifies the step a handler is running for.
type StepContext struct {
	WorkflowID    string
	StepID        string
	CorrelationID string
}

type Handler interface {
	Type() string
	Handle(ctx context.Context, inputs events.Payload, sc StepContext) (events.Payload, error)
}

// Dispatcher is a registry of handlers keyed by step type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *slog.Logger
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), log: log}
}

// Register adds h. A second handler for the same type replaces the first.
func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.handlers[h.Type()]; ok {
		d.log.Warn("handler_overwritten", slog.String("step_type", h.Type()))
	}
	d.handlers[h.Type()] = h
}

// Dispatch runs the handler for stepType. Handler errors are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, stepType string, inputs events.Payload, sc StepContext) (events.Payload, error) {
	d.mu.RLock()
	h, ok := d.handlers[stepType]
	d.mu.RUnlock()
	if !ok {
		return nil, &HandlerNotFoundError{StepType: stepType}
	}

	d.log.Debug("step_dispatch",
		slog.String("step_type", stepType),
		slog.String("workflow_id", sc.WorkflowID),
		slog.String("step_id", sc.StepID),
	)
	return h.Handle(ctx, inputs, sc)
}

// Types lists registered step types in sorted order.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
