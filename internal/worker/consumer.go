package worker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/tracing"
)

// StepExecuted is the outcome of one dispatch attempt.
type StepExecuted struct {
	Event   events.StepScheduled
	Status  events.StepStatus
	Outputs events.Payload
}

// ResultSink receives every StepExecuted the Consumer produces.
type ResultSink interface {
	StepExecuted(ctx context.Context, res StepExecuted) error
}

type ResultSinkFunc func(ctx context.Context, res StepExecuted) error

func (f ResultSinkFunc) StepExecuted(ctx context.Context, res StepExecuted) error { return f(ctx, res) }

// DefaultEmitTimeout bounds handing a result to the Sink.
const DefaultEmitTimeout = 10 * time.Second

// Consumer is the worker's inbound side. A valid step request always yields exactly one
// StepExecuted; only validation failures are returned without one.
type Consumer struct {
	Dispatcher  *Dispatcher
	Sink        ResultSink
	Log         *slog.Logger
	Metrics     *Metrics
	Tracer      trace.Tracer
	Now         func() time.Time
	EmitTimeout time.Duration
}

func (c *Consumer) HandleStepScheduled(ctx context.Context, raw []byte) error {
	ev, err := events.DecodeStepScheduled(raw)
	if err != nil {
		c.Metrics.rejected()
		c.Log.Warn("event_rejected", slog.String("kind", events.KindStepScheduled.String()), slog.String("err", err.Error()))
		return err
	}

	res := c.execute(ctx, ev)

	// The result is emitted even when the request that carried the step was cancelled or timed
	// out meanwhile; otherwise the workflow would wait for it forever.
	timeout := c.EmitTimeout
	if timeout <= 0 {
		timeout = DefaultEmitTimeout
	}
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return c.Sink.StepExecuted(ectx, res)
}

func (c *Consumer) execute(ctx context.Context, ev events.StepScheduled) StepExecuted {
	d := ev.Data
	tracer := c.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	ctx, span := tracer.Start(ctx, "worker.dispatch", trace.WithAttributes(
		tracing.AttrCorrelationID.String(ev.Meta.CorrelationID),
		tracing.AttrWorkflowID.String(d.WorkflowID),
		tracing.AttrStepID.String(d.StepID),
		tracing.AttrStepType.String(d.StepType),
	))
	defer span.End()

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	start := now()

	outputs, err := c.Dispatcher.Dispatch(ctx, d.StepType, d.Inputs.Clone(), StepContext{
		WorkflowID:    d.WorkflowID,
		StepID:        d.StepID,
		CorrelationID: ev.Meta.CorrelationID,
	})
	elapsed := now().Sub(start)

	log := c.Log.With(
		slog.String("workflow_id", d.WorkflowID),
		slog.String("step_id", d.StepID),
		slog.String("step_type", d.StepType),
		slog.String("correlation_id", ev.Meta.CorrelationID),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.Metrics.observe(d.StepType, string(events.StepFailure), elapsed)
		log.Warn("step_dispatch_failed", slog.String("err", err.Error()))
		return StepExecuted{Event: ev, Status: events.StepFailure, Outputs: events.Payload{"error": err.Error()}}
	}

	if outputs == nil {
		outputs = events.Payload{}
	}
	c.Metrics.observe(d.StepType, string(events.StepSuccess), elapsed)
	log.Info("step_executed", slog.Duration("elapsed", elapsed))
	return StepExecuted{Event: ev, Status: events.StepSuccess, Outputs: outputs}
}
