package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/tracing"
)

// Engine is the orchestrator state machine. It keeps no workflow state of its own:
// every transition is a load, mutate, save against the Repository.
type Engine struct {
	repo      Repository
	scheduler *Scheduler
	planner   Planner
	log       *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
	metrics   *Metrics
}

type Option func(*Engine)

func WithPlanner(p Planner) Option { return func(e *Engine) { e.planner = p } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(repo Repository, scheduler *Scheduler, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		scheduler: scheduler,
		planner:   SingleStepPlanner{},
		log:       log,
		now:       time.Now,
		tracer:    tracing.Noop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OnWorkflowStarted creates the workflow in running state and schedules its first step.
// A start for a workflow that already exists is a redelivery and changes nothing.
func (e *Engine) OnWorkflowStarted(ctx context.Context, ev events.WorkflowStarted) (err error) {
	d := ev.Data
	ctx, span := e.tracer.Start(ctx, "workflow.started", trace.WithAttributes(
		tracing.AttrCorrelationID.String(ev.Meta.CorrelationID),
		tracing.AttrWorkflowID.String(d.WorkflowID),
	))
	defer func() { endSpan(span, err) }()

	existing, err := e.repo.Load(ctx, d.WorkflowID)
	switch {
	case err == nil:
		e.log.Warn("workflow_already_started",
			slog.String("workflow_id", d.WorkflowID),
			slog.String("correlation_id", ev.Meta.CorrelationID),
			slog.String("event_id", ev.Meta.EventID),
			slog.String("status", string(existing.Status)),
		)
		return nil
	case !errors.Is(err, ErrNotFound):
		return &RepositoryError{Op: "load", WorkflowID: d.WorkflowID, Err: err}
	}

	inputs := d.Inputs.Clone()
	if inputs == nil {
		inputs = events.Payload{}
	}
	now := e.now().UTC()
	st := State{
		WorkflowID: d.WorkflowID,
		Status:     StatusRunning,
		Data: events.Payload{
			DataInitiator: d.Initiator,
			DataInputs:    map[string]any(inputs),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.WorkflowName != "" {
		st.Data[DataWorkflowName] = d.WorkflowName
	}

	next, ok := e.planner.NextStep(st, nil)
	if ok {
		st.CurrentStepID = next.StepID
	}

	if err := e.repo.Save(ctx, st); err != nil {
		return &RepositoryError{Op: "save", WorkflowID: d.WorkflowID, Err: err}
	}
	e.metrics.transition(st.Status)

	e.log.Info("workflow_started",
		slog.String("workflow_id", d.WorkflowID),
		slog.String("correlation_id", ev.Meta.CorrelationID),
		slog.String("initiator", d.Initiator),
	)

	if !ok {
		// Nothing to run: an empty graph finishes immediately.
		return e.finish(ctx, st, StatusCompleted)
	}
	return e.schedule(ctx, ev.Meta.CorrelationID, d.WorkflowID, next)
}

// OnStepCompleted records a step result. Completions for unknown workflows are logged and dropped.
func (e *Engine) OnStepCompleted(ctx context.Context, ev events.StepCompleted) (err error) {
	d := ev.Data
	ctx, span := e.tracer.Start(ctx, "workflow.step_completed", trace.WithAttributes(
		tracing.AttrCorrelationID.String(ev.Meta.CorrelationID),
		tracing.AttrWorkflowID.String(d.WorkflowID),
		tracing.AttrStepID.String(d.StepID),
	))
	defer func() { endSpan(span, err) }()

	st, err := e.repo.Load(ctx, d.WorkflowID)
	if errors.Is(err, ErrNotFound) {
		e.metrics.anomaly()
		e.log.Warn("workflow_unknown",
			slog.String("workflow_id", d.WorkflowID),
			slog.String("step_id", d.StepID),
			slog.String("correlation_id", ev.Meta.CorrelationID),
			slog.String("event_id", ev.Meta.EventID),
		)
		return nil
	}
	if err != nil {
		return &RepositoryError{Op: "load", WorkflowID: d.WorkflowID, Err: err}
	}

	st.CurrentStepID = d.StepID
	st.UpdatedAt = e.now().UTC()
	if d.Outputs != nil {
		if st.Data == nil {
			st.Data = events.Payload{}
		}
		st.Data[DataOutputs] = map[string]any(d.Outputs.Clone())
	}

	log := e.log.With(
		slog.String("workflow_id", d.WorkflowID),
		slog.String("step_id", d.StepID),
		slog.String("correlation_id", ev.Meta.CorrelationID),
	)

	if st.Status.Terminal() {
		log.Warn("workflow_already_terminal", slog.String("status", string(st.Status)), slog.String("step_status", string(d.Status)))
		if err := e.repo.Save(ctx, st); err != nil {
			return &RepositoryError{Op: "save", WorkflowID: d.WorkflowID, Err: err}
		}
		return nil
	}

	if d.Status == events.StepFailure {
		log.Info("workflow_step_failed")
		return e.finish(ctx, st, StatusFailed)
	}

	next, ok := e.planner.NextStep(st, &d)
	if !ok {
		log.Info("workflow_step_succeeded")
		return e.finish(ctx, st, StatusCompleted)
	}

	st.CurrentStepID = next.StepID
	if err := e.repo.Save(ctx, st); err != nil {
		return &RepositoryError{Op: "save", WorkflowID: d.WorkflowID, Err: err}
	}
	return e.schedule(ctx, ev.Meta.CorrelationID, d.WorkflowID, next)
}

func (e *Engine) finish(ctx context.Context, st State, status Status) error {
	st.Status = status
	if err := e.repo.Save(ctx, st); err != nil {
		return &RepositoryError{Op: "save", WorkflowID: st.WorkflowID, Err: err}
	}
	e.metrics.transition(status)
	e.log.Info("workflow_finished", slog.String("workflow_id", st.WorkflowID), slog.String("status", string(status)))
	return nil
}

func (e *Engine) schedule(ctx context.Context, correlationID, workflowID string, next StepRequest) error {
	_, err := e.scheduler.ScheduleStep(ctx, correlationID, events.StepScheduledData{
		WorkflowID: workflowID,
		StepID:     next.StepID,
		StepName:   next.StepName,
		StepType:   next.StepType,
		Inputs:     next.Inputs,
	})
	if err != nil {
		return err
	}
	e.log.Info("step_scheduled",
		slog.String("workflow_id", workflowID),
		slog.String("step_id", next.StepID),
		slog.String("step_type", next.StepType),
		slog.String("correlation_id", correlationID),
	)
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
