package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/k1networth/stepflow/internal/dedup"
	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/tracing"
	"github.com/k1networth/stepflow/internal/worker"
	"github.com/k1networth/stepflow/internal/worker/handlers"
	"github.com/k1networth/stepflow/internal/workflow"
)

type Topics struct {
	Started   string
	Scheduled string
	Completed string
}

func DefaultTopics() Topics {
	return Topics{
		Started:   events.KindWorkflowStarted.String(),
		Scheduled: events.KindStepScheduled.String(),
		Completed: events.KindStepCompleted.String(),
	}
}

func TopicsFromConfig(cfg config.Config) Topics {
	t := DefaultTopics()
	if cfg.TopicStarted != "" {
		t.Started = cfg.TopicStarted
	}
	if cfg.TopicScheduled != "" {
		t.Scheduled = cfg.TopicScheduled
	}
	if cfg.TopicCompleted != "" {
		t.Completed = cfg.TopicCompleted
	}
	return t
}

// Options are shared by both sides. Zero values disable metrics, tracing and dedup.
type Options struct {
	Topics          Topics
	Registerer      prometheus.Registerer
	Tracer          trace.Tracer
	Dedup           dedup.Store
	Planner         workflow.Planner
	HTTPStepTimeout time.Duration
}

func (o Options) tracer() trace.Tracer {
	if o.Tracer == nil {
		return tracing.Noop()
	}
	return o.Tracer
}

func (o Options) topics() Topics {
	if o.Topics == (Topics{}) {
		return DefaultTopics()
	}
	return o.Topics
}

// Orchestrator is the orchestrator side: it consumes started and completed events and
// publishes scheduled ones.
type Orchestrator struct {
	Engine  *workflow.Engine
	Gate    *workflow.Gate
	API     *workflow.Handler
	Metrics *workflow.Metrics
}

func NewOrchestrator(log *slog.Logger, repo workflow.Repository, pub pipe.Publisher, o Options) *Orchestrator {
	var m *workflow.Metrics
	if o.Registerer != nil {
		m = workflow.NewMetrics(o.Registerer)
	}

	opts := []workflow.Option{workflow.WithTracer(o.tracer()), workflow.WithMetrics(m)}
	if o.Planner != nil {
		opts = append(opts, workflow.WithPlanner(o.Planner))
	}
	engine := workflow.NewEngine(repo, workflow.NewScheduler(pub, o.topics().Scheduled), log, opts...)
	gate := &workflow.Gate{Engine: engine, Dedup: o.Dedup, Log: log, Metrics: m}

	return &Orchestrator{
		Engine:  engine,
		Gate:    gate,
		API:     &workflow.Handler{Log: log, Gate: gate, Repo: repo},
		Metrics: m,
	}
}

// Worker is the worker side: it consumes scheduled events and publishes completed ones.
type Worker struct {
	Dispatcher *worker.Dispatcher
	Consumer   *worker.Consumer
	Emitter    *worker.Emitter
	API        *worker.API
}

func NewWorker(log *slog.Logger, pub pipe.Publisher, o Options) *Worker {
	d := worker.NewDispatcher(log)
	for _, h := range BuiltinHandlers(o.HTTPStepTimeout) {
		d.Register(h)
	}

	var m *worker.Metrics
	if o.Registerer != nil {
		m = worker.NewMetrics(o.Registerer)
	}

	em := worker.NewEmitter(pub, o.topics().Completed)
	c := &worker.Consumer{Dispatcher: d, Sink: em, Log: log, Metrics: m, Tracer: o.tracer()}
	return &Worker{
		Dispatcher: d,
		Consumer:   c,
		Emitter:    em,
		API:        &worker.API{Log: log, Consumer: c},
	}
}

func BuiltinHandlers(httpTimeout time.Duration) []worker.Handler {
	return []worker.Handler{
		handlers.MathAdd{},
		handlers.NewHTTPRequest(httpTimeout),
	}
}

// InProcess connects both sides through a pipe.Router. Publishing a WorkflowStarted runs the
// whole workflow before Start returns.
type InProcess struct {
	Router       *pipe.Router
	Repo         workflow.Repository
	Orchestrator *Orchestrator
	Worker       *Worker
	Starter      *workflow.Starter
}

func NewInProcess(log *slog.Logger, repo workflow.Repository, o Options) *InProcess {
	t := o.topics()
	r := pipe.NewRouter(log)

	orch := NewOrchestrator(log, repo, r, o)
	w := NewWorker(log, r, o)

	r.Subscribe(t.Started, func(ctx context.Context, msg pipe.Message) error {
		return orch.Gate.HandleWorkflowStarted(ctx, msg.Value)
	})
	r.Subscribe(t.Scheduled, func(ctx context.Context, msg pipe.Message) error {
		return w.Consumer.HandleStepScheduled(ctx, msg.Value)
	})
	r.Subscribe(t.Completed, func(ctx context.Context, msg pipe.Message) error {
		return orch.Gate.HandleStepCompleted(ctx, msg.Value)
	})

	return &InProcess{
		Router:       r,
		Repo:         repo,
		Orchestrator: orch,
		Worker:       w,
		Starter:      workflow.NewStarter(r, t.Started, "stepflow/cli"),
	}
}

// Start publishes a WorkflowStarted and returns the resulting state.
func (p *InProcess) Start(ctx context.Context, correlationID string, data events.WorkflowStartedData) (workflow.State, error) {
	if _, err := p.Starter.EmitWorkflowStarted(ctx, correlationID, data); err != nil {
		return workflow.State{}, err
	}
	st, err := p.Repo.Load(ctx, data.WorkflowID)
	if err != nil {
		return workflow.State{}, fmt.Errorf("load %s: %w", data.WorkflowID, err)
	}
	return st, nil
}
