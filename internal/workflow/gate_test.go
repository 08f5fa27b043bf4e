package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/k1networth/stepflow/internal/dedup"
	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/logger"
	"github.com/k1networth/stepflow/internal/workflow"
)

func encode[T any](t *testing.T, env events.Envelope[T]) []byte {
	t.Helper()
	raw, err := events.Encode(env)
	require.NoError(t, err)
	return raw
}

func newGate(repo workflow.Repository, rec *recorder, store dedup.Store) (*workflow.Gate, *workflow.Metrics) {
	m := workflow.NewMetrics(prometheus.NewRegistry())
	e := newEngine(repo, rec, workflow.WithMetrics(m))
	return &workflow.Gate{Engine: e, Dedup: store, Log: logger.Discard(), Metrics: m}, m
}

func TestGateRejectsWrongSchemaVersion(t *testing.T) {
	ctx := context.Background()
	repo := workflow.NewInMemoryRepository()
	rec := &recorder{}
	g, m := newGate(repo, rec, nil)

	start := started("wf-1", "c", nil)
	start.Meta.SchemaVersion = "0.0.9"
	err := g.HandleWorkflowStarted(ctx, encode(t, start))

	var verr *events.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "meta.schema_version", verr.Field)
	require.Empty(t, rec.scheduled(t))
	_, err = repo.Load(ctx, "wf-1")
	require.ErrorIs(t, err, workflow.ErrNotFound)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProcessedTotal.WithLabelValues(events.KindWorkflowStarted.String(), "invalid")))

	done := completed("wf-1", "c", events.StepSuccess, nil)
	done.Meta.SchemaVersion = "0.0.9"
	require.ErrorAs(t, g.HandleStepCompleted(ctx, encode(t, done)), &verr)
}

func TestGateRejectsCompletionFromNonWorkerProducer(t *testing.T) {
	g, _ := newGate(workflow.NewInMemoryRepository(), &recorder{}, nil)

	done := completed("wf-1", "c", events.StepSuccess, nil)
	done.Meta.Producer = events.ProducerOrchestrator

	var verr *events.ValidationError
	require.ErrorAs(t, g.HandleStepCompleted(context.Background(), encode(t, done)), &verr)
	require.Equal(t, "meta.producer", verr.Field)
}

func TestGateWithoutDedupAppliesReplays(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	g, m := newGate(workflow.NewInMemoryRepository(), rec, nil)

	require.NoError(t, g.HandleWorkflowStarted(ctx, encode(t, started("wf-1", "c", nil))))

	raw := encode(t, completed("wf-1", "c", events.StepSuccess, events.Payload{"result": 1.0}))
	require.NoError(t, g.HandleStepCompleted(ctx, raw))
	require.NoError(t, g.HandleStepCompleted(ctx, raw))

	require.Len(t, rec.scheduled(t), 1)
	require.Equal(t, 2.0, testutil.ToFloat64(m.ProcessedTotal.WithLabelValues(events.KindStepCompleted.String(), "ok")))
}

func TestGateWithDedupSkipsProcessedEvents(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	store := dedup.NewMemoryStore(time.Minute)
	g, m := newGate(workflow.NewInMemoryRepository(), rec, store)

	raw := encode(t, started("wf-1", "c", nil))
	require.NoError(t, g.HandleWorkflowStarted(ctx, raw))
	require.NoError(t, g.HandleWorkflowStarted(ctx, raw))

	require.Len(t, rec.scheduled(t), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProcessedTotal.WithLabelValues(events.KindWorkflowStarted.String(), "duplicate")))
}

func TestGateWithDedupRetriesFailedEvents(t *testing.T) {
	ctx := context.Background()
	store := dedup.NewMemoryStore(time.Minute)
	m := workflow.NewMetrics(prometheus.NewRegistry())
	e := newEngine(failingRepo{saveErr: context.DeadlineExceeded}, &recorder{})
	g := &workflow.Gate{Engine: e, Dedup: store, Log: logger.Discard(), Metrics: m}

	start := started("wf-1", "c", nil)
	raw := encode(t, start)
	require.Error(t, g.HandleWorkflowStarted(ctx, raw))
	require.Error(t, g.HandleWorkflowStarted(ctx, raw))
	require.Equal(t, 2, store.Attempts(start.Meta.EventID))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ProcessedTotal.WithLabelValues(events.KindWorkflowStarted.String(), "error")))
}

func TestGateReportsEventHeldByAnotherDelivery(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	store := dedup.NewMemoryStore(time.Minute)
	g, m := newGate(workflow.NewInMemoryRepository(), rec, store)

	start := started("wf-1", "c", nil)
	raw := encode(t, start)

	// Another delivery of the same event has claimed it and not finished yet.
	ok, err := store.Begin(ctx, dedup.Event{EventID: start.Meta.EventID})
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, g.HandleWorkflowStarted(ctx, raw), dedup.ErrInProgress)
	require.Empty(t, rec.scheduled(t))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProcessedTotal.WithLabelValues(events.KindWorkflowStarted.String(), "in_progress")))

	require.NoError(t, store.Done(ctx, start.Meta.EventID))
	require.NoError(t, g.HandleWorkflowStarted(ctx, raw))
	require.Empty(t, rec.scheduled(t))
}
