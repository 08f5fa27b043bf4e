package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/k1networth/stepflow/internal/app"
	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/logger"
	"github.com/k1networth/stepflow/internal/workflow"
)

func mathWorkflow() events.WorkflowStartedData {
	return events.WorkflowStartedData{
		WorkflowID: "wf-1",
		Initiator:  "tester",
		Inputs:     events.Payload{"step_type": "math.add", "a": 10, "b": 50},
	}
}

func TestInProcessMathWorkflow(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	p := app.NewInProcess(logger.Discard(), workflow.NewInMemoryRepository(), app.Options{Registerer: reg})

	var scheduled []events.StepScheduled
	p.Router.Subscribe(events.KindStepScheduled.String(), func(ctx context.Context, msg pipe.Message) error {
		ev, err := events.DecodeStepScheduled(msg.Value)
		require.NoError(t, err)
		scheduled = append(scheduled, ev)
		return nil
	})

	st, err := p.Start(ctx, "corr-1", mathWorkflow())
	require.NoError(t, err)

	require.Len(t, scheduled, 1)
	require.Equal(t, "math.add", scheduled[0].Data.StepType)
	require.Equal(t, "corr-1", scheduled[0].Meta.CorrelationID)
	require.Equal(t, 10.0, scheduled[0].Data.Inputs["a"])
	require.Equal(t, 50.0, scheduled[0].Data.Inputs["b"])

	require.Equal(t, workflow.StatusCompleted, st.Status)
	require.Equal(t, workflow.FirstStepID, st.CurrentStepID)
	out, ok := st.Data.Map(workflow.DataOutputs)
	require.True(t, ok)
	result, ok := out.Number("result")
	require.True(t, ok)
	require.Equal(t, 60.0, result)

	require.Equal(t, 1.0, testutil.ToFloat64(p.Worker.Consumer.Metrics.StepsTotal.WithLabelValues("math.add", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.Orchestrator.Metrics.ProcessedTotal.WithLabelValues(events.KindStepCompleted.String(), "ok")))
}

func TestInProcessFailingStepFailsWorkflow(t *testing.T) {
	data := mathWorkflow()
	data.Inputs["a"] = "5"
	p := app.NewInProcess(logger.Discard(), workflow.NewInMemoryRepository(), app.Options{})

	st, err := p.Start(context.Background(), "corr-2", data)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusFailed, st.Status)
	out, ok := st.Data.Map(workflow.DataOutputs)
	require.True(t, ok)
	msg, _ := out.String("error")
	require.Contains(t, msg, `"a"`)
}

func TestInProcessUnknownStepTypeFailsWorkflow(t *testing.T) {
	p := app.NewInProcess(logger.Discard(), workflow.NewInMemoryRepository(), app.Options{})

	st, err := p.Start(context.Background(), "corr-3", events.WorkflowStartedData{WorkflowID: "wf-3", Initiator: "tester"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusFailed, st.Status)
	out, _ := st.Data.Map(workflow.DataOutputs)
	require.Equal(t, "no handler registered for step type: function", out["error"])
}

func TestInProcessOverSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Repository: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "wf.db")}
	st, err := app.OpenStorage(ctx, logger.Discard(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	p := app.NewInProcess(logger.Discard(), st.Repo, app.Options{})
	got, err := p.Start(ctx, "corr-1", mathWorkflow())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, got.Status)
	require.Equal(t, 60.0, got.Data[workflow.DataOutputs].(map[string]any)["result"])
	require.Equal(t, "tester", got.Data[workflow.DataInitiator])
}

func TestOpenDedup(t *testing.T) {
	store, err := app.OpenDedup(config.Config{Dedup: "off"}, nil)
	require.NoError(t, err)
	require.Nil(t, store)

	store, err = app.OpenDedup(config.Config{Dedup: "memory"}, nil)
	require.NoError(t, err)
	require.NotNil(t, store)

	_, err = app.OpenDedup(config.Config{Dedup: "postgres"}, &app.Storage{Kind: "sqlite"})
	require.Error(t, err)

	_, err = app.OpenDedup(config.Config{Dedup: "bogus"}, nil)
	require.Error(t, err)
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	_, err := app.OpenStorage(context.Background(), logger.Discard(), config.Config{Repository: "redis"})
	require.Error(t, err)
}

func TestTopicsFromConfig(t *testing.T) {
	got := app.TopicsFromConfig(config.Config{TopicScheduled: "custom.scheduled"})
	require.Equal(t, app.Topics{
		Started:   events.KindWorkflowStarted.String(),
		Scheduled: "custom.scheduled",
		Completed: events.KindStepCompleted.String(),
	}, got)
}

func TestOutboxPublisher(t *testing.T) {
	direct := pipe.PublisherFunc(func(context.Context, pipe.Message) error { return nil })

	pub, err := app.OutboxPublisher(config.Config{}, nil, direct)
	require.NoError(t, err)
	require.NotNil(t, pub)

	_, err = app.OutboxPublisher(config.Config{OutboxEnabled: true}, &app.Storage{Kind: "memory"}, direct)
	require.Error(t, err)
}

func TestRelayConfig(t *testing.T) {
	rc := app.RelayConfig(config.Config{OutboxBatchSize: 7, OutboxMaxAttempts: 3})
	require.Equal(t, 7, rc.BatchSize)
	require.Equal(t, 3, rc.MaxAttempts)
}
