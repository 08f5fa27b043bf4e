package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/workflow"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := workflow.NewInMemoryRepository()
	st := workflow.State{
		WorkflowID:    "wf-1",
		Status:        workflow.StatusRunning,
		CurrentStepID: "step-1",
		Data:          events.Payload{"inputs": map[string]any{"nested": map[string]any{"k": []any{1.0}}}},
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}

	require.NoError(t, repo.Save(ctx, st))
	got, err := repo.Load(ctx, "wf-1")
	require.NoError(t, err)
	require.Equal(t, st, got)

	// Stored copies are isolated from caller mutation.
	got.Data["inputs"].(map[string]any)["nested"].(map[string]any)["k"] = "changed"
	again, err := repo.Load(ctx, "wf-1")
	require.NoError(t, err)
	require.Equal(t, st, again)
}

func TestInMemoryUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := workflow.NewInMemoryRepository()
	require.NoError(t, repo.Save(ctx, workflow.State{WorkflowID: "wf", Status: workflow.StatusRunning, CreatedAt: fixedNow, UpdatedAt: fixedNow}))
	require.NoError(t, repo.Save(ctx, workflow.State{WorkflowID: "wf", Status: workflow.StatusCompleted, CreatedAt: fixedNow.Add(time.Hour), UpdatedAt: fixedNow.Add(time.Hour)}))

	got, err := repo.Load(ctx, "wf")
	require.NoError(t, err)
	require.Equal(t, fixedNow, got.CreatedAt)
	require.Equal(t, fixedNow.Add(time.Hour), got.UpdatedAt)
	require.Equal(t, workflow.StatusCompleted, got.Status)
}

func TestInMemoryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := workflow.NewInMemoryRepository()
	require.ErrorIs(t, repo.Save(ctx, workflow.State{WorkflowID: "wf"}), context.Canceled)
	_, err := repo.Load(ctx, "wf")
	require.ErrorIs(t, err, context.Canceled)
}
