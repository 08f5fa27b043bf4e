package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/k1networth/stepflow/internal/app"
	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/httpx"
	"github.com/k1networth/stepflow/internal/shared/logger"
	"github.com/k1networth/stepflow/internal/workflow"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunMathWorkflow(t *testing.T) {
	out, err := execute(t, "run", "--workflow-id", "wf-1", "--correlation-id", "c-1",
		"--inputs", `{"step_type":"math.add","a":10,"b":50}`)
	require.NoError(t, err)

	var st workflow.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, "wf-1", st.WorkflowID)
	require.Equal(t, workflow.StatusCompleted, st.Status)
	res, ok := st.Data.Map(workflow.DataOutputs)
	require.True(t, ok)
	require.Equal(t, 60.0, res["result"])
}

func TestRunWithSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	out, err := execute(t, "run", "--sqlite", path, "--workflow-id", "wf-2",
		"--inputs", `{"step_type":"math.add","a":"x","b":1}`)
	require.NoError(t, err)

	var st workflow.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, workflow.StatusFailed, st.Status)
}

func TestRunRejectsBadInputs(t *testing.T) {
	_, err := execute(t, "run", "--inputs", `[1,2]`)
	require.ErrorContains(t, err, "--inputs must be a JSON object")
}

func newOrchestratorServer(t *testing.T) *httptest.Server {
	t.Helper()
	noop := pipe.PublisherFunc(func(ctx context.Context, msg pipe.Message) error { return nil })
	orch := app.NewOrchestrator(logger.Discard(), workflow.NewInMemoryRepository(), noop, app.Options{})
	srv := httptest.NewServer(httpx.NewRouter(logger.Discard(), nil, orch.API))
	t.Cleanup(srv.Close)
	return srv
}

func TestStartThenStatusOverHTTP(t *testing.T) {
	srv := newOrchestratorServer(t)

	out, err := execute(t, "start", "--orchestrator-url", srv.URL, "--workflow-id", "wf-9",
		"--correlation-id", "corr-9", "--name", "demo")
	require.NoError(t, err)

	var res startResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "wf-9", res.WorkflowID)
	require.Equal(t, "corr-9", res.CorrelationID)
	require.NotEmpty(t, res.EventID)

	out, err = execute(t, "status", "--orchestrator-url", srv.URL, "wf-9")
	require.NoError(t, err)

	var st workflow.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, workflow.StatusRunning, st.Status)
	require.Equal(t, "demo", st.Data[workflow.DataWorkflowName])
}

func TestStatusNotFound(t *testing.T) {
	srv := newOrchestratorServer(t)
	_, err := execute(t, "status", "--orchestrator-url", srv.URL, "missing")
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestOrchestratorURLFromEnvironment(t *testing.T) {
	srv := newOrchestratorServer(t)
	t.Setenv("STEPFLOW_ORCHESTRATOR_URL", srv.URL)

	_, err := execute(t, "start", "--workflow-id", "wf-env")
	require.NoError(t, err)
	_, err = execute(t, "status", "wf-env")
	require.NoError(t, err)
}

func TestStartUnknownTransport(t *testing.T) {
	_, err := execute(t, "start", "--transport", "carrier-pigeon")
	require.ErrorContains(t, err, "unknown transport")
}
