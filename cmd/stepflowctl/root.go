package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/k1networth/stepflow/internal/shared/events"
)

const cliProducer = "stepflow/cli"

// Flags are bound to STEPFLOW_* environment variables, e.g. --orchestrator-url to
// STEPFLOW_ORCHESTRATOR_URL.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("stepflow")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "stepflowctl",
		Short:         "Start and inspect stepflow workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("orchestrator-url", "http://localhost:8080", "orchestrator base URL")
	pf.String("transport", "http", "how start publishes: http or kafka")
	pf.StringSlice("kafka-brokers", []string{"localhost:9092"}, "Kafka brokers for --transport=kafka")
	pf.String("topic-started", events.KindWorkflowStarted.String(), "topic for WorkflowStarted events")
	_ = v.BindPFlags(pf)

	root.AddCommand(newStartCmd(v), newStatusCmd(v), newRunCmd())
	return root
}

// workflowFlags are shared by start and run.
type workflowFlags struct {
	workflowID    string
	name          string
	initiator     string
	inputs        string
	correlationID string
}

func (f *workflowFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.workflowID, "workflow-id", "", "workflow id (default: random uuid)")
	fl.StringVar(&f.name, "name", "", "workflow name")
	fl.StringVar(&f.initiator, "initiator", "stepflowctl", "who started the workflow")
	fl.StringVar(&f.inputs, "inputs", "{}", "workflow inputs as a JSON object")
	fl.StringVar(&f.correlationID, "correlation-id", "", "correlation id (default: random uuid)")
}

func (f *workflowFlags) data() (events.WorkflowStartedData, error) {
	var inputs events.Payload
	if err := json.Unmarshal([]byte(f.inputs), &inputs); err != nil {
		return events.WorkflowStartedData{}, fmt.Errorf("--inputs must be a JSON object: %w", err)
	}
	if inputs == nil {
		inputs = events.Payload{}
	}
	return events.WorkflowStartedData{
		WorkflowID:   f.workflowID,
		WorkflowName: f.name,
		Initiator:    f.initiator,
		Inputs:       inputs,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
