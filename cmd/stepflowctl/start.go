package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/kafkax"
	"github.com/k1networth/stepflow/internal/workflow"
)

type startResult struct {
	WorkflowID    string `json:"workflow_id"`
	CorrelationID string `json:"correlation_id"`
	EventID       string `json:"event_id"`
}

func newStartCmd(v *viper.Viper) *cobra.Command {
	var f workflowFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Publish a WorkflowStarted event",
		Example: `  stepflowctl start --inputs '{"step_type":"math.add","a":10,"b":50}'
  stepflowctl start --transport kafka --kafka-brokers k1:9092 --workflow-id wf-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := f.data()
			if err != nil {
				return err
			}
			if data.WorkflowID == "" {
				data.WorkflowID = uuid.NewString()
			}
			correlationID := f.correlationID
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			topic := v.GetString("topic-started")
			pub, closeFn, err := startPublisher(v, topic)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			ev, err := workflow.NewStarter(pub, topic, cliProducer).EmitWorkflowStarted(cmd.Context(), correlationID, data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), startResult{
				WorkflowID:    data.WorkflowID,
				CorrelationID: correlationID,
				EventID:       ev.Meta.EventID,
			})
		},
	}
	f.register(cmd)
	return cmd
}

func startPublisher(v *viper.Viper, topic string) (pipe.Publisher, func() error, error) {
	switch v.GetString("transport") {
	case "http":
		url := strings.TrimRight(v.GetString("orchestrator-url"), "/") + "/v1/workflow/start"
		return pipe.HTTPPublisher{
			Client:    &http.Client{Timeout: 30 * time.Second},
			Endpoints: map[string]string{topic: url},
		}, func() error { return nil }, nil
	case "kafka":
		p := kafkax.NewProducer(kafkax.ProducerConfig{
			Brokers:      v.GetStringSlice("kafka-brokers"),
			ClientID:     "stepflowctl",
			WriteTimeout: 10 * time.Second,
		})
		return pipe.KafkaPublisher{Producer: p}, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", v.GetString("transport"))
	}
}
