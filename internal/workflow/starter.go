package workflow

import (
	"context"
	"fmt"

	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/events"
)

// Starter emits WorkflowStarted events on behalf of a trigger (CLI, ingestion, tests).
type Starter struct {
	publisher pipe.Publisher
	topic     string
	producer  string
}

func NewStarter(publisher pipe.Publisher, topic, producer string) *Starter {
	if topic == "" {
		topic = events.KindWorkflowStarted.String()
	}
	return &Starter{publisher: publisher, topic: topic, producer: producer}
}

func (s *Starter) EmitWorkflowStarted(ctx context.Context, correlationID string, data events.WorkflowStartedData) (events.WorkflowStarted, error) {
	if data.Inputs == nil {
		data.Inputs = events.Payload{}
	}
	ev := events.New(s.producer, correlationID, data)

	raw, err := events.Encode(ev)
	if err != nil {
		return events.WorkflowStarted{}, fmt.Errorf("encode workflow started: %w", err)
	}
	ctx = pipe.WithCorrelationID(ctx, correlationID)
	if err := s.publisher.Publish(ctx, pipe.Message{Topic: s.topic, Key: data.WorkflowID, Value: raw}); err != nil {
		return events.WorkflowStarted{}, fmt.Errorf("publish workflow started: %w", err)
	}
	return ev, nil
}
