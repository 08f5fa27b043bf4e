package workflow

import (
	"context"
	"fmt"

	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/events"
)

// Scheduler builds StepScheduled envelopes and publishes them. It does not validate its input.
type Scheduler struct {
	publisher pipe.Publisher
	topic     string
}

func NewScheduler(publisher pipe.Publisher, topic string) *Scheduler {
	if topic == "" {
		topic = events.KindStepScheduled.String()
	}
	return &Scheduler{publisher: publisher, topic: topic}
}

func (s *Scheduler) ScheduleStep(ctx context.Context, correlationID string, data events.StepScheduledData) (events.StepScheduled, error) {
	ev := events.New(events.ProducerOrchestrator, correlationID, data)

	raw, err := events.Encode(ev)
	if err != nil {
		return events.StepScheduled{}, fmt.Errorf("encode step scheduled: %w", err)
	}

	ctx = pipe.WithCorrelationID(ctx, correlationID)
	if err := s.publisher.Publish(ctx, pipe.Message{Topic: s.topic, Key: data.WorkflowID, Value: raw}); err != nil {
		return events.StepScheduled{}, fmt.Errorf("publish step scheduled: %w", err)
	}
	return ev, nil
}
