package worker

import (
	"context"
	"fmt"

	"github.com/k1networth/stepflow/internal/pipe"
	"github.com/k1networth/stepflow/internal/shared/events"
)

// UnknownStepName is reported when the scheduled step carried no name.
const UnknownStepName = "unknown-step"

// Emitter publishes StepCompleted envelopes stamped with the worker identity.
type Emitter struct {
	publisher pipe.Publisher
	topic     string
}

func NewEmitter(publisher pipe.Publisher, topic string) *Emitter {
	if topic == "" {
		topic = events.KindStepCompleted.String()
	}
	return &Emitter{publisher: publisher, topic: topic}
}

func (e *Emitter) EmitStepCompleted(ctx context.Context, correlationID string, data events.StepCompletedData) (events.StepCompleted, error) {
	ev := events.New(events.ProducerWorker, correlationID, data)

	raw, err := events.Encode(ev)
	if err != nil {
		return events.StepCompleted{}, fmt.Errorf("encode step completed: %w", err)
	}

	ctx = pipe.WithCorrelationID(ctx, correlationID)
	if err := e.publisher.Publish(ctx, pipe.Message{Topic: e.topic, Key: data.WorkflowID, Value: raw}); err != nil {
		return events.StepCompleted{}, fmt.Errorf("publish step completed: %w", err)
	}
	return ev, nil
}

// StepExecuted implements ResultSink.
func (e *Emitter) StepExecuted(ctx context.Context, res StepExecuted) error {
	d := res.Event.Data
	name := d.StepName
	if name == "" {
		name = UnknownStepName
	}
	_, err := e.EmitStepCompleted(ctx, res.Event.Meta.CorrelationID, events.StepCompletedData{
		WorkflowID: d.WorkflowID,
		StepID:     d.StepID,
		StepName:   name,
		Status:     res.Status,
		Outputs:    res.Outputs,
	})
	return err
}
