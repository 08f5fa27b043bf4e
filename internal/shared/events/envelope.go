// Package events defines the versioned {meta, data} envelope shared by every stepflow event
// and the validation gate that turns raw payloads into typed envelopes.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the only envelope version consumers accept.
const SchemaVersion = "1.0.0"

// Kind names an event contract. It is also the default transport topic.
type Kind string

const (
	KindWorkflowStarted Kind = "pipe.workflow.started.v1"
	KindStepScheduled   Kind = "pipe.step.scheduled.v1"
	KindStepCompleted   Kind = "pipe.workflow.step.completed.v1"
)

func (k Kind) String() string { return string(k) }

// Producer identities stamped into meta.producer.
const (
	ProducerOrchestrator = "stepflow/orchestrator"
	ProducerWorker       = "stepflow/worker"
)

type Meta struct {
	EventID       string    `json:"event_id"`
	TimestampUTC  time.Time `json:"timestamp_utc"`
	CorrelationID string    `json:"correlation_id"`
	Producer      string    `json:"producer"`
	SchemaVersion string    `json:"schema_version"`
}

type Envelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

type WorkflowStartedData struct {
	WorkflowID   string  `json:"workflow_id"`
	WorkflowName string  `json:"workflow_name,omitempty"`
	Initiator    string  `json:"initiator"`
	Inputs       Payload `json:"inputs,omitempty"`
}

type StepScheduledData struct {
	WorkflowID string  `json:"workflow_id"`
	StepID     string  `json:"step_id"`
	StepName   string  `json:"step_name,omitempty"`
	StepType   string  `json:"step_type"`
	Inputs     Payload `json:"inputs,omitempty"`
}

type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailure StepStatus = "failure"
)

func (s StepStatus) Valid() bool { return s == StepSuccess || s == StepFailure }

type StepCompletedData struct {
	WorkflowID string     `json:"workflow_id"`
	StepID     string     `json:"step_id"`
	StepName   string     `json:"step_name,omitempty"`
	Status     StepStatus `json:"status"`
	Outputs    Payload    `json:"outputs,omitempty"`
}

type (
	WorkflowStarted = Envelope[WorkflowStartedData]
	StepScheduled   = Envelope[StepScheduledData]
	StepCompleted   = Envelope[StepCompletedData]
)

// New stamps a fresh envelope around data.
func New[T any](producer, correlationID string, data T) Envelope[T] {
	return Envelope[T]{
		Meta: Meta{
			EventID:       uuid.NewString(),
			TimestampUTC:  time.Now().UTC(),
			CorrelationID: correlationID,
			Producer:      producer,
			SchemaVersion: SchemaVersion,
		},
		Data: data,
	}
}

func Encode[T any](env Envelope[T]) ([]byte, error) {
	return json.Marshal(env)
}
