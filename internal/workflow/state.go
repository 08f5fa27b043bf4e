package workflow

import (
	"time"

	"github.com/k1networth/stepflow/internal/shared/events"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition may change the status.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Keys used inside State.Data.
const (
	DataInitiator    = "initiator"
	DataInputs       = "inputs"
	DataOutputs      = "outputs"
	DataWorkflowName = "workflow_name"
)

// State is the persisted workflow aggregate. It is always saved whole.
type State struct {
	WorkflowID    string         `json:"workflow_id"`
	Status        Status         `json:"status"`
	CurrentStepID string         `json:"current_step_id,omitempty"`
	Data          events.Payload `json:"data"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (s State) Clone() State {
	s.Data = s.Data.Clone()
	return s
}

// Inputs returns the inputs recorded at start.
func (s State) Inputs() events.Payload {
	in, _ := s.Data.Map(DataInputs)
	return in
}
