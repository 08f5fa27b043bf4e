package workflow

import "github.com/k1networth/stepflow/internal/shared/events"

// StepRequest is the next step a Planner wants scheduled.
type StepRequest struct {
	StepID   string
	StepName string
	StepType string
	Inputs   events.Payload
}

// Planner decides which step runs next. last is nil when the workflow has just started.
// Returning false means the workflow has no further steps.
type Planner interface {
	NextStep(st State, last *events.StepCompletedData) (StepRequest, bool)
}

const (
	FirstStepID         = "step-1"
	FirstStepName       = "initial-step"
	DefaultStepType     = "function"
	InputStepTypeOption = "step_type"
)

// SingleStepPlanner schedules one step with the start inputs and then finishes.
// The step type comes from inputs.step_type when it is a string, otherwise DefaultStepType.
type SingleStepPlanner struct{}

func (SingleStepPlanner) NextStep(st State, last *events.StepCompletedData) (StepRequest, bool) {
	if last != nil {
		return StepRequest{}, false
	}

	inputs := st.Inputs()
	stepType := DefaultStepType
	if s, ok := inputs.String(InputStepTypeOption); ok {
		stepType = s
	}

	if inputs == nil {
		inputs = events.Payload{}
	}
	return StepRequest{
		StepID:   FirstStepID,
		StepName: FirstStepName,
		StepType: stepType,
		Inputs:   inputs.Clone(),
	}, true
}
