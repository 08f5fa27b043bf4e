package worker

import "fmt"

// HandlerNotFoundError means no handler is registered for StepType.
type HandlerNotFoundError struct {
	StepType string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for step type: %s", e.StepType)
}

// HandlerExecutionError is returned by handlers when their inputs are unusable or their
// downstream call failed.
type HandlerExecutionError struct {
	StepType string
	Err      error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.StepType, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }
