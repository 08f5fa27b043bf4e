// Package handlers holds the built-in step handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/worker"
)

const TypeMathAdd = "math.add"

// MathAdd returns {result: a + b}.
type MathAdd struct{}

func (MathAdd) Type() string { return TypeMathAdd }

func (MathAdd) Handle(_ context.Context, inputs events.Payload, _ worker.StepContext) (events.Payload, error) {
	a, err := number(inputs, "a")
	if err != nil {
		return nil, &worker.HandlerExecutionError{StepType: TypeMathAdd, Err: err}
	}
	b, err := number(inputs, "b")
	if err != nil {
		return nil, &worker.HandlerExecutionError{StepType: TypeMathAdd, Err: err}
	}
	return events.Payload{"result": a + b}, nil
}

func number(inputs events.Payload, key string) (float64, error) {
	v, ok := inputs[key]
	if !ok {
		return 0, fmt.Errorf("input %q must be a number, got missing", key)
	}
	n, ok := inputs.Number(key)
	if !ok {
		return 0, fmt.Errorf("input %q must be a number, got %s", key, events.TypeName(v))
	}
	return n, nil
}
