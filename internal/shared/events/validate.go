package events

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var producerPatterns = map[Kind]*regexp.Regexp{
	KindWorkflowStarted: regexp.MustCompile(`^\S+$`),
	KindStepScheduled:   regexp.MustCompile(`^stepflow/orchestrator(/.+)?$`),
	KindStepCompleted:   regexp.MustCompile(`^stepflow/worker(/.+)?$`),
}

type fieldRule struct {
	name     string
	required bool
	check    func(v any) (string, bool) // returns expected type name
}

func isString(v any) (string, bool) {
	_, ok := v.(string)
	return "string", ok
}

func isID(v any) (string, bool) {
	s, ok := v.(string)
	return "non-empty string", ok && strings.TrimSpace(s) != ""
}

func isObject(v any) (string, bool) {
	_, ok := v.(map[string]any)
	return "object", ok
}

func isStatus(v any) (string, bool) {
	s, ok := v.(string)
	return "one of success|failure", ok && StepStatus(s).Valid()
}

var dataRules = map[Kind][]fieldRule{
	KindWorkflowStarted: {
		{name: "workflow_id", required: true, check: isID},
		{name: "workflow_name", check: isString},
		{name: "initiator", required: true, check: isID},
		{name: "inputs", check: isObject},
	},
	KindStepScheduled: {
		{name: "workflow_id", required: true, check: isID},
		{name: "step_id", required: true, check: isID},
		{name: "step_name", check: isString},
		{name: "step_type", required: true, check: isID},
		{name: "inputs", check: isObject},
	},
	KindStepCompleted: {
		{name: "workflow_id", required: true, check: isID},
		{name: "step_id", required: true, check: isID},
		{name: "step_name", check: isString},
		{name: "status", required: true, check: isStatus},
		{name: "outputs", check: isObject},
	},
}

// Validate checks raw against kind's contract and returns the typed envelope
// (WorkflowStarted, StepScheduled or StepCompleted). On failure it returns a *ValidationError
// and nothing else.
func Validate(kind Kind, raw []byte) (any, error) {
	var (
		ev  any
		err error
	)
	switch kind {
	case KindWorkflowStarted:
		ev, err = DecodeWorkflowStarted(raw)
	case KindStepScheduled:
		ev, err = DecodeStepScheduled(raw)
	case KindStepCompleted:
		ev, err = DecodeStepCompleted(raw)
	default:
		return nil, &ValidationError{Kind: kind, Reason: "unknown event kind"}
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func DecodeWorkflowStarted(raw []byte) (WorkflowStarted, error) {
	ev, err := decode[WorkflowStartedData](KindWorkflowStarted, raw)
	if err != nil {
		return WorkflowStarted{}, err
	}
	if ev.Data.Inputs == nil {
		ev.Data.Inputs = Payload{}
	}
	return ev, nil
}

func DecodeStepScheduled(raw []byte) (StepScheduled, error) {
	ev, err := decode[StepScheduledData](KindStepScheduled, raw)
	if err != nil {
		return StepScheduled{}, err
	}
	if ev.Data.Inputs == nil {
		ev.Data.Inputs = Payload{}
	}
	return ev, nil
}

func DecodeStepCompleted(raw []byte) (StepCompleted, error) {
	return decode[StepCompletedData](KindStepCompleted, raw)
}

func decode[T any](kind Kind, raw []byte) (Envelope[T], error) {
	if err := check(kind, raw); err != nil {
		return Envelope[T]{}, err
	}
	var env Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope[T]{}, invalid(kind, "", "decode: %v", err)
	}
	return env, nil
}

func check(kind Kind, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return invalid(kind, "", "payload is not valid JSON")
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return invalid(kind, "", "payload must be an object, got %s", TypeName(doc))
	}

	meta, ok := root["meta"].(map[string]any)
	if !ok {
		return invalid(kind, "meta", "required object")
	}

	version, ok := meta["schema_version"].(string)
	if !ok {
		return invalid(kind, "meta.schema_version", "required string")
	}
	if version != SchemaVersion {
		return invalid(kind, "meta.schema_version", "unsupported version %q, want %q", version, SchemaVersion)
	}

	producer, _ := meta["producer"].(string)
	if !producerPatterns[kind].MatchString(producer) {
		return invalid(kind, "meta.producer", "producer %q not allowed for this event", producer)
	}

	for _, f := range []string{"event_id", "correlation_id"} {
		s, ok := meta[f].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return invalid(kind, "meta."+f, "required non-empty string")
		}
	}
	ts, ok := meta["timestamp_utc"].(string)
	if !ok {
		return invalid(kind, "meta.timestamp_utc", "required string")
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		return invalid(kind, "meta.timestamp_utc", "not an ISO-8601 timestamp")
	}

	data, ok := root["data"].(map[string]any)
	if !ok {
		return invalid(kind, "data", "required object")
	}
	for _, rule := range dataRules[kind] {
		v, present := data[rule.name]
		if !present || (v == nil && !rule.required) {
			if rule.required {
				return invalid(kind, "data."+rule.name, "required")
			}
			continue
		}
		if want, ok := rule.check(v); !ok {
			return invalid(kind, "data."+rule.name, "expected %s, got %s", want, describe(v))
		}
	}
	return nil
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return TypeName(v)
}
