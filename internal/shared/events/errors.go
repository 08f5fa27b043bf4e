package events

import "fmt"

// ValidationError rejects a payload that does not honor its kind's contract.
// Field is a dotted path such as "meta.schema_version" or "data.status".
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s event: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s event: %s: %s", e.Kind, e.Field, e.Reason)
}

func invalid(kind Kind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}
