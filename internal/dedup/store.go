// Package dedup tracks processed event ids so a redelivered event can be skipped.
// Every store follows the same lifecycle: Begin, then Done or Failed.
package dedup

import (
	"context"
	"errors"
	"time"
)

type Event struct {
	EventID    string
	Kind       string
	WorkflowID string
}

type Store interface {
	// Begin records an attempt and claims the event. It reports false once the event is done,
	// and ErrInProgress while another delivery holds a claim younger than the claim timeout.
	// A failed event or a stale claim is claimed again.
	Begin(ctx context.Context, e Event) (bool, error)
	Done(ctx context.Context, eventID string) error
	Failed(ctx context.Context, eventID, errMsg string) error
}

// ErrInProgress means another delivery of the same event is being processed right now.
// The caller should retry later rather than acknowledge the event.
var ErrInProgress = errors.New("dedup: event is being processed")

const (
	statusProcessing = "processing"
	statusFailed     = "failed"
	statusDone       = "done"
)

// Mode values accepted by the DEDUP setting.
const (
	ModeOff      = "off"
	ModeMemory   = "memory"
	ModePostgres = "postgres"
)

const (
	DefaultTTL = 24 * time.Hour
	// DefaultClaimTimeout is how long a processing claim blocks other deliveries before it is
	// considered abandoned.
	DefaultClaimTimeout = 5 * time.Minute
)
