package dedup

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore keeps processed_events rows; the table comes from the shared migrations.
type PostgresStore struct {
	ClaimTimeout time.Duration

	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{ClaimTimeout: DefaultClaimTimeout, db: db}
}

// Begin claims the row in one statement: the upsert only takes over a failed row or a stale
// processing claim, so two concurrent deliveries cannot both win.
func (s *PostgresStore) Begin(ctx context.Context, e Event) (bool, error) {
	staleBefore := time.Now().UTC().Add(-s.ClaimTimeout)

	const claim = `
INSERT INTO processed_events (event_id, kind, workflow_id, status, attempts, updated_at)
VALUES ($1, $2, $3, 'processing', 1, now())
ON CONFLICT (event_id) DO UPDATE
SET status = 'processing',
    attempts = processed_events.attempts + 1,
    updated_at = now()
WHERE processed_events.status = 'failed'
   OR (processed_events.status = 'processing' AND processed_events.updated_at < $4)
RETURNING status;
`
	var status string
	err := s.db.QueryRowContext(ctx, claim, e.EventID, e.Kind, e.WorkflowID, staleBefore).Scan(&status)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	const seen = `
UPDATE processed_events
SET attempts = attempts + 1
WHERE event_id = $1
RETURNING status;
`
	if err := s.db.QueryRowContext(ctx, seen, e.EventID).Scan(&status); err != nil {
		return false, err
	}
	if status == statusDone {
		return false, nil
	}
	return false, ErrInProgress
}

func (s *PostgresStore) Done(ctx context.Context, eventID string) error {
	const q = `
UPDATE processed_events
SET status = 'done', processed_at = now(), last_error = NULL, updated_at = now()
WHERE event_id = $1;
`
	_, err := s.db.ExecContext(ctx, q, eventID)
	return err
}

func (s *PostgresStore) Failed(ctx context.Context, eventID, errMsg string) error {
	const q = `
UPDATE processed_events
SET status = 'failed', last_error = $2, updated_at = now()
WHERE event_id = $1;
`
	_, err := s.db.ExecContext(ctx, q, eventID, errMsg)
	return err
}
