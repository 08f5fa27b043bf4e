// Package outbox stores outgoing envelopes in postgres so they are published at least once,
// even when the broker is down at the time of the workflow transition.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/k1networth/stepflow/internal/pipe"
)

type Record struct {
	ID            int64
	Topic         string
	Key           string
	Payload       json.RawMessage
	CorrelationID string
	CreatedAt     time.Time
	Attempts      int
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Enqueue(ctx context.Context, msg pipe.Message) error {
	const q = `
INSERT INTO outbox (topic, msg_key, payload, correlation_id)
VALUES ($1, $2, $3, $4);
`
	_, err := s.db.ExecContext(ctx, q, msg.Topic, msg.Key, msg.Value, pipe.CorrelationID(ctx))
	return err
}

func (s *Store) ResetStuck(ctx context.Context, processingTimeout time.Duration) (int64, error) {
	if processingTimeout <= 0 {
		processingTimeout = 30 * time.Second
	}
	threshold := time.Now().UTC().Add(-processingTimeout)
	const q = `
UPDATE outbox
SET status = 'pending',
    processing_started_at = NULL,
    next_retry_at = now(),
    last_error = 'processing timeout'
WHERE status = 'processing'
  AND processing_started_at IS NOT NULL
  AND processing_started_at < $1;
`
	res, err := s.db.ExecContext(ctx, q, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimPending moves up to batchSize due rows to processing. Concurrent relays skip each
// other's rows.
func (s *Store) ClaimPending(ctx context.Context, batchSize int) ([]Record, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	const q = `
WITH cte AS (
  SELECT id
  FROM outbox
  WHERE status = 'pending'
    AND next_retry_at <= now()
  ORDER BY created_at
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
UPDATE outbox o
SET status = 'processing',
    processing_started_at = now(),
    attempts = attempts + 1,
    updated_at = now()
FROM cte
WHERE o.id = cte.id
RETURNING o.id, o.topic, o.msg_key, o.payload, o.correlation_id, o.created_at, o.attempts;
`

	rows, err := s.db.QueryContext(ctx, q, batchSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			payload []byte
		)
		if err := rows.Scan(&r.ID, &r.Topic, &r.Key, &payload, &r.CorrelationID, &r.CreatedAt, &r.Attempts); err != nil {
			return nil, err
		}
		r.Payload = payload
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	const q = `
UPDATE outbox
SET status = 'sent',
    sent_at = now(),
    processing_started_at = NULL,
    last_error = NULL,
    updated_at = now()
WHERE id = $1;
`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error {
	const q = `
UPDATE outbox
SET status = 'pending',
    processing_started_at = NULL,
    next_retry_at = $2,
    last_error = $3,
    updated_at = now()
WHERE id = $1;
`
	_, err := s.db.ExecContext(ctx, q, id, nextRetryAt, errMsg)
	return err
}

func (s *Store) MarkDead(ctx context.Context, id int64, errMsg string) error {
	const q = `
UPDATE outbox
SET status = 'dead',
    processing_started_at = NULL,
    last_error = $2,
    updated_at = now()
WHERE id = $1;
`
	_, err := s.db.ExecContext(ctx, q, id, errMsg)
	return err
}

// Publisher is a pipe.Publisher that only enqueues; a Relay delivers later.
type Publisher struct {
	Store *Store
}

func (p Publisher) Publish(ctx context.Context, msg pipe.Message) error {
	if err := p.Store.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("outbox enqueue %s: %w", msg.Topic, err)
	}
	return nil
}
