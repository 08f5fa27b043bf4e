// Package sqlite stores workflow state in a local sqlite file for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/workflow"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
    id              TEXT PRIMARY KEY,
    status          TEXT NOT NULL,
    current_step_id TEXT NULL,
    data            TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);
`

type Repo struct {
	db *sql.DB
}

var _ workflow.Repository = (*Repo)(nil)

// New creates the schema when missing.
func New(ctx context.Context, db *sql.DB) (*Repo, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Save(ctx context.Context, st workflow.State) error {
	const q = `
INSERT INTO workflows (id, status, current_step_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE
SET status = excluded.status,
    current_step_id = excluded.current_step_id,
    data = excluded.data,
    updated_at = excluded.updated_at;
`
	data := st.Data
	if data == nil {
		data = events.Payload{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode workflow data: %w", err)
	}

	var current sql.NullString
	if st.CurrentStepID != "" {
		current = sql.NullString{String: st.CurrentStepID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, q,
		st.WorkflowID, string(st.Status), current, string(b), formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	)
	return err
}

func (r *Repo) Load(ctx context.Context, workflowID string) (workflow.State, error) {
	const q = `
SELECT id, status, current_step_id, data, created_at, updated_at
FROM workflows
WHERE id = ?;
`
	var (
		out                  workflow.State
		status, data         string
		current              sql.NullString
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, q, workflowID).
		Scan(&out.WorkflowID, &status, &current, &data, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.State{}, workflow.ErrNotFound
		}
		return workflow.State{}, err
	}

	out.Status = workflow.Status(status)
	out.CurrentStepID = current.String
	if err := json.Unmarshal([]byte(data), &out.Data); err != nil {
		return workflow.State{}, fmt.Errorf("decode workflow data: %w", err)
	}
	if out.CreatedAt, err = parseTime(createdAt); err != nil {
		return workflow.State{}, err
	}
	if out.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return workflow.State{}, err
	}
	return out, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
