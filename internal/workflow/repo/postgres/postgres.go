// Package postgres stores workflow state in the workflows table created by the shared migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/workflow"
)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

var _ workflow.Repository = (*Repo)(nil)

func (r *Repo) Save(ctx context.Context, st workflow.State) error {
	const q = `
INSERT INTO workflows (id, status, current_step_id, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    current_step_id = EXCLUDED.current_step_id,
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at;
`
	data, err := encodeData(st.Data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		st.WorkflowID, string(st.Status), nullString(st.CurrentStepID), data, st.CreatedAt, st.UpdatedAt,
	)
	return err
}

func (r *Repo) Load(ctx context.Context, workflowID string) (workflow.State, error) {
	const q = `
SELECT id, status, current_step_id, data, created_at, updated_at
FROM workflows
WHERE id = $1;
`
	var (
		out     workflow.State
		status  string
		current sql.NullString
		data    []byte
	)
	err := r.db.QueryRowContext(ctx, q, workflowID).
		Scan(&out.WorkflowID, &status, &current, &data, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.State{}, workflow.ErrNotFound
		}
		return workflow.State{}, err
	}

	out.Status = workflow.Status(status)
	out.CurrentStepID = current.String
	if out.Data, err = decodeData(data); err != nil {
		return workflow.State{}, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

func encodeData(p events.Payload) ([]byte, error) {
	if p == nil {
		p = events.Payload{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode workflow data: %w", err)
	}
	return b, nil
}

func decodeData(b []byte) (events.Payload, error) {
	var p events.Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode workflow data: %w", err)
	}
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
