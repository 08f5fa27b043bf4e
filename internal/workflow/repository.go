package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("workflow not found")

// Repository stores workflow state by workflow id. Save is an upsert that never rewrites
// the stored CreatedAt; Load returns ErrNotFound for unknown ids.
type Repository interface {
	Save(ctx context.Context, st State) error
	Load(ctx context.Context, workflowID string) (State, error)
}

// RepositoryError wraps a persistence failure inside an engine transition.
type RepositoryError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("workflow repository %s %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// InMemoryRepository is a non-durable Repository for tests and single-process runs.
type InMemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]State
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: make(map[string]State)}
}

func (r *InMemoryRepository) Save(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byID[st.WorkflowID]; ok {
		st.CreatedAt = prev.CreatedAt
	}
	r.byID[st.WorkflowID] = st.Clone()
	return nil
}

func (r *InMemoryRepository) Load(ctx context.Context, workflowID string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.byID[workflowID]
	if !ok {
		return State{}, ErrNotFound
	}
	return st.Clone(), nil
}
