package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
)

// TaskStore defines the interface for persisting tasks.
type TaskStore interface {
	// Create saves a new task to the store.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update persists the task's mutable fields (status, error message,
	// started/completed timestamps). Returns ErrTaskNotFound if the task
	// does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// ListPending retrieves all tasks with "pending" status, oldest first.
	// Used to rebuild the queue after its contents are lost.
	ListPending(ctx context.Context) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
