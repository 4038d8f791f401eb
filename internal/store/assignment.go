package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
)

// AssignmentStore defines the interface for persisting task assignments.
// One row is created per attempt and never reused; the attempt history of
// a task is recoverable by listing its assignments.
type AssignmentStore interface {
	// Create saves a new assignment to the store.
	Create(ctx context.Context, assignment *domain.Assignment) error

	// GetByID retrieves an assignment by its unique ID.
	// Returns ErrAssignmentNotFound if the assignment does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)

	// ListByTask retrieves all assignments for the given task, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Assignment, error)

	// CountByTask returns the number of assignments recorded for the given
	// task, i.e. the number of attempts made so far.
	CountByTask(ctx context.Context, taskID uuid.UUID) (int, error)

	// Update persists the assignment's mutable fields (status, attempt
	// count, error message, tokens used).
	Update(ctx context.Context, assignment *domain.Assignment) error

	// WithTx returns a new AssignmentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AssignmentStore
}
