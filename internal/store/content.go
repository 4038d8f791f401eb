package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
)

// ContentStore defines the interface for persisting generated content.
// Content rows are immutable: there is deliberately no update operation.
type ContentStore interface {
	// Create saves a new content artifact to the store.
	Create(ctx context.Context, content *domain.Content) error

	// ListByTask retrieves all content artifacts for the given task,
	// oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Content, error)

	// WithTx returns a new ContentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ContentStore
}
