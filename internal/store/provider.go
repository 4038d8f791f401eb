package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
)

// ProviderStore defines the interface for persisting AI providers.
type ProviderStore interface {
	// Create saves a new provider to the store.
	// Returns ErrProviderNameExists if the name is already taken.
	Create(ctx context.Context, provider *domain.Provider) error

	// GetByID retrieves a provider by its unique ID.
	// Returns ErrProviderNotFound if the provider does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error)

	// List retrieves all providers ordered by creation time.
	List(ctx context.Context) ([]*domain.Provider, error)

	// ListActive retrieves all providers with "active" status ordered by
	// creation time. The creation order makes competency ties deterministic.
	ListActive(ctx context.Context) ([]*domain.Provider, error)

	// Update persists the provider's mutable fields.
	Update(ctx context.Context, provider *domain.Provider) error

	// WithTx returns a new ProviderStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProviderStore
}
