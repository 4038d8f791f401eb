package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
)

// AccountStore defines the interface for persisting provider accounts.
type AccountStore interface {
	// Create saves a new account to the store.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique ID.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// ListByProvider retrieves all accounts belonging to the given provider.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Account, error)

	// ListActiveByProvider retrieves accounts with "active" status belonging
	// to the given provider.
	ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Account, error)

	// ListResetDue retrieves accounts with a non-null reset date at or
	// before now and non-zero token usage, i.e. the accounts the token
	// reset sweep must touch.
	ListResetDue(ctx context.Context, now time.Time) ([]*domain.Account, error)

	// Update persists the account's mutable fields.
	Update(ctx context.Context, account *domain.Account) error

	// AddTokensUsed atomically increments the account's token usage by the
	// given amount. Concurrent workers may record usage against the same
	// account; the increment must not lose writes.
	AddTokensUsed(ctx context.Context, id uuid.UUID, tokens int64) error

	// WithTx returns a new AccountStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AccountStore
}
