package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/logger"
	"github.com/phrazzld/forge-api/internal/store"
)

// PostgresAccountStore implements the store.AccountStore interface
// using a PostgreSQL database as the storage backend. The credentials
// column holds the encrypted blob; nothing in this store decrypts it
// and no log line ever carries it.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAccountStore creates a new PostgreSQL implementation of the
// AccountStore interface. If logger is nil, a default logger will be used.
func NewPostgresAccountStore(db store.DBTX, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

// Ensure PostgresAccountStore implements store.AccountStore interface
var _ store.AccountStore = (*PostgresAccountStore)(nil)

// Create implements store.AccountStore.Create
// Returns store.ErrInvalidEntity if the provider ID doesn't exist.
func (s *PostgresAccountStore) Create(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := account.Validate(); err != nil {
		log.Warn("account validation failed during create",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return err
	}

	query := `
		INSERT INTO provider_accounts (id, provider_id, name, credentials,
			token_limit, token_used, reset_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.ProviderID,
		account.Name,
		account.Credentials,
		account.TokenLimit,
		account.TokenUsed,
		account.ResetDate,
		account.Status,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create account",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()),
			slog.String("provider_id", account.ProviderID.String()))
		return MapError(err)
	}

	log.Info("account created successfully",
		slog.String("account_id", account.ID.String()),
		slog.String("provider_id", account.ProviderID.String()))
	return nil
}

// GetByID implements store.AccountStore.GetByID
// Returns store.ErrAccountNotFound if the account does not exist.
func (s *PostgresAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := selectAccountQuery + ` WHERE id = $1`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("account not found", slog.String("account_id", id.String()))
			return nil, store.ErrAccountNotFound
		}
		log.Error("failed to get account by ID",
			slog.String("error", err.Error()),
			slog.String("account_id", id.String()))
		return nil, MapError(err)
	}

	return account, nil
}

// ListByProvider implements store.AccountStore.ListByProvider
func (s *PostgresAccountStore) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Account, error) {
	query := selectAccountQuery + ` WHERE provider_id = $1 ORDER BY created_at ASC`
	return s.queryAccounts(ctx, query, providerID)
}

// ListActiveByProvider implements store.AccountStore.ListActiveByProvider
func (s *PostgresAccountStore) ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Account, error) {
	query := selectAccountQuery + ` WHERE provider_id = $1 AND status = $2 ORDER BY created_at ASC`
	return s.queryAccounts(ctx, query, providerID, domain.AccountStatusActive)
}

// ListResetDue implements store.AccountStore.ListResetDue
// Accounts with a NULL reset date are never swept; accounts with zero
// usage are skipped because resetting them would be a no-op.
func (s *PostgresAccountStore) ListResetDue(ctx context.Context, now time.Time) ([]*domain.Account, error) {
	query := selectAccountQuery + `
		WHERE reset_date IS NOT NULL AND reset_date <= $1 AND token_used > 0
		ORDER BY reset_date ASC`
	return s.queryAccounts(ctx, query, now)
}

func (s *PostgresAccountStore) queryAccounts(ctx context.Context, query string, args ...any) ([]*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query accounts",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			log.Error("failed to scan account row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning account rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if accounts == nil {
		accounts = []*domain.Account{}
	}

	return accounts, nil
}

// Update implements store.AccountStore.Update
// Returns store.ErrAccountNotFound if the account does not exist.
func (s *PostgresAccountStore) Update(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := account.Validate(); err != nil {
		log.Warn("account validation failed during update",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return err
	}

	account.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE provider_accounts
		SET name = $1, credentials = $2, token_limit = $3, token_used = $4,
			reset_date = $5, status = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		account.Name,
		account.Credentials,
		account.TokenLimit,
		account.TokenUsed,
		account.ResetDate,
		account.Status,
		account.UpdatedAt,
		account.ID,
	)

	if err != nil {
		log.Error("failed to update account",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrAccountNotFound); err != nil {
		log.Debug("account not found for update",
			slog.String("account_id", account.ID.String()))
		return err
	}

	log.Debug("account updated successfully",
		slog.String("account_id", account.ID.String()),
		slog.String("status", string(account.Status)))
	return nil
}

// AddTokensUsed implements store.AccountStore.AddTokensUsed
// The increment happens in SQL so concurrent workers recording usage
// against the same account never lose writes.
func (s *PostgresAccountStore) AddTokensUsed(ctx context.Context, id uuid.UUID, tokens int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE provider_accounts
		SET token_used = token_used + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, tokens, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to add token usage",
			slog.String("error", err.Error()),
			slog.String("account_id", id.String()),
			slog.Int64("tokens", tokens))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrAccountNotFound); err != nil {
		log.Debug("account not found for token usage update",
			slog.String("account_id", id.String()))
		return err
	}

	log.Debug("token usage recorded",
		slog.String("account_id", id.String()),
		slog.Int64("tokens", tokens))
	return nil
}

// WithTx implements store.AccountStore.WithTx
func (s *PostgresAccountStore) WithTx(tx *sql.Tx) store.AccountStore {
	return &PostgresAccountStore{
		db:     tx,
		logger: s.logger,
	}
}

const selectAccountQuery = `
	SELECT id, provider_id, name, credentials, token_limit, token_used,
		reset_date, status, created_at, updated_at
	FROM provider_accounts`

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var status string
	var resetDate sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.ProviderID,
		&account.Name,
		&account.Credentials,
		&account.TokenLimit,
		&account.TokenUsed,
		&resetDate,
		&status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Status = domain.AccountStatus(status)
	if resetDate.Valid {
		t := resetDate.Time
		account.ResetDate = &t
	}

	return &account, nil
}
