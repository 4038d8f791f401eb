package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/logger"
	"github.com/phrazzld/forge-api/internal/store"
)

// PostgresProviderStore implements the store.ProviderStore interface
// using a PostgreSQL database as the storage backend. Competency maps
// are stored as JSONB.
type PostgresProviderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProviderStore creates a new PostgreSQL implementation of the
// ProviderStore interface. If logger is nil, a default logger will be used.
func NewPostgresProviderStore(db store.DBTX, logger *slog.Logger) *PostgresProviderStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProviderStore{
		db:     db,
		logger: logger.With(slog.String("component", "provider_store")),
	}
}

// Ensure PostgresProviderStore implements store.ProviderStore interface
var _ store.ProviderStore = (*PostgresProviderStore)(nil)

// Create implements store.ProviderStore.Create
// Returns store.ErrProviderNameExists if the name is already taken.
func (s *PostgresProviderStore) Create(ctx context.Context, provider *domain.Provider) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := provider.Validate(); err != nil {
		log.Warn("provider validation failed during create",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return err
	}

	competencies, err := json.Marshal(provider.Competencies)
	if err != nil {
		return fmt.Errorf("failed to marshal competencies: %w", err)
	}

	query := `
		INSERT INTO ai_providers (id, name, api_endpoint, auth_type, competencies,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		provider.ID,
		provider.Name,
		provider.APIEndpoint,
		provider.AuthType,
		competencies,
		provider.Status,
		provider.CreatedAt,
		provider.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("provider name already exists",
				slog.String("provider_name", provider.Name))
			return fmt.Errorf("%w: %v", store.ErrProviderNameExists, err)
		}
		log.Error("failed to create provider",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return MapError(err)
	}

	log.Info("provider created successfully",
		slog.String("provider_id", provider.ID.String()),
		slog.String("provider_name", provider.Name))
	return nil
}

// GetByID implements store.ProviderStore.GetByID
// Returns store.ErrProviderNotFound if the provider does not exist.
func (s *PostgresProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, api_endpoint, auth_type, competencies, status, created_at, updated_at
		FROM ai_providers
		WHERE id = $1
	`

	provider, err := scanProvider(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("provider not found", slog.String("provider_id", id.String()))
			return nil, store.ErrProviderNotFound
		}
		log.Error("failed to get provider by ID",
			slog.String("error", err.Error()),
			slog.String("provider_id", id.String()))
		return nil, MapError(err)
	}

	return provider, nil
}

// List implements store.ProviderStore.List
func (s *PostgresProviderStore) List(ctx context.Context) ([]*domain.Provider, error) {
	return s.list(ctx, false)
}

// ListActive implements store.ProviderStore.ListActive
// Creation order makes competency ties deterministic, so the ORDER BY
// clause matters here.
func (s *PostgresProviderStore) ListActive(ctx context.Context) ([]*domain.Provider, error) {
	return s.list(ctx, true)
}

func (s *PostgresProviderStore) list(ctx context.Context, activeOnly bool) ([]*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, api_endpoint, auth_type, competencies, status, created_at, updated_at
		FROM ai_providers
	`
	var args []any
	if activeOnly {
		query += ` WHERE status = $1`
		args = append(args, domain.ProviderStatusActive)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query providers",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var providers []*domain.Provider
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			log.Error("failed to scan provider row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		providers = append(providers, provider)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning provider rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if providers == nil {
		providers = []*domain.Provider{}
	}

	return providers, nil
}

// Update implements store.ProviderStore.Update
// Returns store.ErrProviderNotFound if the provider does not exist.
func (s *PostgresProviderStore) Update(ctx context.Context, provider *domain.Provider) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := provider.Validate(); err != nil {
		log.Warn("provider validation failed during update",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return err
	}

	competencies, err := json.Marshal(provider.Competencies)
	if err != nil {
		return fmt.Errorf("failed to marshal competencies: %w", err)
	}

	provider.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE ai_providers
		SET name = $1, api_endpoint = $2, auth_type = $3, competencies = $4,
			status = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		provider.Name,
		provider.APIEndpoint,
		provider.AuthType,
		competencies,
		provider.Status,
		provider.UpdatedAt,
		provider.ID,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrProviderNameExists, err)
		}
		log.Error("failed to update provider",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrProviderNotFound); err != nil {
		log.Debug("provider not found for update",
			slog.String("provider_id", provider.ID.String()))
		return err
	}

	log.Info("provider updated successfully",
		slog.String("provider_id", provider.ID.String()),
		slog.String("status", string(provider.Status)))
	return nil
}

// WithTx implements store.ProviderStore.WithTx
func (s *PostgresProviderStore) WithTx(tx *sql.Tx) store.ProviderStore {
	return &PostgresProviderStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanProvider(row rowScanner) (*domain.Provider, error) {
	var provider domain.Provider
	var status string
	var authType sql.NullString
	var competencies []byte

	err := row.Scan(
		&provider.ID,
		&provider.Name,
		&provider.APIEndpoint,
		&authType,
		&competencies,
		&status,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	provider.Status = domain.ProviderStatus(status)
	provider.AuthType = authType.String

	if len(competencies) > 0 {
		if err := json.Unmarshal(competencies, &provider.Competencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal competencies: %w", err)
		}
	}

	return &provider, nil
}
