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

// PostgresAssignmentStore implements the store.AssignmentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAssignmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAssignmentStore creates a new PostgreSQL implementation of the
// AssignmentStore interface. If logger is nil, a default logger will be used.
func NewPostgresAssignmentStore(db store.DBTX, logger *slog.Logger) *PostgresAssignmentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAssignmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "assignment_store")),
	}
}

// Ensure PostgresAssignmentStore implements store.AssignmentStore interface
var _ store.AssignmentStore = (*PostgresAssignmentStore)(nil)

// Create implements store.AssignmentStore.Create
// Returns store.ErrInvalidEntity if a referenced task, provider or
// account doesn't exist.
func (s *PostgresAssignmentStore) Create(ctx context.Context, assignment *domain.Assignment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := assignment.Validate(); err != nil {
		log.Warn("assignment validation failed during create",
			slog.String("error", err.Error()),
			slog.String("assignment_id", assignment.ID.String()))
		return err
	}

	query := `
		INSERT INTO task_assignments (id, task_id, provider_id, account_id,
			status, attempt_count, error_message, tokens_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		assignment.ID,
		assignment.TaskID,
		assignment.ProviderID,
		assignment.AccountID,
		assignment.Status,
		assignment.AttemptCount,
		assignment.ErrorMessage,
		assignment.TokensUsed,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create assignment",
			slog.String("error", err.Error()),
			slog.String("assignment_id", assignment.ID.String()),
			slog.String("task_id", assignment.TaskID.String()))
		return MapError(err)
	}

	log.Info("assignment created successfully",
		slog.String("assignment_id", assignment.ID.String()),
		slog.String("task_id", assignment.TaskID.String()),
		slog.Int("attempt_count", assignment.AttemptCount))
	return nil
}

// GetByID implements store.AssignmentStore.GetByID
// Returns store.ErrAssignmentNotFound if the assignment does not exist.
func (s *PostgresAssignmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, provider_id, account_id, status, attempt_count,
			error_message, tokens_used, created_at, updated_at
		FROM task_assignments
		WHERE id = $1
	`

	assignment, err := scanAssignment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("assignment not found", slog.String("assignment_id", id.String()))
			return nil, store.ErrAssignmentNotFound
		}
		log.Error("failed to get assignment by ID",
			slog.String("error", err.Error()),
			slog.String("assignment_id", id.String()))
		return nil, MapError(err)
	}

	return assignment, nil
}

// ListByTask implements store.AssignmentStore.ListByTask
// Assignments come back oldest first so the list reads as the attempt history.
func (s *PostgresAssignmentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Assignment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, provider_id, account_id, status, attempt_count,
			error_message, tokens_used, created_at, updated_at
		FROM task_assignments
		WHERE task_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to query assignments by task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var assignments []*domain.Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			log.Error("failed to scan assignment row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning assignment rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if assignments == nil {
		assignments = []*domain.Assignment{}
	}

	return assignments, nil
}

// CountByTask implements store.AssignmentStore.CountByTask
func (s *PostgresAssignmentStore) CountByTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT COUNT(*) FROM task_assignments WHERE task_id = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, taskID).Scan(&count); err != nil {
		log.Error("failed to count assignments by task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return 0, MapError(err)
	}

	return count, nil
}

// Update implements store.AssignmentStore.Update
// Returns store.ErrAssignmentNotFound if the assignment does not exist.
func (s *PostgresAssignmentStore) Update(ctx context.Context, assignment *domain.Assignment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := assignment.Validate(); err != nil {
		log.Warn("assignment validation failed during update",
			slog.String("error", err.Error()),
			slog.String("assignment_id", assignment.ID.String()))
		return err
	}

	assignment.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE task_assignments
		SET status = $1, attempt_count = $2, error_message = $3, tokens_used = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		assignment.Status,
		assignment.AttemptCount,
		assignment.ErrorMessage,
		assignment.TokensUsed,
		assignment.UpdatedAt,
		assignment.ID,
	)

	if err != nil {
		log.Error("failed to update assignment",
			slog.String("error", err.Error()),
			slog.String("assignment_id", assignment.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrAssignmentNotFound); err != nil {
		log.Debug("assignment not found for update",
			slog.String("assignment_id", assignment.ID.String()))
		return err
	}

	log.Debug("assignment updated successfully",
		slog.String("assignment_id", assignment.ID.String()),
		slog.String("status", string(assignment.Status)))
	return nil
}

// WithTx implements store.AssignmentStore.WithTx
func (s *PostgresAssignmentStore) WithTx(tx *sql.Tx) store.AssignmentStore {
	return &PostgresAssignmentStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanAssignment(row rowScanner) (*domain.Assignment, error) {
	var assignment domain.Assignment
	var status string
	var errorMessage sql.NullString

	err := row.Scan(
		&assignment.ID,
		&assignment.TaskID,
		&assignment.ProviderID,
		&assignment.AccountID,
		&status,
		&assignment.AttemptCount,
		&errorMessage,
		&assignment.TokensUsed,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	assignment.Status = domain.AssignmentStatus(status)
	assignment.ErrorMessage = errorMessage.String

	return &assignment, nil
}
