package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/logger"
	"github.com/phrazzld/forge-api/internal/store"
)

// PostgresContentStore implements the store.ContentStore interface
// using a PostgreSQL database as the storage backend. Content rows are
// immutable, so there is no update statement in this file.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a new PostgreSQL implementation of the
// ContentStore interface. If logger is nil, a default logger will be used.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

// Ensure PostgresContentStore implements store.ContentStore interface
var _ store.ContentStore = (*PostgresContentStore)(nil)

// Create implements store.ContentStore.Create
// Returns store.ErrInvalidEntity if the task ID doesn't exist.
func (s *PostgresContentStore) Create(ctx context.Context, content *domain.Content) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := content.Validate(); err != nil {
		log.Warn("content validation failed during create",
			slog.String("error", err.Error()),
			slog.String("content_id", content.ID.String()))
		return err
	}

	var metadata []byte
	if content.Metadata != nil {
		var err error
		metadata, err = json.Marshal(content.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal content metadata: %w", err)
		}
	}

	query := `
		INSERT INTO content (id, task_id, title, content_type, content_data,
			file_path, metadata, version, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		content.ID,
		content.TaskID,
		content.Title,
		content.Type,
		content.Data,
		content.FilePath,
		metadata,
		content.Version,
		content.Status,
		content.CreatedAt,
	)

	if err != nil {
		log.Error("failed to create content",
			slog.String("error", err.Error()),
			slog.String("content_id", content.ID.String()),
			slog.String("task_id", content.TaskID.String()))
		return MapError(err)
	}

	log.Info("content created successfully",
		slog.String("content_id", content.ID.String()),
		slog.String("task_id", content.TaskID.String()),
		slog.String("content_type", string(content.Type)))
	return nil
}

// ListByTask implements store.ContentStore.ListByTask
func (s *PostgresContentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Content, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, title, content_type, content_data, file_path,
			metadata, version, status, created_at
		FROM content
		WHERE task_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to query content by task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var contents []*domain.Content
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			log.Error("failed to scan content row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		contents = append(contents, content)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning content rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if contents == nil {
		contents = []*domain.Content{}
	}

	return contents, nil
}

// WithTx implements store.ContentStore.WithTx
func (s *PostgresContentStore) WithTx(tx *sql.Tx) store.ContentStore {
	return &PostgresContentStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanContent(row rowScanner) (*domain.Content, error) {
	var content domain.Content
	var contentType, status string
	var data, filePath sql.NullString
	var metadata []byte

	err := row.Scan(
		&content.ID,
		&content.TaskID,
		&content.Title,
		&contentType,
		&data,
		&filePath,
		&metadata,
		&content.Version,
		&status,
		&content.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	content.Type = domain.ContentType(contentType)
	content.Status = domain.ContentStatus(status)
	content.Data = data.String
	content.FilePath = filePath.String

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &content.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content metadata: %w", err)
		}
	}

	return &content, nil
}
