package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ContentType categorizes a generated artifact
type ContentType string

// Possible content types
const (
	ContentTypeText        ContentType = "text"
	ContentTypeCode        ContentType = "code"
	ContentTypeImage       ContentType = "image"
	ContentTypeCodeProject ContentType = "code_project"
)

// ContentStatus represents the editorial state of a content artifact
type ContentStatus string

// Possible content status values
const (
	ContentStatusDraft    ContentStatus = "draft"
	ContentStatusFinal    ContentStatus = "final"
	ContentStatusArchived ContentStatus = "archived"
)

// Common validation errors for Content
var (
	ErrEmptyContentID     = errors.New("content ID cannot be empty")
	ErrEmptyContentTaskID = errors.New("content task ID cannot be empty")
	ErrEmptyContentTitle  = errors.New("content title cannot be empty")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrEmptyContentBody   = errors.New("content must carry inline data or a file path")
	ErrInvalidContentStatus = errors.New("invalid content status")
)

// Content is the immutable artifact produced by one successful attempt.
// It carries either inline data or a file path, never neither. Content is
// created exactly once and never mutated afterward.
type Content struct {
	ID        uuid.UUID      `json:"id"`
	TaskID    uuid.UUID      `json:"task_id"`
	Title     string         `json:"title"`
	Type      ContentType    `json:"content_type"`
	Data      string         `json:"content_data,omitempty"`
	FilePath  string         `json:"file_path,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Version   int            `json:"version"`
	Status    ContentStatus  `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewContent creates a version-1 Content artifact for the given task.
func NewContent(taskID uuid.UUID, title string, contentType ContentType, data, filePath string, metadata map[string]any, status ContentStatus) (*Content, error) {
	content := &Content{
		ID:        uuid.New(),
		TaskID:    taskID,
		Title:     title,
		Type:      contentType,
		Data:      data,
		FilePath:  filePath,
		Metadata:  metadata,
		Version:   1,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	if err := content.Validate(); err != nil {
		return nil, err
	}

	return content, nil
}

// Validate checks if the Content has valid data.
func (c *Content) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyContentID
	}

	if c.TaskID == uuid.Nil {
		return ErrEmptyContentTaskID
	}

	if c.Title == "" {
		return ErrEmptyContentTitle
	}

	if !isValidContentType(c.Type) {
		return ErrInvalidContentType
	}

	if c.Data == "" && c.FilePath == "" {
		return ErrEmptyContentBody
	}

	if !isValidContentStatus(c.Status) {
		return ErrInvalidContentStatus
	}

	return nil
}

func isValidContentType(t ContentType) bool {
	switch t {
	case ContentTypeText, ContentTypeCode, ContentTypeImage, ContentTypeCodeProject:
		return true
	default:
		return false
	}
}

func isValidContentStatus(status ContentStatus) bool {
	switch status {
	case ContentStatusDraft, ContentStatusFinal, ContentStatusArchived:
		return true
	default:
		return false
	}
}
