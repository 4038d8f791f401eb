package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus represents the state of one task attempt
type AssignmentStatus string

// Possible assignment status values
const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusProcessing AssignmentStatus = "processing"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusFailed     AssignmentStatus = "failed"
)

// Common validation errors for Assignment
var (
	ErrEmptyAssignmentID        = errors.New("assignment ID cannot be empty")
	ErrEmptyAssignmentTaskID    = errors.New("assignment task ID cannot be empty")
	ErrEmptyAssignmentProvider  = errors.New("assignment provider ID cannot be empty")
	ErrEmptyAssignmentAccount   = errors.New("assignment account ID cannot be empty")
	ErrInvalidAssignmentStatus  = errors.New("invalid assignment status")
	ErrNegativeAttemptCount     = errors.New("assignment attempt count cannot be negative")
	ErrNegativeAssignmentTokens = errors.New("assignment tokens used cannot be negative")
)

// Assignment records one attempt to execute a task against a specific
// provider account. A fresh row is created per attempt; the attempt
// history of a task is the set of its assignments.
type Assignment struct {
	ID           uuid.UUID        `json:"id"`
	TaskID       uuid.UUID        `json:"task_id"`
	ProviderID   uuid.UUID        `json:"provider_id"`
	AccountID    uuid.UUID        `json:"account_id"`
	Status       AssignmentStatus `json:"status"`
	AttemptCount int              `json:"attempt_count"`
	ErrorMessage string           `json:"error_message,omitempty"`
	TokensUsed   int64            `json:"tokens_used"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewAssignment creates a pending Assignment binding a task to a provider
// account. AttemptCount starts at zero and is set when a worker picks the
// assignment up.
func NewAssignment(taskID, providerID, accountID uuid.UUID) (*Assignment, error) {
	now := time.Now().UTC()
	assignment := &Assignment{
		ID:         uuid.New(),
		TaskID:     taskID,
		ProviderID: providerID,
		AccountID:  accountID,
		Status:     AssignmentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := assignment.Validate(); err != nil {
		return nil, err
	}

	return assignment, nil
}

// Validate checks if the Assignment has valid data.
func (a *Assignment) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAssignmentID
	}

	if a.TaskID == uuid.Nil {
		return ErrEmptyAssignmentTaskID
	}

	if a.ProviderID == uuid.Nil {
		return ErrEmptyAssignmentProvider
	}

	if a.AccountID == uuid.Nil {
		return ErrEmptyAssignmentAccount
	}

	if !isValidAssignmentStatus(a.Status) {
		return ErrInvalidAssignmentStatus
	}

	if a.AttemptCount < 0 {
		return ErrNegativeAttemptCount
	}

	if a.TokensUsed < 0 {
		return ErrNegativeAssignmentTokens
	}

	return nil
}

func isValidAssignmentStatus(status AssignmentStatus) bool {
	switch status {
	case AssignmentStatusPending, AssignmentStatusProcessing, AssignmentStatusCompleted, AssignmentStatusFailed:
		return true
	default:
		return false
	}
}
