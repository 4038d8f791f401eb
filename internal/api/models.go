package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/forge-api/internal/queue"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
	Role     string `json:"role"     validate:"omitempty,oneof=user admin"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// UserID is the unique identifier for the authenticated user
	UserID uuid.UUID `json:"user_id"`

	// Token is the JWT token used for API authorization
	Token string `json:"token"`
}

// CreateTaskRequest defines the payload for the task submission endpoint.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required,max=500"`
	Description string `json:"description" validate:"max=10000"`
	TaskType    string `json:"task_type"   validate:"required"`
	Priority    int    `json:"priority"    validate:"required,min=1,max=5"`
}

// CreateTaskResponse is returned when a task has been accepted for
// asynchronous processing.
type CreateTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

// QueueEntryResponse is one entry in the queue peek response.
type QueueEntryResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Score  float64   `json:"score"`
}

// QueuePeekResponse defines the response for the queue inspection endpoint.
type QueuePeekResponse struct {
	Entries []QueueEntryResponse `json:"entries"`
	Length  int64                `json:"length"`
}

// CreateProviderRequest defines the payload for provider registration.
type CreateProviderRequest struct {
	Name         string         `json:"name"         validate:"required,max=100"`
	APIEndpoint  string         `json:"api_endpoint" validate:"required,url"`
	AuthType     string         `json:"auth_type"    validate:"required"`
	Competencies map[string]int `json:"competencies" validate:"required,min=1"`
}

// UpdateProviderStatusRequest activates or deactivates a provider.
type UpdateProviderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// AddAccountRequest defines the payload for adding a provider account.
// The API key arrives in plaintext here and is encrypted before storage.
type AddAccountRequest struct {
	Name       string     `json:"name"       validate:"required,max=100"`
	APIKey     string     `json:"api_key"    validate:"required"`
	TokenLimit int64      `json:"token_limit" validate:"required,min=0"`
	ResetDate  *time.Time `json:"reset_date,omitempty"`
}

// UpdateAccountStatusRequest activates or deactivates an account.
type UpdateAccountStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// AdjustTokenLimitRequest changes an account's token budget.
type AdjustTokenLimitRequest struct {
	TokenLimit int64 `json:"token_limit" validate:"min=0"`
}

func toQueuePeekResponse(entries []queue.Entry, length int64) QueuePeekResponse {
	out := make([]QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, QueueEntryResponse{TaskID: e.TaskID, Score: e.Score})
	}
	return QueuePeekResponse{Entries: out, Length: length}
}
