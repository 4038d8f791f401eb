package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AccountStatus represents the administrative state of a provider account
type AccountStatus string

// Possible account status values
const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Common validation errors for Account
var (
	ErrEmptyAccountID          = errors.New("account ID cannot be empty")
	ErrEmptyAccountProviderID  = errors.New("account provider ID cannot be empty")
	ErrEmptyAccountName        = errors.New("account name cannot be empty")
	ErrEmptyAccountCredentials = errors.New("account credentials cannot be empty")
	ErrNegativeTokenLimit      = errors.New("account token limit cannot be negative")
	ErrInvalidAccountStatus    = errors.New("invalid account status")
)

// Account is a credentialed, token-budgeted identity under a provider.
// Credentials holds the encrypted blob and is opaque to the distribution
// core; only provider integrations decrypt it, at the moment of use.
type Account struct {
	ID          uuid.UUID     `json:"id"`
	ProviderID  uuid.UUID     `json:"provider_id"`
	Name        string        `json:"name"`
	Credentials string        `json:"-"`
	TokenLimit  int64         `json:"token_limit"`
	TokenUsed   int64         `json:"token_used"`
	ResetDate   *time.Time    `json:"reset_date,omitempty"`
	Status      AccountStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewAccount creates a new active Account under the given provider.
// The credentials must already be encrypted by the caller.
func NewAccount(providerID uuid.UUID, name, encryptedCredentials string, tokenLimit int64, resetDate *time.Time) (*Account, error) {
	now := time.Now().UTC()
	account := &Account{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Name:        name,
		Credentials: encryptedCredentials,
		TokenLimit:  tokenLimit,
		TokenUsed:   0,
		ResetDate:   resetDate,
		Status:      AccountStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	return account, nil
}

// Validate checks if the Account has valid data.
func (a *Account) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAccountID
	}

	if a.ProviderID == uuid.Nil {
		return ErrEmptyAccountProviderID
	}

	if a.Name == "" {
		return ErrEmptyAccountName
	}

	if a.Credentials == "" {
		return ErrEmptyAccountCredentials
	}

	if a.TokenLimit < 0 {
		return ErrNegativeTokenLimit
	}

	if a.Status != AccountStatusActive && a.Status != AccountStatusInactive {
		return ErrInvalidAccountStatus
	}

	return nil
}

// TokensAvailable returns the remaining token budget. Usage is recorded
// after a call returns, so a single in-flight attempt may push the result
// slightly negative; selection treats anything <= 0 as exhausted.
func (a *Account) TokensAvailable() int64 {
	return a.TokenLimit - a.TokenUsed
}
