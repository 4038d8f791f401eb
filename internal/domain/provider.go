package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProviderStatus represents the administrative state of a provider
type ProviderStatus string

// Possible provider status values
const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusInactive ProviderStatus = "inactive"
)

// Common validation errors for Provider
var (
	ErrEmptyProviderID       = errors.New("provider ID cannot be empty")
	ErrEmptyProviderName     = errors.New("provider name cannot be empty")
	ErrEmptyProviderEndpoint = errors.New("provider API endpoint cannot be empty")
	ErrNoCompetencies        = errors.New("provider must declare at least one competency")
	ErrInvalidProviderStatus = errors.New("invalid provider status")
)

// Provider is an external content-generation capability with declared
// per-task-type competency scores. Providers are created and updated by
// administrators and are read-only to the distribution core.
type Provider struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	APIEndpoint  string         `json:"api_endpoint"`
	AuthType     string         `json:"auth_type"`
	Competencies map[string]int `json:"competencies"`
	Status       ProviderStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewProvider creates a new active Provider.
// Returns an error if validation fails.
func NewProvider(name, apiEndpoint, authType string, competencies map[string]int) (*Provider, error) {
	now := time.Now().UTC()
	provider := &Provider{
		ID:           uuid.New(),
		Name:         name,
		APIEndpoint:  apiEndpoint,
		AuthType:     authType,
		Competencies: competencies,
		Status:       ProviderStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := provider.Validate(); err != nil {
		return nil, err
	}

	return provider, nil
}

// Validate checks if the Provider has valid data.
func (p *Provider) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProviderID
	}

	if p.Name == "" {
		return ErrEmptyProviderName
	}

	if p.APIEndpoint == "" {
		return ErrEmptyProviderEndpoint
	}

	if len(p.Competencies) == 0 {
		return ErrNoCompetencies
	}

	if p.Status != ProviderStatusActive && p.Status != ProviderStatusInactive {
		return ErrInvalidProviderStatus
	}

	return nil
}

// CompetencyFor returns the provider's declared score for the given task
// type and whether the provider declares that competency at all.
func (p *Provider) CompetencyFor(taskType string) (int, bool) {
	score, ok := p.Competencies[taskType]
	return score, ok
}
