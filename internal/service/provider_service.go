package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/secrets"
	"github.com/phrazzld/forge-api/internal/provider"
	"github.com/phrazzld/forge-api/internal/scheduler"
	"github.com/phrazzld/forge-api/internal/selector"
	"github.com/phrazzld/forge-api/internal/store"
)

// AccountSummary is an account's budget state without its credentials.
type AccountSummary struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	TokenLimit      int64      `json:"token_limit"`
	TokenUsed       int64      `json:"token_used"`
	TokensAvailable int64      `json:"tokens_available"`
	ResetDate       *time.Time `json:"reset_date,omitempty"`
}

// ProviderStatus is a provider with the budget state of all its accounts.
type ProviderStatus struct {
	Provider *domain.Provider `json:"provider"`
	Accounts []AccountSummary `json:"accounts"`
}

// ProviderService provides administrative operations over providers and
// their accounts. Raw API keys pass through AddAccount once, get
// encrypted immediately and are never returned or logged.
type ProviderService interface {
	// CreateProvider registers a new provider with its competency map.
	CreateProvider(ctx context.Context, name, apiEndpoint, authType string, competencies map[string]int) (*domain.Provider, error)

	// ListProviders returns all providers ordered by creation time.
	ListProviders(ctx context.Context) ([]*domain.Provider, error)

	// GetProvider retrieves a provider by its ID.
	GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error)

	// GetProviderStatus retrieves a provider with its accounts' budget state.
	GetProviderStatus(ctx context.Context, id uuid.UUID) (*ProviderStatus, error)

	// UpdateProviderStatus activates or deactivates a provider.
	UpdateProviderStatus(ctx context.Context, id uuid.UUID, status domain.ProviderStatus) (*domain.Provider, error)

	// AddAccount encrypts the API key and creates an account under the provider.
	AddAccount(ctx context.Context, providerID uuid.UUID, name, apiKey string, tokenLimit int64, resetDate *time.Time) (*domain.Account, error)

	// UpdateAccountStatus activates or deactivates an account.
	UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) (*domain.Account, error)

	// AdjustTokenLimit changes an account's token budget.
	AdjustTokenLimit(ctx context.Context, accountID uuid.UUID, tokenLimit int64) (*domain.Account, error)

	// ResetAccountTokens zeroes an account's usage immediately.
	ResetAccountTokens(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)

	// RunTokenResetSweep runs the full scheduled reset sweep on demand.
	RunTokenResetSweep(ctx context.Context) error

	// TestConnection verifies an account's credentials against the live provider.
	TestConnection(ctx context.Context, accountID uuid.UUID) error

	// Fallbacks returns ranked alternative providers for a task type,
	// excluding the given primary provider.
	Fallbacks(ctx context.Context, taskType string, primaryProviderID uuid.UUID) ([]selector.Fallback, error)
}

// providerServiceImpl implements the ProviderService interface
type providerServiceImpl struct {
	providers store.ProviderStore
	accounts  store.AccountStore
	registry  *provider.Registry
	cipher    *secrets.Cipher
	selector  *selector.Selector
	resets    *scheduler.TokenResetService
	logger    *slog.Logger
}

// NewProviderService creates a new ProviderService.
// It returns an error if any of the required dependencies are nil.
func NewProviderService(
	providers store.ProviderStore,
	accounts store.AccountStore,
	registry *provider.Registry,
	cipher *secrets.Cipher,
	sel *selector.Selector,
	resets *scheduler.TokenResetService,
	logger *slog.Logger,
) (ProviderService, error) {
	if providers == nil || accounts == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "stores cannot be nil"}
	}
	if registry == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "registry cannot be nil"}
	}
	if cipher == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "cipher cannot be nil"}
	}
	if sel == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "selector cannot be nil"}
	}
	if resets == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "reset service cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &providerServiceImpl{
		providers: providers,
		accounts:  accounts,
		registry:  registry,
		cipher:    cipher,
		selector:  sel,
		resets:    resets,
		logger:    logger.With("component", "provider_service"),
	}, nil
}

// CreateProvider registers a new provider.
func (s *providerServiceImpl) CreateProvider(ctx context.Context, name, apiEndpoint, authType string, competencies map[string]int) (*domain.Provider, error) {
	p, err := domain.NewProvider(name, apiEndpoint, authType, competencies)
	if err != nil {
		return nil, err
	}

	if err := s.providers.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrProviderNameExists) {
			return nil, ErrProviderNameExists
		}
		return nil, newServiceError("create_provider", "failed to save provider", err)
	}

	s.logger.Info("provider created",
		"provider_id", p.ID,
		"provider_name", p.Name)
	return p, nil
}

// ListProviders returns all providers.
func (s *providerServiceImpl) ListProviders(ctx context.Context) ([]*domain.Provider, error) {
	providers, err := s.providers.List(ctx)
	if err != nil {
		return nil, newServiceError("list_providers", "failed to list providers", err)
	}
	return providers, nil
}

// GetProvider retrieves a provider by its ID.
func (s *providerServiceImpl) GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	p, err := s.providers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProviderNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, newServiceError("get_provider", "failed to retrieve provider", err)
	}
	return p, nil
}

// GetProviderStatus retrieves a provider with its accounts' budget state.
func (s *providerServiceImpl) GetProviderStatus(ctx context.Context, id uuid.UUID) (*ProviderStatus, error) {
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListByProvider(ctx, id)
	if err != nil {
		return nil, newServiceError("get_provider_status", "failed to list accounts", err)
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, AccountSummary{
			ID:              a.ID,
			Name:            a.Name,
			Status:          string(a.Status),
			TokenLimit:      a.TokenLimit,
			TokenUsed:       a.TokenUsed,
			TokensAvailable: a.TokensAvailable(),
			ResetDate:       a.ResetDate,
		})
	}

	return &ProviderStatus{Provider: p, Accounts: summaries}, nil
}

// UpdateProviderStatus activates or deactivates a provider.
func (s *providerServiceImpl) UpdateProviderStatus(ctx context.Context, id uuid.UUID, status domain.ProviderStatus) (*domain.Provider, error) {
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Status = status
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.providers.Update(ctx, p); err != nil {
		return nil, newServiceError("update_provider_status", "failed to update provider", err)
	}

	s.logger.Info("provider status updated",
		"provider_id", id,
		"status", status)
	return p, nil
}

// AddAccount encrypts the API key and creates an account.
func (s *providerServiceImpl) AddAccount(ctx context.Context, providerID uuid.UUID, name, apiKey string, tokenLimit int64, resetDate *time.Time) (*domain.Account, error) {
	// The provider must exist before an account hangs off it.
	if _, err := s.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	blob, err := json.Marshal(map[string]string{"api_key": apiKey})
	if err != nil {
		return nil, newServiceError("add_account", "failed to serialize credentials", err)
	}

	encrypted, err := s.cipher.Encrypt(string(blob))
	if err != nil {
		return nil, newServiceError("add_account", "failed to encrypt credentials", err)
	}

	account, err := domain.NewAccount(providerID, name, encrypted, tokenLimit, resetDate)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, newServiceError("add_account", "failed to save account", err)
	}

	s.logger.Info("account created",
		"account_id", account.ID,
		"provider_id", providerID,
		"token_limit", tokenLimit)
	return account, nil
}

// UpdateAccountStatus activates or deactivates an account.
func (s *providerServiceImpl) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) (*domain.Account, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.Status = status
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, newServiceError("update_account_status", "failed to update account", err)
	}

	s.logger.Info("account status updated",
		"account_id", accountID,
		"status", status)
	return account, nil
}

// AdjustTokenLimit changes an account's token budget.
func (s *providerServiceImpl) AdjustTokenLimit(ctx context.Context, accountID uuid.UUID, tokenLimit int64) (*domain.Account, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.TokenLimit = tokenLimit
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, newServiceError("adjust_token_limit", "failed to update account", err)
	}

	s.logger.Info("account token limit adjusted",
		"account_id", accountID,
		"token_limit", tokenLimit)
	return account, nil
}

// ResetAccountTokens zeroes an account's usage immediately.
func (s *providerServiceImpl) ResetAccountTokens(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.resets.ResetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, newServiceError("reset_account_tokens", "failed to reset account", err)
	}
	return account, nil
}

// RunTokenResetSweep runs the full scheduled reset sweep on demand. It is
// the same sweep the cron job runs, so the two cannot drift.
func (s *providerServiceImpl) RunTokenResetSweep(ctx context.Context) error {
	if err := s.resets.Run(ctx); err != nil {
		return newServiceError("run_token_reset_sweep", "failed to run reset sweep", err)
	}
	return nil
}

// TestConnection verifies an account's credentials against the live provider.
func (s *providerServiceImpl) TestConnection(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	p, err := s.GetProvider(ctx, account.ProviderID)
	if err != nil {
		return err
	}

	integration, ok := s.registry.Get(p.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoIntegration, p.Name)
	}

	if err := integration.Authenticate(ctx, account.Credentials, p); err != nil {
		s.logger.Warn("connection test failed",
			"account_id", accountID,
			"provider_id", p.ID,
			"error", err)
		return newServiceError("test_connection", "authentication failed", err)
	}

	s.logger.Info("connection test passed",
		"account_id", accountID,
		"provider_id", p.ID)
	return nil
}

// Fallbacks returns ranked alternative providers for a task type.
func (s *providerServiceImpl) Fallbacks(ctx context.Context, taskType string, primaryProviderID uuid.UUID) ([]selector.Fallback, error) {
	fallbacks, err := s.selector.Fallbacks(ctx, taskType, primaryProviderID)
	if err != nil {
		return nil, newServiceError("fallbacks", "failed to rank fallback providers", err)
	}
	return fallbacks, nil
}

func (s *providerServiceImpl) getAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, newServiceError("get_account", "failed to retrieve account", err)
	}
	return account, nil
}
