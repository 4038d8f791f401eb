// Package selector implements the provider/account selection algorithm:
// rank active providers by declared competency for the task's type, then
// pick the first ranked provider owning an active account with remaining
// token budget. Competency rank dominates across providers; token
// availability is the tie-break within a provider.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/store"
)

// Selection failure reasons. All wrap ErrExhausted: selection failures are
// resource-exhaustion conditions, terminal for the task rather than
// retryable execution faults.
var (
	ErrExhausted         = errors.New("provider selection exhausted")
	ErrNoActiveProviders = fmt.Errorf("%w: no active providers", ErrExhausted)
	ErrNoCompetency      = fmt.Errorf("%w: no competency match for type", ErrExhausted)
	ErrNoAvailableTokens = fmt.Errorf("%w: no providers with available tokens", ErrExhausted)
)

// Selection is a candidate (provider, account) pair for one task attempt.
type Selection struct {
	Provider *domain.Provider
	Account  *domain.Account
}

// Fallback describes a ranked alternative provider for a task type,
// excluding a caller-designated primary.
type Fallback struct {
	Provider           *domain.Provider
	CompetencyScore    int
	HasAvailableTokens bool
	AvailableAccountID *uuid.UUID
}

// Selector maps a task to a candidate provider/account pair. It reads
// provider and account state from the store and holds no state of its own,
// so a single instance is safe for concurrent workers.
type Selector struct {
	providers store.ProviderStore
	accounts  store.AccountStore
}

// New creates a Selector over the given stores.
func New(providers store.ProviderStore, accounts store.AccountStore) *Selector {
	return &Selector{
		providers: providers,
		accounts:  accounts,
	}
}

// Select returns the best (provider, account) pair for the task, or one of
// the ErrExhausted reasons when no candidate exists.
func (s *Selector) Select(ctx context.Context, task *domain.Task) (*Selection, error) {
	ranked, err := s.rankedProviders(ctx, task.TaskType, uuid.Nil)
	if err != nil {
		return nil, err
	}

	for _, candidate := range ranked {
		account, err := s.bestAccount(ctx, candidate.provider.ID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return &Selection{Provider: candidate.provider, Account: account}, nil
		}
	}

	return nil, ErrNoAvailableTokens
}

// Fallbacks returns ranked alternative providers for the task type,
// excluding the primary provider, with token availability noted per
// provider. Read-only; intended for callers wanting alternatives.
func (s *Selector) Fallbacks(ctx context.Context, taskType string, primaryProviderID uuid.UUID) ([]Fallback, error) {
	ranked, err := s.rankedProviders(ctx, taskType, primaryProviderID)
	if err != nil {
		// An empty fallback list is an answer, not a failure.
		if errors.Is(err, ErrExhausted) {
			return nil, nil
		}
		return nil, err
	}

	fallbacks := make([]Fallback, 0, len(ranked))
	for _, candidate := range ranked {
		account, err := s.bestAccount(ctx, candidate.provider.ID)
		if err != nil {
			return nil, err
		}

		fb := Fallback{
			Provider:           candidate.provider,
			CompetencyScore:    candidate.score,
			HasAvailableTokens: account != nil,
		}
		if account != nil {
			id := account.ID
			fb.AvailableAccountID = &id
		}
		fallbacks = append(fallbacks, fb)
	}

	return fallbacks, nil
}

type rankedProvider struct {
	provider *domain.Provider
	score    int
}

// rankedProviders returns active providers declaring a competency for the
// task type, sorted descending by score. The stable sort keeps the store's
// creation order for ties, making ranking deterministic. exclude filters
// out a primary provider for fallback queries; pass uuid.Nil to keep all.
func (s *Selector) rankedProviders(ctx context.Context, taskType string, exclude uuid.UUID) ([]rankedProvider, error) {
	providers, err := s.providers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active providers: %w", err)
	}
	if exclude != uuid.Nil {
		filtered := providers[:0]
		for _, p := range providers {
			if p.ID != exclude {
				filtered = append(filtered, p)
			}
		}
		providers = filtered
	}
	if len(providers) == 0 {
		return nil, ErrNoActiveProviders
	}

	matching := make([]rankedProvider, 0, len(providers))
	for _, p := range providers {
		if score, ok := p.CompetencyFor(taskType); ok {
			matching = append(matching, rankedProvider{provider: p, score: score})
		}
	}
	if len(matching) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCompetency, taskType)
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].score > matching[j].score
	})

	return matching, nil
}

// bestAccount returns the provider's active account with the most tokens
// available, or nil when every account's budget is exhausted.
func (s *Selector) bestAccount(ctx context.Context, providerID uuid.UUID) (*domain.Account, error) {
	accounts, err := s.accounts.ListActiveByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for provider %s: %w", providerID, err)
	}

	var best *domain.Account
	for _, account := range accounts {
		if account.TokensAvailable() <= 0 {
			continue
		}
		if best == nil || account.TokensAvailable() > best.TokensAvailable() {
			best = account
		}
	}

	return best, nil
}
