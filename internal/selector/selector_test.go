package selector_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/mocks"
	"github.com/phrazzld/forge-api/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	providers *mocks.ProviderStore
	accounts  *mocks.AccountStore
	selector  *selector.Selector
}

func newFixture() *fixture {
	providers := mocks.NewProviderStore()
	accounts := mocks.NewAccountStore()
	return &fixture{
		providers: providers,
		accounts:  accounts,
		selector:  selector.New(providers, accounts),
	}
}

func (f *fixture) addProvider(t *testing.T, name string, competencies map[string]int, status domain.ProviderStatus) *domain.Provider {
	t.Helper()
	provider, err := domain.NewProvider(name, "https://api."+name+".example", "api_key", competencies)
	require.NoError(t, err)
	provider.Status = status
	require.NoError(t, f.providers.Create(context.Background(), provider))
	return provider
}

func (f *fixture) addAccount(t *testing.T, providerID uuid.UUID, name string, limit, used int64, status domain.AccountStatus) *domain.Account {
	t.Helper()
	account, err := domain.NewAccount(providerID, name, "encrypted-blob", limit, nil)
	require.NoError(t, err)
	account.TokenUsed = used
	account.Status = status
	require.NoError(t, f.accounts.Create(context.Background(), account))
	return account
}

func newImageTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), "generate a logo", "", "image", 3)
	require.NoError(t, err)
	return task
}

func TestSelectNoActiveProviders(t *testing.T) {
	f := newFixture()
	f.addProvider(t, "gpt", map[string]int{"image": 9}, domain.ProviderStatusInactive)

	_, err := f.selector.Select(context.Background(), newImageTask(t))
	assert.ErrorIs(t, err, selector.ErrNoActiveProviders)
}

func TestSelectNoCompetencyMatch(t *testing.T) {
	f := newFixture()
	f.addProvider(t, "claude", map[string]int{"code": 10}, domain.ProviderStatusActive)

	_, err := f.selector.Select(context.Background(), newImageTask(t))
	assert.ErrorIs(t, err, selector.ErrNoCompetency)
	assert.ErrorIs(t, err, selector.ErrExhausted)
}

func TestSelectNoAvailableTokens(t *testing.T) {
	f := newFixture()
	p := f.addProvider(t, "gpt", map[string]int{"image": 9}, domain.ProviderStatusActive)
	f.addAccount(t, p.ID, "primary", 1000, 1000, domain.AccountStatusActive)

	_, err := f.selector.Select(context.Background(), newImageTask(t))
	assert.ErrorIs(t, err, selector.ErrNoAvailableTokens)
}

func TestSelectTokenAvailabilityExcludesHigherCompetency(t *testing.T) {
	f := newFixture()

	// Provider B has the higher competency but no token budget; provider A
	// must win despite the lower score.
	providerA := f.addProvider(t, "provider-a", map[string]int{"image": 9}, domain.ProviderStatusActive)
	providerB := f.addProvider(t, "provider-b", map[string]int{"image": 10}, domain.ProviderStatusActive)

	accountA := f.addAccount(t, providerA.ID, "a-main", 5000, 100, domain.AccountStatusActive)
	f.addAccount(t, providerB.ID, "b-main", 1000, 1000, domain.AccountStatusActive)

	sel, err := f.selector.Select(context.Background(), newImageTask(t))
	require.NoError(t, err)
	assert.Equal(t, providerA.ID, sel.Provider.ID)
	assert.Equal(t, accountA.ID, sel.Account.ID)
}

func TestSelectCompetencyRankDominates(t *testing.T) {
	f := newFixture()

	low := f.addProvider(t, "low", map[string]int{"image": 3}, domain.ProviderStatusActive)
	high := f.addProvider(t, "high", map[string]int{"image": 8}, domain.ProviderStatusActive)

	// The low-competency provider has far more tokens available, but
	// competency rank dominates across providers.
	f.addAccount(t, low.ID, "low-main", 1_000_000, 0, domain.AccountStatusActive)
	f.addAccount(t, high.ID, "high-main", 1000, 0, domain.AccountStatusActive)

	sel, err := f.selector.Select(context.Background(), newImageTask(t))
	require.NoError(t, err)
	assert.Equal(t, high.ID, sel.Provider.ID)
}

func TestSelectPicksAccountWithMostTokensWithinProvider(t *testing.T) {
	f := newFixture()
	p := f.addProvider(t, "gpt", map[string]int{"image": 9}, domain.ProviderStatusActive)

	f.addAccount(t, p.ID, "small", 1000, 900, domain.AccountStatusActive)
	big := f.addAccount(t, p.ID, "big", 10000, 0, domain.AccountStatusActive)
	f.addAccount(t, p.ID, "inactive", 50000, 0, domain.AccountStatusInactive)

	sel, err := f.selector.Select(context.Background(), newImageTask(t))
	require.NoError(t, err)
	assert.Equal(t, big.ID, sel.Account.ID)
}

func TestFallbacksExcludePrimaryAndRankByCompetency(t *testing.T) {
	f := newFixture()

	primary := f.addProvider(t, "primary", map[string]int{"image": 10}, domain.ProviderStatusActive)
	alt1 := f.addProvider(t, "alt1", map[string]int{"image": 5}, domain.ProviderStatusActive)
	alt2 := f.addProvider(t, "alt2", map[string]int{"image": 8}, domain.ProviderStatusActive)
	f.addProvider(t, "unrelated", map[string]int{"code": 9}, domain.ProviderStatusActive)

	f.addAccount(t, alt2.ID, "alt2-main", 1000, 0, domain.AccountStatusActive)
	// alt1 has no usable account; it still appears, flagged unavailable.
	f.addAccount(t, alt1.ID, "alt1-main", 1000, 1000, domain.AccountStatusActive)

	fallbacks, err := f.selector.Fallbacks(context.Background(), "image", primary.ID)
	require.NoError(t, err)
	require.Len(t, fallbacks, 2)

	assert.Equal(t, alt2.ID, fallbacks[0].Provider.ID)
	assert.Equal(t, 8, fallbacks[0].CompetencyScore)
	assert.True(t, fallbacks[0].HasAvailableTokens)
	require.NotNil(t, fallbacks[0].AvailableAccountID)

	assert.Equal(t, alt1.ID, fallbacks[1].Provider.ID)
	assert.False(t, fallbacks[1].HasAvailableTokens)
	assert.Nil(t, fallbacks[1].AvailableAccountID)
}

func TestFallbacksEmptyWhenNothingMatches(t *testing.T) {
	f := newFixture()
	primary := f.addProvider(t, "primary", map[string]int{"image": 10}, domain.ProviderStatusActive)

	fallbacks, err := f.selector.Fallbacks(context.Background(), "image", primary.ID)
	require.NoError(t, err)
	assert.Empty(t, fallbacks)
}

func TestSelectStableOrderOnCompetencyTie(t *testing.T) {
	f := newFixture()

	first := f.addProvider(t, "first", map[string]int{"image": 7}, domain.ProviderStatusActive)
	second := f.addProvider(t, "second", map[string]int{"image": 7}, domain.ProviderStatusActive)

	f.addAccount(t, first.ID, "first-main", 1000, 0, domain.AccountStatusActive)
	f.addAccount(t, second.ID, "second-main", 1000, 0, domain.AccountStatusActive)

	// Ties break by provider creation order, deterministically.
	for i := 0; i < 5; i++ {
		sel, err := f.selector.Select(context.Background(), newImageTask(t))
		require.NoError(t, err)
		assert.Equal(t, first.ID, sel.Provider.ID)
	}
}
