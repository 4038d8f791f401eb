package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/mocks"
	"github.com/phrazzld/forge-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetFixture(t *testing.T, now time.Time) (*TokenResetService, *mocks.AccountStore) {
	t.Helper()
	accounts := mocks.NewAccountStore()
	svc := NewTokenResetService(accounts, store.NoopTransactor{}, slog.Default())
	svc.now = func() time.Time { return now }
	return svc, accounts
}

func addAccount(t *testing.T, accounts *mocks.AccountStore, used int64, resetDate *time.Time) *domain.Account {
	t.Helper()
	account, err := domain.NewAccount(uuid.New(), "acct", "encrypted-blob", 1000, resetDate)
	require.NoError(t, err)
	account.TokenUsed = used
	require.NoError(t, accounts.Create(context.Background(), account))
	return account
}

func TestNextResetDate(t *testing.T) {
	base := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)

	t.Run("one_period_overdue", func(t *testing.T) {
		now := base.Add(5 * 24 * time.Hour)
		next := NextResetDate(base, now)
		assert.Equal(t, base.Add(resetPeriod), next)
	})

	t.Run("several_periods_overdue", func(t *testing.T) {
		// 45 days late: the next date lands two whole periods out, still
		// anchored on the original cadence.
		now := base.Add(45 * 24 * time.Hour)
		next := NextResetDate(base, now)
		assert.Equal(t, base.Add(2*resetPeriod), next)
		assert.True(t, next.After(now))
	})

	t.Run("exactly_on_boundary_moves_forward", func(t *testing.T) {
		next := NextResetDate(base, base)
		assert.Equal(t, base.Add(resetPeriod), next)
	})
}

func TestRunResetsDueAccounts(t *testing.T) {
	now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	svc, accounts := newResetFixture(t, now)

	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	due := addAccount(t, accounts, 500, &past)
	notYet := addAccount(t, accounts, 400, &future)
	noSchedule := addAccount(t, accounts, 300, nil)

	require.NoError(t, svc.Run(context.Background()))

	got, err := accounts.GetByID(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TokenUsed)
	require.NotNil(t, got.ResetDate)
	assert.True(t, got.ResetDate.After(now), "reset date should advance into the future")
	assert.Equal(t, past.Add(resetPeriod), *got.ResetDate)

	// Accounts not yet due and accounts without a schedule are untouched.
	got, err = accounts.GetByID(context.Background(), notYet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), got.TokenUsed)

	got, err = accounts.GetByID(context.Background(), noSchedule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.TokenUsed)
	assert.Nil(t, got.ResetDate)
}

func TestRunIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	svc, accounts := newResetFixture(t, now)

	past := now.Add(-40 * 24 * time.Hour)
	addAccount(t, accounts, 500, &past)

	require.NoError(t, svc.Run(context.Background()))
	writesAfterFirst := accounts.UpdateCount

	// A second sweep at the same instant finds nothing due.
	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, writesAfterFirst, accounts.UpdateCount)
}

func TestRunWithNothingDueIsNoop(t *testing.T) {
	now := time.Now().UTC()
	svc, accounts := newResetFixture(t, now)

	future := now.Add(time.Hour)
	addAccount(t, accounts, 100, &future)

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, 0, accounts.UpdateCount)
}

func TestRunPropagatesUpdateFailure(t *testing.T) {
	now := time.Now().UTC()
	svc, accounts := newResetFixture(t, now)

	past := now.Add(-time.Hour)
	addAccount(t, accounts, 100, &past)
	accounts.UpdateErr = errors.New("connection reset")

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset account")
}

func TestResetAccountManual(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc, accounts := newResetFixture(t, now)

	t.Run("with_schedule", func(t *testing.T) {
		past := now.Add(-time.Hour)
		account := addAccount(t, accounts, 250, &past)

		got, err := svc.ResetAccount(context.Background(), account.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.TokenUsed)
		require.NotNil(t, got.ResetDate)
		assert.True(t, got.ResetDate.After(now))
	})

	t.Run("without_schedule", func(t *testing.T) {
		account := addAccount(t, accounts, 250, nil)

		got, err := svc.ResetAccount(context.Background(), account.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.TokenUsed)
		assert.Nil(t, got.ResetDate)
	})

	t.Run("unknown_account", func(t *testing.T) {
		_, err := svc.ResetAccount(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrAccountNotFound)
	})
}
