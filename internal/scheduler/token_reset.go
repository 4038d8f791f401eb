package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/store"
)

// resetPeriod is the length of one token budget cycle.
const resetPeriod = 30 * 24 * time.Hour

// TokenResetService restores account token budgets whose reset date has
// passed. Accounts with a NULL reset date are never touched; their budget
// only moves by explicit administrative action.
type TokenResetService struct {
	accounts   store.AccountStore
	transactor store.Transactor
	logger     *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewTokenResetService creates a TokenResetService. If logger is nil, a
// default logger will be used.
func NewTokenResetService(accounts store.AccountStore, transactor store.Transactor, logger *slog.Logger) *TokenResetService {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenResetService{
		accounts:   accounts,
		transactor: transactor,
		logger:     logger.With(slog.String("component", "token_reset")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Job.
func (s *TokenResetService) Name() string { return "token_reset" }

// Run implements Job. It sweeps every due account in one transaction:
// either the whole sweep lands or none of it does, so a partially reset
// fleet never becomes visible.
func (s *TokenResetService) Run(ctx context.Context) error {
	now := s.now()

	due, err := s.accounts.ListResetDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list accounts due for reset: %w", err)
	}

	if len(due) == 0 {
		s.logger.Debug("no accounts due for token reset")
		return nil
	}

	err = s.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		accounts := s.accounts.WithTx(tx)
		for _, account := range due {
			previousUsage := account.TokenUsed
			account.TokenUsed = 0
			next := NextResetDate(*account.ResetDate, now)
			account.ResetDate = &next

			if err := accounts.Update(ctx, account); err != nil {
				return fmt.Errorf("failed to reset account %s: %w", account.ID, err)
			}

			s.logger.Info("account token budget reset",
				slog.String("account_id", account.ID.String()),
				slog.Int64("previous_usage", previousUsage),
				slog.Time("next_reset", next))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("token reset sweep finished", slog.Int("accounts_reset", len(due)))
	return nil
}

// ResetAccount zeroes one account's usage immediately, regardless of its
// reset date. Used by the administrative manual-reset operation. A set
// reset date is advanced as if the scheduled reset had just fired.
func (s *TokenResetService) ResetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account.TokenUsed = 0
	if account.ResetDate != nil {
		next := NextResetDate(*account.ResetDate, now)
		account.ResetDate = &next
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to reset account %s: %w", id, err)
	}

	s.logger.Info("account token budget reset manually",
		slog.String("account_id", id.String()))
	return account, nil
}

// NextResetDate advances a reset date by whole periods until it lies
// strictly in the future. Anchoring on the previous date instead of on
// now keeps the cycle cadence stable even when sweeps run late or the
// service was down across several periods.
func NextResetDate(previous, now time.Time) time.Time {
	next := previous
	for !next.After(now) {
		next = next.Add(resetPeriod)
	}
	return next
}
