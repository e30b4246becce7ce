package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// BruteForceGuard tracks consecutive login failures per account and locks
// accounts that cross the policy threshold.
type BruteForceGuard struct {
	accounts ports.AccountRepository
	policy   domain.LockoutPolicy
	log      zerolog.Logger
}

func NewBruteForceGuard(accounts ports.AccountRepository, policy domain.LockoutPolicy, log zerolog.Logger) *BruteForceGuard {
	if policy.Threshold <= 0 || policy.Duration <= 0 {
		policy = domain.DefaultLockoutPolicy
	}
	return &BruteForceGuard{accounts: accounts, policy: policy, log: log}
}

// Admit rejects accounts whose lock has not yet expired.
func (g *BruteForceGuard) Admit(account *domain.Account, now time.Time) error {
	if account.IsLocked(now) {
		return domain.ErrAccountLocked
	}
	return nil
}

// RecordFailure counts a failed attempt. It returns domain.ErrAccountLocked when
// this failure locked the account (or another request locked it first) and
// domain.ErrInvalidCredentials otherwise.
func (g *BruteForceGuard) RecordFailure(ctx context.Context, account *domain.Account, now time.Time) error {
	updated, err := g.accounts.RecordFailedLogin(ctx, account.ID, g.policy, now)
	if errors.Is(err, domain.ErrAccountLocked) {
		return domain.ErrAccountLocked
	}
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	if updated.IsLocked(now) {
		g.log.Warn().
			Str("account_id", account.ID).
			Int("attempts", updated.FailedAttempts).
			Time("locked_until", *updated.LockedUntil).
			Msg("account locked after repeated failures")
		return domain.ErrAccountLocked
	}
	return domain.ErrInvalidCredentials
}

// RecordSuccess clears the counter and lock and stamps the last login. It
// returns domain.ErrAccountLocked when a concurrent failure locked the account
// after Admit, in which case the login must not succeed.
func (g *BruteForceGuard) RecordSuccess(ctx context.Context, accountID string, now time.Time) error {
	err := g.accounts.RecordSuccessfulLogin(ctx, accountID, now)
	if errors.Is(err, domain.ErrAccountLocked) {
		g.log.Warn().Str("account_id", accountID).Msg("correct password rejected, account locked mid-login")
		return domain.ErrAccountLocked
	}
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}
	return nil
}
