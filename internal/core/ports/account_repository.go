package ports

import (
	"context"
	"time"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// AccountFilter carries the query parameters for listing accounts.
type AccountFilter struct {
	Search string      // optional: partial, case-insensitive match on name or email
	Role   domain.Role // empty = any role
	Offset int
	Limit  int
}

// AccountPatch holds the fields an administrator may change. Nil means unchanged.
type AccountPatch struct {
	Name   *string
	Email  *string
	Role   *domain.Role
	Active *bool
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.Active == nil
}

// AccountStats summarizes the account table.
type AccountStats struct {
	Total    int64
	Active   int64
	ByRole   map[domain.Role]int64
	NewSince int64
}

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	// Create inserts a new account. Returns domain.ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*domain.Account, int64, error)
	// Update applies patch and returns the updated account.
	Update(ctx context.Context, id string, patch AccountPatch, now time.Time) (*domain.Account, error)

	// RecordFailedLogin atomically increments the failure counter and, when the
	// new count reaches policy.Threshold, sets the lock expiry. The update only
	// applies while the account is not locked at now; otherwise it returns
	// domain.ErrAccountLocked.
	RecordFailedLogin(ctx context.Context, id string, policy domain.LockoutPolicy, now time.Time) (*domain.Account, error)
	// RecordSuccessfulLogin clears the failure counter and lock and stamps the last login.
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error

	Stats(ctx context.Context, since time.Time) (*AccountStats, error)
}
