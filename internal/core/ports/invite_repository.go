package ports

import (
	"context"
	"time"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// InviteListItem is an invite code joined with its creator's name.
type InviteListItem struct {
	domain.InviteCode
	CreatorName string
}

// InviteRepository defines persistence operations for invite codes.
type InviteRepository interface {
	// Create inserts a code. Returns domain.ErrInviteCodeTaken on a duplicate code.
	Create(ctx context.Context, invite *domain.InviteCode) error
	FindByCode(ctx context.Context, code string) (*domain.InviteCode, error)
	List(ctx context.Context) ([]InviteListItem, error)
	Deactivate(ctx context.Context, id string) (*domain.InviteCode, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// Registrar persists a new account and consumes one use of its invite code
// as a single atomic unit.
type Registrar interface {
	// RegisterWithInvite inserts account and increments the use count of code,
	// provided the code is active, unexpired and below its limit at now.
	// If the code cannot be consumed nothing is written and
	// domain.ErrInviteCodeExhausted is returned; a duplicate email yields
	// domain.ErrEmailTaken.
	RegisterWithInvite(ctx context.Context, account *domain.Account, code string, now time.Time) error
}
