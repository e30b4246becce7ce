package ports

import (
	"context"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// ListAccountsInput carries all parameters for the account list endpoint.
type ListAccountsInput struct {
	Search string
	Role   string
	Page   int
	Limit  int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// AccountPage is returned by ListAccounts.
type AccountPage struct {
	Items      []*domain.Account
	Pagination Pagination
}

// UpdateAccountInput carries an administrator's edit to another account.
type UpdateAccountInput struct {
	ActorID   string
	TargetID  string
	Name      *string
	Email     *string
	Role      *string
	Active    *bool
	IPAddress string
}

// CreateInviteInput carries the parameters for a new invite code. Zero values
// select the defaults.
type CreateInviteInput struct {
	ActorID       string
	MaxUses       int
	ExpiresInDays int
	NeverExpires  bool
	IPAddress     string
}

// RoleCount is the number of accounts holding a role.
type RoleCount struct {
	Role  domain.Role
	Count int64
}

// Stats is the administrator dashboard summary.
type Stats struct {
	TotalAccounts  int64
	ActiveAccounts int64
	AccountsByRole []RoleCount
	ActiveInvites  int64
	NewAccounts30d int64
	RecentActivity []domain.ActivityView
}

// ActivityPage is returned by ActivityLogs.
type ActivityPage struct {
	Items      []domain.ActivityView
	Pagination Pagination
}

// AdminService implements the administrator-only operations.
type AdminService interface {
	ListAccounts(ctx context.Context, in ListAccountsInput) (*AccountPage, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, in UpdateAccountInput) (*domain.Account, error)
	DeactivateAccount(ctx context.Context, actorID, targetID, ipAddress string) error

	CreateInvite(ctx context.Context, in CreateInviteInput) (*domain.InviteCode, error)
	ListInvites(ctx context.Context) ([]InviteListItem, error)
	DeactivateInvite(ctx context.Context, actorID, id, ipAddress string) (*domain.InviteCode, error)

	Stats(ctx context.Context) (*Stats, error)
	ActivityLogs(ctx context.Context, page, limit int) (*ActivityPage, error)
}
