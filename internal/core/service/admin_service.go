package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
	"github.com/99minutos/admin-auth/internal/pkg/ids"
)

const (
	defaultAccountPageSize  = 10
	defaultActivityPageSize = 50
	maxPageSize             = 100
	recentActivityCount     = 10
	newAccountsWindow       = 30 * 24 * time.Hour
	inviteCodeBytes         = 4
	inviteCodeAttempts      = 3
)

// AdminService implements the administrator-only operations.
type AdminService struct {
	accounts ports.AccountRepository
	invites  ports.InviteRepository
	activity ports.ActivityRepository
	recorder ports.ActivityRecorder
	log      zerolog.Logger
	now      func() time.Time
	newCode  func() (string, error)
}

func NewAdminService(
	accounts ports.AccountRepository,
	invites ports.InviteRepository,
	activity ports.ActivityRepository,
	recorder ports.ActivityRecorder,
	log zerolog.Logger,
	opts ...Option,
) *AdminService {
	o := buildOptions(opts)
	return &AdminService{
		accounts: accounts,
		invites:  invites,
		activity: activity,
		recorder: recorder,
		log:      log,
		now:      o.now,
		newCode:  generateInviteCode,
	}
}

func (s *AdminService) ListAccounts(ctx context.Context, in ports.ListAccountsInput) (*ports.AccountPage, error) {
	page, limit := normalizePage(in.Page, in.Limit, defaultAccountPageSize)
	filter := ports.AccountFilter{
		Search: strings.TrimSpace(in.Search),
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	if in.Role != "" {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		filter.Role = role
	}

	items, total, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return &ports.AccountPage{Items: items, Pagination: newPagination(page, limit, total)}, nil
}

func (s *AdminService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// UpdateAccount applies an administrator's edit to another account.
func (s *AdminService) UpdateAccount(ctx context.Context, in ports.UpdateAccountInput) (*domain.Account, error) {
	if in.ActorID == in.TargetID {
		return nil, domain.ErrSelfModification
	}

	var patch ports.AccountPatch
	changed := make([]string, 0, 4)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrValidation)
		}
		patch.Name = &name
		changed = append(changed, "name")
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email must not be empty", domain.ErrValidation)
		}
		patch.Email = &email
		changed = append(changed, "email")
	}
	if in.Role != nil {
		role, err := domain.ParseRole(*in.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		patch.Role = &role
		changed = append(changed, "role")
	}
	if in.Active != nil {
		active := *in.Active
		patch.Active = &active
		changed = append(changed, "is_active")
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}

	now := s.now()
	updated, err := s.accounts.Update(ctx, in.TargetID, patch, now)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   in.ActorID,
		Action:    domain.ActionUserUpdated,
		Details:   map[string]any{"target_user_id": in.TargetID, "fields": changed},
		IPAddress: in.IPAddress,
		CreatedAt: now,
	})
	s.log.Info().Str("actor_id", in.ActorID).Str("target_id", in.TargetID).Strs("fields", changed).Msg("account updated")

	return updated, nil
}

// DeactivateAccount soft-deletes an account by clearing its active flag.
func (s *AdminService) DeactivateAccount(ctx context.Context, actorID, targetID, ipAddress string) error {
	if actorID == targetID {
		return domain.ErrSelfModification
	}

	inactive := false
	now := s.now()
	updated, err := s.accounts.Update(ctx, targetID, ports.AccountPatch{Active: &inactive}, now)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   actorID,
		Action:    domain.ActionUserDeactivated,
		Details:   map[string]any{"target_user_id": targetID, "target_email": updated.Email},
		IPAddress: ipAddress,
		CreatedAt: now,
	})
	s.log.Info().Str("actor_id", actorID).Str("target_id", targetID).Msg("account deactivated")
	return nil
}

// CreateInvite issues a new random invite code.
func (s *AdminService) CreateInvite(ctx context.Context, in ports.CreateInviteInput) (*domain.InviteCode, error) {
	maxUses := in.MaxUses
	if maxUses == 0 {
		maxUses = domain.DefaultInviteMaxUses
	}
	if maxUses < 1 || maxUses > domain.MaxInviteUses {
		return nil, fmt.Errorf("%w: max uses must be between 1 and %d", domain.ErrValidation, domain.MaxInviteUses)
	}
	days := in.ExpiresInDays
	if days == 0 {
		days = domain.DefaultInviteExpiresDays
	}
	if days < 1 || days > domain.MaxInviteExpiresDays {
		return nil, fmt.Errorf("%w: expiry must be between 1 and %d days", domain.ErrValidation, domain.MaxInviteExpiresDays)
	}

	now := s.now()
	invite := &domain.InviteCode{
		ID:        ids.NewUUID(),
		CreatedBy: in.ActorID,
		MaxUses:   maxUses,
		Active:    true,
		CreatedAt: now,
	}
	if !in.NeverExpires {
		expires := now.AddDate(0, 0, days)
		invite.ExpiresAt = &expires
	}

	var err error
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		invite.Code, err = s.newCode()
		if err != nil {
			return nil, fmt.Errorf("create invite: generate code: %w", err)
		}
		err = s.invites.Create(ctx, invite)
		if !errors.Is(err, domain.ErrInviteCodeTaken) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   in.ActorID,
		Action:    domain.ActionInviteCodeCreated,
		Details:   map[string]any{"code": invite.Code, "max_uses": maxUses},
		IPAddress: in.IPAddress,
		CreatedAt: now,
	})
	s.log.Info().Str("actor_id", in.ActorID).Str("code", invite.Code).Int("max_uses", maxUses).Msg("invite code created")

	return invite, nil
}

func (s *AdminService) ListInvites(ctx context.Context) ([]ports.InviteListItem, error) {
	items, err := s.invites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return items, nil
}

func (s *AdminService) DeactivateInvite(ctx context.Context, actorID, id, ipAddress string) (*domain.InviteCode, error) {
	invite, err := s.invites.Deactivate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deactivate invite: %w", err)
	}

	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   actorID,
		Action:    domain.ActionInviteCodeDeactivated,
		Details:   map[string]any{"code": invite.Code},
		IPAddress: ipAddress,
		CreatedAt: s.now(),
	})
	return invite, nil
}

// Stats summarizes accounts, invites and recent activity.
func (s *AdminService) Stats(ctx context.Context) (*ports.Stats, error) {
	now := s.now()
	accountStats, err := s.accounts.Stats(ctx, now.Add(-newAccountsWindow))
	if err != nil {
		return nil, fmt.Errorf("stats: accounts: %w", err)
	}
	activeInvites, err := s.invites.CountActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("stats: invites: %w", err)
	}
	recent, _, err := s.activity.List(ctx, 0, recentActivityCount)
	if err != nil {
		return nil, fmt.Errorf("stats: activity: %w", err)
	}

	byRole := make([]ports.RoleCount, 0, len(accountStats.ByRole))
	for role, count := range accountStats.ByRole {
		byRole = append(byRole, ports.RoleCount{Role: role, Count: count})
	}
	sort.Slice(byRole, func(i, j int) bool { return byRole[i].Role < byRole[j].Role })

	return &ports.Stats{
		TotalAccounts:  accountStats.Total,
		ActiveAccounts: accountStats.Active,
		AccountsByRole: byRole,
		ActiveInvites:  activeInvites,
		NewAccounts30d: accountStats.NewSince,
		RecentActivity: recent,
	}, nil
}

func (s *AdminService) ActivityLogs(ctx context.Context, page, limit int) (*ports.ActivityPage, error) {
	page, limit = normalizePage(page, limit, defaultActivityPageSize)
	items, total, err := s.activity.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("activity logs: %w", err)
	}
	return &ports.ActivityPage{Items: items, Pagination: newPagination(page, limit, total)}, nil
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func newPagination(page, limit int, total int64) ports.Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return ports.Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// generateInviteCode returns eight upper-case hex characters.
func generateInviteCode() (string, error) {
	b := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
