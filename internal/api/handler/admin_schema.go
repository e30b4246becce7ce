package handler

import (
	"time"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// --- Request types ---

type listAccountsQuery struct {
	Page   int    `query:"page"   validate:"gte=0"`
	Limit  int    `query:"limit"  validate:"gte=0,lte=100"`
	Search string `query:"search" validate:"max=255"`
	Role   string `query:"role"   validate:"omitempty,oneof=user admin"`
}

type updateAccountRequest struct {
	Name   *string `json:"name"      validate:"omitempty,min=2,max=255,personname"`
	Email  *string `json:"email"     validate:"omitempty,email,max=255"`
	Role   *string `json:"role"      validate:"omitempty,oneof=user admin"`
	Active *bool   `json:"is_active"`
}

type createInviteRequest struct {
	MaxUses       int  `json:"max_uses"        validate:"gte=0,lte=1000"`
	ExpiresInDays int  `json:"expires_in_days" validate:"gte=0,lte=365"`
	NeverExpires  bool `json:"never_expires"`
}

type pageQuery struct {
	Page  int `query:"page"  validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=0,lte=100"`
}

// --- Response types ---

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type accountSummary struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Active        bool    `json:"is_active"`
	EmailVerified bool    `json:"email_verified"`
	LastLogin     *string `json:"last_login"`
	CreatedAt     string  `json:"created_at"`
}

type accountDetail struct {
	accountSummary
	FailedAttempts int     `json:"login_attempts"`
	LockedUntil    *string `json:"locked_until"`
	InviteCodeUsed *string `json:"invite_code_used"`
	UpdatedAt      string  `json:"updated_at"`
}

type listAccountsResponse struct {
	Users      []accountSummary   `json:"users"`
	Pagination paginationResponse `json:"pagination"`
}

type accountResponse struct {
	User accountDetail `json:"user"`
}

type inviteResponseItem struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	CreatedBy   string  `json:"created_by"`
	CreatorName string  `json:"created_by_name,omitempty"`
	MaxUses     int     `json:"max_uses"`
	CurrentUses int     `json:"current_uses"`
	ExpiresAt   *string `json:"expires_at"`
	Active      bool    `json:"is_active"`
	Usable      bool    `json:"usable"`
	CreatedAt   string  `json:"created_at"`
}

type inviteResponse struct {
	InviteCode inviteResponseItem `json:"inviteCode"`
}

type listInvitesResponse struct {
	InviteCodes []inviteResponseItem `json:"inviteCodes"`
}

type roleCountResponse struct {
	Role  string `json:"role"`
	Count int64  `json:"count"`
}

type activityResponseItem struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	UserName  string         `json:"user_name,omitempty"`
	UserEmail string         `json:"user_email,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type statsResponse struct {
	TotalUsers         int64                  `json:"totalUsers"`
	ActiveUsers        int64                  `json:"activeUsers"`
	UsersByRole        []roleCountResponse    `json:"usersByRole"`
	ActiveInvites      int64                  `json:"activeInvites"`
	NewUsersLast30Days int64                  `json:"newUsersLast30Days"`
	RecentActivity     []activityResponseItem `json:"recentActivity"`
}

type activityLogsResponse struct {
	Logs       []activityResponseItem `json:"logs"`
	Pagination paginationResponse     `json:"pagination"`
}

// --- Service result → Response ---

func toPagination(p ports.Pagination) paginationResponse {
	return paginationResponse{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.TotalPages}
}

func toAccountSummary(a *domain.Account) accountSummary {
	return accountSummary{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Role:          a.Role.String(),
		Active:        a.Active,
		EmailVerified: a.EmailVerified,
		LastLogin:     formatTimePtr(a.LastLoginAt),
		CreatedAt:     formatTime(a.CreatedAt),
	}
}

func toAccountDetail(a *domain.Account) accountDetail {
	return accountDetail{
		accountSummary: toAccountSummary(a),
		FailedAttempts: a.FailedAttempts,
		LockedUntil:    formatTimePtr(a.LockedUntil),
		InviteCodeUsed: a.InviteCodeUsed,
		UpdatedAt:      formatTime(a.UpdatedAt),
	}
}

func toInviteItem(inv *domain.InviteCode, creatorName string, now time.Time) inviteResponseItem {
	return inviteResponseItem{
		ID:          inv.ID,
		Code:        inv.Code,
		CreatedBy:   inv.CreatedBy,
		CreatorName: creatorName,
		MaxUses:     inv.MaxUses,
		CurrentUses: inv.CurrentUses,
		ExpiresAt:   formatTimePtr(inv.ExpiresAt),
		Active:      inv.Active,
		Usable:      inv.Usable(now),
		CreatedAt:   formatTime(inv.CreatedAt),
	}
}

func toActivityItems(views []domain.ActivityView) []activityResponseItem {
	items := make([]activityResponseItem, 0, len(views))
	for _, v := range views {
		items = append(items, activityResponseItem{
			ID:        v.ID,
			UserID:    v.ActorID,
			UserName:  v.ActorName,
			UserEmail: v.ActorEmail,
			Action:    string(v.Action),
			Details:   v.Details,
			IPAddress: v.IPAddress,
			CreatedAt: formatTime(v.CreatedAt),
		})
	}
	return items
}

func toStatsResponse(s *ports.Stats) statsResponse {
	byRole := make([]roleCountResponse, 0, len(s.AccountsByRole))
	for _, rc := range s.AccountsByRole {
		byRole = append(byRole, roleCountResponse{Role: rc.Role.String(), Count: rc.Count})
	}
	return statsResponse{
		TotalUsers:         s.TotalAccounts,
		ActiveUsers:        s.ActiveAccounts,
		UsersByRole:        byRole,
		ActiveInvites:      s.ActiveInvites,
		NewUsersLast30Days: s.NewAccounts30d,
		RecentActivity:     toActivityItems(s.RecentActivity),
	}
}
