package domain

import (
	"strings"
	"time"
)

const (
	DefaultInviteMaxUses     = 1
	DefaultInviteExpiresDays = 30
	MaxInviteExpiresDays     = 365
	MaxInviteUses            = 1000
)

// InviteCode gates self-registration.
type InviteCode struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	CreatedBy   string     `json:"created_by"`
	MaxUses     int        `json:"max_uses"`
	CurrentUses int        `json:"current_uses"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Check returns nil when the code can be consumed at now, otherwise the
// error describing why it cannot.
func (c *InviteCode) Check(now time.Time) error {
	switch {
	case !c.Active:
		return ErrInvalidInviteCode
	case c.ExpiresAt != nil && !c.ExpiresAt.After(now):
		return ErrInviteCodeExpired
	case c.CurrentUses >= c.MaxUses:
		return ErrInviteCodeExhausted
	}
	return nil
}

// Usable reports whether the code can be consumed at now.
func (c *InviteCode) Usable(now time.Time) bool {
	return c.Check(now) == nil
}

// NormalizeInviteCode trims and upper-cases a code as typed by a user.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
