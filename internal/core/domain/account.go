package domain

import (
	"context"
	"strings"
	"time"
)

// Account is a registered user of the system.
type Account struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	Active         bool       `json:"is_active"`
	EmailVerified  bool       `json:"email_verified"`
	FailedAttempts int        `json:"failed_login_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	LastLoginAt    *time.Time `json:"last_login,omitempty"`
	InviteCodeUsed *string    `json:"invite_code_used,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PublicAccount is the subset of an account that is safe to return to its owner.
type PublicAccount struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsLocked reports whether the lockout window is still open at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Public returns the public view of the account.
func (a *Account) Public() PublicAccount {
	return PublicAccount{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is the authenticated principal extracted from an access token.
type Identity struct {
	SubjectID string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
