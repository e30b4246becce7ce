package domain

import "errors"

// Validation and lookup errors.
var (
	ErrValidation       = errors.New("validation failed")
	ErrAccountNotFound  = errors.New("account not found")
	ErrInviteNotFound   = errors.New("invite code not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInviteCodeTaken  = errors.New("invite code already exists")
	ErrInvalidRole      = errors.New("invalid role")
	ErrSelfModification = errors.New("administrators cannot modify their own account")
)

// Invite code errors.
var (
	ErrInvalidInviteCode   = errors.New("invalid invite code")
	ErrInviteCodeExpired   = errors.New("invite code expired")
	ErrInviteCodeExhausted = errors.New("invite code has reached its maximum uses")
)

// Authentication and authorization errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrForbidden           = errors.New("access forbidden")
	ErrRateLimited         = errors.New("too many requests")
)
