package ports

import (
	"context"
	"time"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// TokenPair is returned on successful registration and login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RegisterInput is the DTO passed from the transport layer to AuthService.Register.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	InviteCode string
	IPAddress  string
}

// LoginInput is the DTO passed from the transport layer to AuthService.Login.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
}

// AuthResult is the outcome of a successful registration or login.
type AuthResult struct {
	Account domain.PublicAccount
	Tokens  TokenPair
}

// AuthService implements the public authentication flows.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Me(ctx context.Context, id domain.Identity) (*domain.Account, error)
	Logout(ctx context.Context, id domain.Identity, ipAddress string)
}

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer interface {
	Issue(account *domain.Account) (*TokenPair, error)
	IssueAccess(id domain.Identity) (string, error)
	VerifyAccess(token string) (*domain.Identity, error)
	VerifyRefresh(token string) (*domain.Identity, error)
}

// TokenVerifier is the read-only half of TokenIssuer used by the request gate.
type TokenVerifier interface {
	VerifyAccess(token string) (*domain.Identity, error)
}

// PasswordHasher derives and checks password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}
