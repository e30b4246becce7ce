package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	kindAccess  = "access"
	kindRefresh = "refresh"
)

// ErrTokenSecrets is returned when the signing secrets are missing or shared.
var ErrTokenSecrets = errors.New("access and refresh secrets must be set and distinct")

// TokenConfig holds the signing parameters for TokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type tokenClaims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	Kind  string      `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewTokenIssuer(cfg TokenConfig, opts ...Option) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" || cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrTokenSecrets
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	o := buildOptions(opts)
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           o.now,
	}, nil
}

// Issue returns a fresh access/refresh pair for account.
func (t *TokenIssuer) Issue(account *domain.Account) (*ports.TokenPair, error) {
	id := domain.Identity{SubjectID: account.ID, Email: account.Email, Role: account.Role}
	access, err := t.sign(id, kindAccess, t.accessSecret, t.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := t.sign(id, kindRefresh, t.refreshSecret, t.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: t.accessTTL}, nil
}

func (t *TokenIssuer) IssueAccess(id domain.Identity) (string, error) {
	return t.sign(id, kindAccess, t.accessSecret, t.accessTTL)
}

// VerifyAccess returns domain.ErrTokenExpired or domain.ErrInvalidToken on failure.
func (t *TokenIssuer) VerifyAccess(token string) (*domain.Identity, error) {
	return t.parse(token, kindAccess, t.accessSecret)
}

// VerifyRefresh returns domain.ErrInvalidRefreshToken on any failure.
func (t *TokenIssuer) VerifyRefresh(token string) (*domain.Identity, error) {
	id, err := t.parse(token, kindRefresh, t.refreshSecret)
	if err != nil {
		return nil, domain.ErrInvalidRefreshToken
	}
	return id, nil
}

func (t *TokenIssuer) sign(id domain.Identity, kind string, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := tokenClaims{
		Email: id.Email,
		Role:  id.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (t *TokenIssuer) parse(token, kind string, secret []byte) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" || claims.Kind != kind || !claims.Role.Valid() {
		return nil, domain.ErrInvalidToken
	}
	return &domain.Identity{SubjectID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
