package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
	"github.com/99minutos/admin-auth/internal/pkg/ids"
)

// AuthService implements registration, login and token refresh.
type AuthService struct {
	accounts  ports.AccountRepository
	invites   ports.InviteRepository
	registrar ports.Registrar
	hasher    ports.PasswordHasher
	tokens    ports.TokenIssuer
	guard     *BruteForceGuard
	recorder  ports.ActivityRecorder
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthService(
	accounts ports.AccountRepository,
	invites ports.InviteRepository,
	registrar ports.Registrar,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	guard *BruteForceGuard,
	recorder ports.ActivityRecorder,
	log zerolog.Logger,
	opts ...Option,
) *AuthService {
	o := buildOptions(opts)
	return &AuthService{
		accounts:  accounts,
		invites:   invites,
		registrar: registrar,
		hasher:    hasher,
		tokens:    tokens,
		guard:     guard,
		recorder:  recorder,
		log:       log,
		now:       o.now,
	}
}

// Register creates a user account gated by an invite code and returns a token pair.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	code := domain.NormalizeInviteCode(in.InviteCode)
	if email == "" || in.Password == "" || name == "" || code == "" {
		return nil, fmt.Errorf("%w: email, password, name and invite code are required", domain.ErrValidation)
	}

	now := s.now()

	// 1-3. Invite code must exist, be active, unexpired and not exhausted.
	invite, err := s.invites.FindByCode(ctx, code)
	if errors.Is(err, domain.ErrInviteNotFound) {
		return nil, domain.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, fmt.Errorf("register: find invite: %w", err)
	}
	if err := invite.Check(now); err != nil {
		return nil, err
	}

	// 4. Email must be free.
	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("register: find account: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	account := &domain.Account{
		ID:             ids.NewUUID(),
		Email:          email,
		Name:           name,
		PasswordHash:   hash,
		Role:           domain.RoleUser,
		Active:         true,
		InviteCodeUsed: &code,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 5-6. Create the account and consume the code in one transaction.
	if err := s.registrar.RegisterWithInvite(ctx, account, code, now); err != nil {
		if errors.Is(err, domain.ErrInviteCodeExhausted) {
			return nil, s.classifyInvite(ctx, code, now)
		}
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   account.ID,
		Action:    domain.ActionUserRegistered,
		Details:   map[string]any{"email": email, "invite_code": code},
		IPAddress: in.IPAddress,
		CreatedAt: now,
	})

	tokens, err := s.tokens.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().
		Str("account_id", account.ID).
		Str("invite_code", code).
		Msg("account registered")

	return &ports.AuthResult{Account: account.Public(), Tokens: *tokens}, nil
}

// classifyInvite re-reads a code whose conditional consume failed so the
// caller sees the precise reason.
func (s *AuthService) classifyInvite(ctx context.Context, code string, now time.Time) error {
	invite, err := s.invites.FindByCode(ctx, code)
	if errors.Is(err, domain.ErrInviteNotFound) {
		return domain.ErrInvalidInviteCode
	}
	if err != nil {
		return fmt.Errorf("register: find invite: %w", err)
	}
	if err := invite.Check(now); err != nil {
		return err
	}
	return domain.ErrInviteCodeExhausted
}

// Login verifies credentials, applies the brute-force guard and returns a token pair.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if !account.Active {
		return nil, domain.ErrAccountInactive
	}

	now := s.now()
	if err := s.guard.Admit(account, now); err != nil {
		return nil, err
	}

	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		return nil, s.guard.RecordFailure(ctx, account, now)
	}

	if err := s.guard.RecordSuccess(ctx, account.ID, now); err != nil {
		if errors.Is(err, domain.ErrAccountLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	tokens, err := s.tokens.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   account.ID,
		Action:    domain.ActionLogin,
		Details:   map[string]any{"email": email},
		IPAddress: in.IPAddress,
		CreatedAt: now,
	})

	s.log.Info().Str("account_id", account.ID).Msg("login succeeded")

	return &ports.AuthResult{Account: account.Public(), Tokens: *tokens}, nil
}

// Refresh exchanges a valid refresh token for a new access token. Refresh
// tokens are not rotated or revoked.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (string, error) {
	id, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", domain.ErrInvalidRefreshToken
	}
	access, err := s.tokens.IssueAccess(*id)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	return access, nil
}

// Me returns the stored account behind an authenticated identity.
func (s *AuthService) Me(ctx context.Context, id domain.Identity) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return account, nil
}

// Logout is advisory: tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, id domain.Identity, ipAddress string) {
	s.recorder.Record(ctx, domain.ActivityEntry{
		ActorID:   id.SubjectID,
		Action:    domain.ActionLogout,
		IPAddress: ipAddress,
		CreatedAt: s.now(),
	})
	s.log.Info().Str("account_id", id.SubjectID).Msg("logout")
}
