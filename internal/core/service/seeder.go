package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
	"github.com/99minutos/admin-auth/internal/pkg/ids"
)

// SeedInvite describes an invite code created at bootstrap.
type SeedInvite struct {
	Code    string
	MaxUses int
}

// DefaultSeedInvites are created alongside the bootstrap administrator.
var DefaultSeedInvites = []SeedInvite{
	{Code: "EMPRESA2024", MaxUses: 10},
	{Code: "COLABORADOR01", MaxUses: 1},
	{Code: "TESTE123", MaxUses: 5},
}

const seedInviteTTL = 30 * 24 * time.Hour

// SeedConfig holds the bootstrap administrator and invite codes.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
	Invites       []SeedInvite
}

// Seeder creates the bootstrap administrator and default invite codes.
// Running it again leaves existing records untouched.
type Seeder struct {
	accounts ports.AccountRepository
	invites  ports.InviteRepository
	hasher   ports.PasswordHasher
	log      zerolog.Logger
	now      func() time.Time
}

func NewSeeder(accounts ports.AccountRepository, invites ports.InviteRepository, hasher ports.PasswordHasher, log zerolog.Logger, opts ...Option) *Seeder {
	o := buildOptions(opts)
	return &Seeder{accounts: accounts, invites: invites, hasher: hasher, log: log, now: o.now}
}

func (s *Seeder) Seed(ctx context.Context, cfg SeedConfig) error {
	admin, err := s.ensureAdmin(ctx, cfg)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	now := s.now()
	for _, seed := range cfg.Invites {
		code := domain.NormalizeInviteCode(seed.Code)
		if _, err := s.invites.FindByCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrInviteNotFound) {
			return fmt.Errorf("seed invite %s: %w", code, err)
		}

		expires := now.Add(seedInviteTTL)
		invite := &domain.InviteCode{
			ID:        ids.NewUUID(),
			Code:      code,
			CreatedBy: admin.ID,
			MaxUses:   seed.MaxUses,
			ExpiresAt: &expires,
			Active:    true,
			CreatedAt: now,
		}
		if err := s.invites.Create(ctx, invite); err != nil && !errors.Is(err, domain.ErrInviteCodeTaken) {
			return fmt.Errorf("seed invite %s: %w", code, err)
		}
		s.log.Info().Str("code", code).Int("max_uses", seed.MaxUses).Msg("seeded invite code")
	}
	return nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, cfg SeedConfig) (*domain.Account, error) {
	email := domain.NormalizeEmail(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		return nil, fmt.Errorf("%w: admin email and password are required", domain.ErrValidation)
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	now := s.now()
	admin := &domain.Account{
		ID:            ids.NewUUID(),
		Email:         email,
		Name:          cfg.AdminName,
		PasswordHash:  hash,
		Role:          domain.RoleAdmin,
		Active:        true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accounts.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return s.accounts.FindByEmail(ctx, email)
		}
		return nil, err
	}
	s.log.Info().Str("account_id", admin.ID).Str("email", email).Msg("seeded admin account")
	return admin, nil
}
