package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
	"github.com/99minutos/admin-auth/internal/core/service"
)

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, domain.ActivityEntry) {}

func newAuthService(t *testing.T, store *Store) *service.AuthService {
	t.Helper()
	return newAuthServiceWithHasher(t, store, service.NewPasswordHasher(bcrypt.MinCost))
}

func newAuthServiceWithHasher(t *testing.T, store *Store, hasher ports.PasswordHasher) *service.AuthService {
	t.Helper()
	tokens, err := service.NewTokenIssuer(service.TokenConfig{AccessSecret: "a", RefreshSecret: "r"})
	require.NoError(t, err)
	guard := service.NewBruteForceGuard(store.Accounts(), domain.DefaultLockoutPolicy, zerolog.Nop())
	return service.NewAuthService(store.Accounts(), store.Invites(), store.Registrar(),
		hasher, tokens, guard, nopRecorder{}, zerolog.Nop())
}

func TestConcurrentRegistrations_NeverOverUseInvite(t *testing.T) {
	const (
		maxUses   = 3
		attempts  = 12
		inviteStr = "LIMITED"
	)
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Accounts().Create(ctx, newAccount("admin", "admin@empresa.com", domain.RoleAdmin)))
	require.NoError(t, store.Invites().Create(ctx, &domain.InviteCode{
		ID: "i1", Code: inviteStr, CreatedBy: "admin", MaxUses: maxUses, Active: true, CreatedAt: t0,
	}))
	svc := newAuthService(t, store)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(ctx, ports.RegisterInput{
				Email:      fmt.Sprintf("racer%d@example.com", i),
				Password:   "Secret1!",
				Name:       "Racer",
				InviteCode: inviteStr,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, maxUses, succeeded)
	for _, err := range failures {
		assert.True(t, errors.Is(err, domain.ErrInviteCodeExhausted), "unexpected error: %v", err)
	}

	inv, err := store.Invites().FindByCode(ctx, inviteStr)
	require.NoError(t, err)
	assert.Equal(t, maxUses, inv.CurrentUses)

	_, total, err := store.Accounts().List(ctx, ports.AccountFilter{Role: domain.RoleUser, Limit: 100})
	require.NoError(t, err)
	assert.EqualValues(t, maxUses, total)
}

func TestConcurrentFailedLogins_LockExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	hasher := service.NewPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("Secret1!")
	require.NoError(t, err)
	acc := newAccount("a1", "target@example.com", domain.RoleUser)
	acc.PasswordHash = hash
	require.NoError(t, store.Accounts().Create(ctx, acc))
	svc := newAuthService(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Login(ctx, ports.LoginInput{Email: "target@example.com", Password: "wrong"})
		}()
	}
	wg.Wait()

	stored, err := store.Accounts().FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxFailedAttempts, stored.FailedAttempts, "counter freezes once locked")
	assert.NotNil(t, stored.LockedUntil)
}

// gatedHasher holds verifications of one password until release is closed.
type gatedHasher struct {
	ports.PasswordHasher
	password string
	entered  chan struct{}
	release  chan struct{}
}

func (h *gatedHasher) Verify(password, digest string) bool {
	if password == h.password {
		close(h.entered)
		<-h.release
	}
	return h.PasswordHasher.Verify(password, digest)
}

func TestLoginInFlight_DoesNotClearConcurrentLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := service.NewPasswordHasher(bcrypt.MinCost)
	hash, err := base.Hash("Secret1!")
	require.NoError(t, err)
	acc := newAccount("a1", "target@example.com", domain.RoleUser)
	acc.PasswordHash = hash
	require.NoError(t, store.Accounts().Create(ctx, acc))

	hasher := &gatedHasher{
		PasswordHasher: base,
		password:       "Secret1!",
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := newAuthServiceWithHasher(t, store, hasher)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Login(ctx, ports.LoginInput{Email: "target@example.com", Password: "Secret1!"})
		done <- err
	}()
	<-hasher.entered

	var last error
	for i := 0; i < domain.MaxFailedAttempts; i++ {
		_, last = svc.Login(ctx, ports.LoginInput{Email: "target@example.com", Password: "wrong"})
	}
	require.ErrorIs(t, last, domain.ErrAccountLocked)

	close(hasher.release)
	assert.ErrorIs(t, <-done, domain.ErrAccountLocked)

	stored, err := store.Accounts().FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxFailedAttempts, stored.FailedAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.Nil(t, stored.LastLoginAt)
}
