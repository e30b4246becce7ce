package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// ---------------------------------------------------------------------------
// clock
// ---------------------------------------------------------------------------

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// ---------------------------------------------------------------------------
// accounts
// ---------------------------------------------------------------------------

type stubAccountRepo struct {
	byID map[string]*domain.Account
	err  error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, a *domain.Account) error {
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.byID {
		if existing.Email == a.Email {
			return domain.ErrEmailTaken
		}
	}
	r.byID[a.ID] = cloneAccount(a)
	return nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.byID {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	if a, ok := r.byID[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) List(_ context.Context, f ports.AccountFilter) ([]*domain.Account, int64, error) {
	var out []*domain.Account
	for _, a := range r.byID {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Search != "" && !strings.Contains(a.Email, strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := int64(len(out))
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *stubAccountRepo) Update(_ context.Context, id string, p ports.AccountPatch, now time.Time) (*domain.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if p.Email != nil {
		for otherID, other := range r.byID {
			if otherID != id && other.Email == *p.Email {
				return nil, domain.ErrEmailTaken
			}
		}
		a.Email = *p.Email
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	a.UpdatedAt = now
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) RecordFailedLogin(_ context.Context, id string, policy domain.LockoutPolicy, now time.Time) (*domain.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if a.IsLocked(now) {
		return nil, domain.ErrAccountLocked
	}
	a.FailedAttempts++
	if a.FailedAttempts >= policy.Threshold {
		until := policy.LockUntil(now)
		a.LockedUntil = &until
	}
	a.UpdatedAt = now
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) RecordSuccessfulLogin(_ context.Context, id string, now time.Time) error {
	a, ok := r.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if a.IsLocked(now) {
		return domain.ErrAccountLocked
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.LastLoginAt = &now
	return nil
}

func (r *stubAccountRepo) Stats(_ context.Context, since time.Time) (*ports.AccountStats, error) {
	st := &ports.AccountStats{ByRole: make(map[domain.Role]int64)}
	for _, a := range r.byID {
		st.Total++
		if a.Active {
			st.Active++
		}
		st.ByRole[a.Role]++
		if a.CreatedAt.After(since) {
			st.NewSince++
		}
	}
	return st, nil
}

// ---------------------------------------------------------------------------
// invites + registrar
// ---------------------------------------------------------------------------

type stubInviteRepo struct {
	byCode    map[string]*domain.InviteCode
	createErr []error
}

func newStubInviteRepo() *stubInviteRepo {
	return &stubInviteRepo{byCode: make(map[string]*domain.InviteCode)}
}

func (r *stubInviteRepo) add(code string, maxUses int, expires *time.Time) {
	r.byCode[code] = &domain.InviteCode{ID: "inv-" + code, Code: code, MaxUses: maxUses, ExpiresAt: expires, Active: true}
}

func (r *stubInviteRepo) Create(_ context.Context, inv *domain.InviteCode) error {
	if len(r.createErr) > 0 {
		err := r.createErr[0]
		r.createErr = r.createErr[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := r.byCode[inv.Code]; exists {
		return domain.ErrInviteCodeTaken
	}
	clone := *inv
	r.byCode[inv.Code] = &clone
	return nil
}

func (r *stubInviteRepo) FindByCode(_ context.Context, code string) (*domain.InviteCode, error) {
	if inv, ok := r.byCode[code]; ok {
		clone := *inv
		return &clone, nil
	}
	return nil, domain.ErrInviteNotFound
}

func (r *stubInviteRepo) List(_ context.Context) ([]ports.InviteListItem, error) {
	var out []ports.InviteListItem
	for _, inv := range r.byCode {
		out = append(out, ports.InviteListItem{InviteCode: *inv})
	}
	return out, nil
}

func (r *stubInviteRepo) Deactivate(_ context.Context, id string) (*domain.InviteCode, error) {
	for _, inv := range r.byCode {
		if inv.ID == id {
			inv.Active = false
			clone := *inv
			return &clone, nil
		}
	}
	return nil, domain.ErrInviteNotFound
}

func (r *stubInviteRepo) CountActive(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, inv := range r.byCode {
		if inv.Usable(now) {
			n++
		}
	}
	return n, nil
}

type stubRegistrar struct {
	accounts *stubAccountRepo
	invites  *stubInviteRepo
}

func (r *stubRegistrar) RegisterWithInvite(ctx context.Context, a *domain.Account, code string, now time.Time) error {
	inv, ok := r.invites.byCode[code]
	if !ok || inv.Check(now) != nil {
		return domain.ErrInviteCodeExhausted
	}
	if err := r.accounts.Create(ctx, a); err != nil {
		return err
	}
	inv.CurrentUses++
	return nil
}

// ---------------------------------------------------------------------------
// activity
// ---------------------------------------------------------------------------

type stubRecorder struct {
	entries []domain.ActivityEntry
}

func (r *stubRecorder) Record(_ context.Context, e domain.ActivityEntry) {
	r.entries = append(r.entries, e)
}

func (r *stubRecorder) actions() []domain.ActivityAction {
	out := make([]domain.ActivityAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type stubActivityRepo struct {
	views []domain.ActivityView
	calls [][2]int
}

func (r *stubActivityRepo) Append(_ context.Context, e *domain.ActivityEntry) error {
	r.views = append(r.views, domain.ActivityView{ActivityEntry: *e})
	return nil
}

func (r *stubActivityRepo) List(_ context.Context, offset, limit int) ([]domain.ActivityView, int64, error) {
	r.calls = append(r.calls, [2]int{offset, limit})
	total := int64(len(r.views))
	if offset >= len(r.views) {
		return nil, total, nil
	}
	out := r.views[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}
