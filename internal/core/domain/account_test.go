package domain

import (
	"context"
	"testing"
	"time"
)

func TestAccount_IsLocked(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	if (&Account{}).IsLocked(now) {
		t.Fatal("account without lock should not be locked")
	}
	if !(&Account{LockedUntil: &later}).IsLocked(now) {
		t.Fatal("account with future lock should be locked")
	}
	if (&Account{LockedUntil: &earlier}).IsLocked(now) {
		t.Fatal("expired lock should not count")
	}
}

func TestAccount_PublicOmitsSecrets(t *testing.T) {
	a := &Account{ID: "u1", Email: "a@b.com", Name: "Ann", Role: RoleAdmin, PasswordHash: "hash"}
	p := a.Public()
	if p.ID != "u1" || p.Email != "a@b.com" || p.Name != "Ann" || p.Role != RoleAdmin {
		t.Fatalf("unexpected public view: %+v", p)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Admin "); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole(Admin) = %q, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{SubjectID: "u1", Role: RoleUser})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.SubjectID != "u1" {
		t.Fatalf("identity not found in context: %+v %v", id, ok)
	}
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("empty context should have no identity")
	}
}
