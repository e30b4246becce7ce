package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// ---- AuthService stub ----

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	loginFn    func(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error)
	refreshFn  func(ctx context.Context, token string) (string, error)
	meFn       func(ctx context.Context, id domain.Identity) (*domain.Account, error)
	loggedOut  []domain.Identity
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (string, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) Me(ctx context.Context, id domain.Identity) (*domain.Account, error) {
	return s.meFn(ctx, id)
}

func (s *stubAuthService) Logout(_ context.Context, id domain.Identity, _ string) {
	s.loggedOut = append(s.loggedOut, id)
}

// ---- AdminService stub ----

type stubAdminService struct {
	ports.AdminService

	listAccountsFn     func(ctx context.Context, in ports.ListAccountsInput) (*ports.AccountPage, error)
	getAccountFn       func(ctx context.Context, id string) (*domain.Account, error)
	updateAccountFn    func(ctx context.Context, in ports.UpdateAccountInput) (*domain.Account, error)
	deactivateFn       func(ctx context.Context, actorID, targetID, ip string) error
	createInviteFn     func(ctx context.Context, in ports.CreateInviteInput) (*domain.InviteCode, error)
	listInvitesFn      func(ctx context.Context) ([]ports.InviteListItem, error)
	deactivateInviteFn func(ctx context.Context, actorID, id, ip string) (*domain.InviteCode, error)
	statsFn            func(ctx context.Context) (*ports.Stats, error)
	activityFn         func(ctx context.Context, page, limit int) (*ports.ActivityPage, error)
}

func (s *stubAdminService) ListAccounts(ctx context.Context, in ports.ListAccountsInput) (*ports.AccountPage, error) {
	return s.listAccountsFn(ctx, in)
}

func (s *stubAdminService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.getAccountFn(ctx, id)
}

func (s *stubAdminService) UpdateAccount(ctx context.Context, in ports.UpdateAccountInput) (*domain.Account, error) {
	return s.updateAccountFn(ctx, in)
}

func (s *stubAdminService) DeactivateAccount(ctx context.Context, actorID, targetID, ip string) error {
	return s.deactivateFn(ctx, actorID, targetID, ip)
}

func (s *stubAdminService) CreateInvite(ctx context.Context, in ports.CreateInviteInput) (*domain.InviteCode, error) {
	return s.createInviteFn(ctx, in)
}

func (s *stubAdminService) ListInvites(ctx context.Context) ([]ports.InviteListItem, error) {
	return s.listInvitesFn(ctx)
}

func (s *stubAdminService) DeactivateInvite(ctx context.Context, actorID, id, ip string) (*domain.InviteCode, error) {
	return s.deactivateInviteFn(ctx, actorID, id, ip)
}

func (s *stubAdminService) Stats(ctx context.Context) (*ports.Stats, error) {
	return s.statsFn(ctx)
}

func (s *stubAdminService) ActivityLogs(ctx context.Context, page, limit int) (*ports.ActivityPage, error) {
	return s.activityFn(ctx, page, limit)
}

// ---- helpers ----

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// newJSONContext builds a context for method/target with an optional JSON body
// and, when id is non-nil, an authenticated identity.
func newJSONContext(e *echo.Echo, method, target, body string, id *domain.Identity) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if id != nil {
		req = req.WithContext(domain.WithIdentity(req.Context(), *id))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
