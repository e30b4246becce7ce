package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/service"
)

type stubVerifier struct {
	verifyFn func(token string) (*domain.Identity, error)
}

func (s *stubVerifier) VerifyAccess(token string) (*domain.Identity, error) {
	return s.verifyFn(token)
}

func newContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthenticate_ValidToken(t *testing.T) {
	issuer, err := service.NewTokenIssuer(service.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	pair, err := issuer.Issue(&domain.Account{ID: "u-1", Email: "alice@example.com", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	c, rec := newContext("Bearer " + pair.AccessToken)

	called := false
	handler := Authenticate(issuer)(func(c echo.Context) error {
		called = true
		id, ok := c.Get(IdentityKey).(domain.Identity)
		if !ok || id.SubjectID != "u-1" || id.Role != domain.RoleAdmin {
			t.Fatalf("identity not set on echo context: %+v", id)
		}
		fromCtx, ok := domain.IdentityFromContext(c.Request().Context())
		if !ok || fromCtx.Email != "alice@example.com" {
			t.Fatalf("identity not set on request context: %+v", fromCtx)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_RefreshTokenIsRejected(t *testing.T) {
	issuer, err := service.NewTokenIssuer(service.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	pair, err := issuer.Issue(&domain.Account{ID: "u-1", Email: "alice@example.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	c, _ := newContext("Bearer " + pair.RefreshToken)
	err = Authenticate(issuer)(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})(c)

	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticate_MissingOrMalformedHeader(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(string) (*domain.Identity, error) {
		t.Fatalf("verifier must not be called")
		return nil, nil
	}}

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer   "} {
		c, _ := newContext(header)
		err := Authenticate(verifier)(func(echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		})(c)
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("header %q: expected ErrUnauthenticated, got %v", header, err)
		}
	}
}

func TestAuthenticate_PropagatesVerifierError(t *testing.T) {
	for _, want := range []error{domain.ErrInvalidToken, domain.ErrTokenExpired} {
		verifier := &stubVerifier{verifyFn: func(string) (*domain.Identity, error) { return nil, want }}
		c, _ := newContext("bearer some.jwt.value")

		err := Authenticate(verifier)(func(echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		})(c)
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}
