package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

func renderError(t *testing.T, err error) (int, errorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec.Code, body
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrSelfModification, http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrInvalidInviteCode, http.StatusBadRequest, "INVALID_INVITE_CODE"},
		{domain.ErrInviteCodeExpired, http.StatusBadRequest, "INVITE_CODE_EXPIRED"},
		{domain.ErrInviteCodeExhausted, http.StatusBadRequest, "INVITE_CODE_EXHAUSTED"},
		{domain.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{domain.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{domain.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{domain.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
		{domain.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrInviteNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrAccountLocked, http.StatusTooManyRequests, "ACCOUNT_LOCKED"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, body := renderError(t, fmt.Errorf("wrapped: %w", tc.err))
			if status != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, status)
			}
			if body.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, body.Code)
			}
			if body.Error != tc.err.Error() {
				t.Fatalf("expected sentinel message %q, got %q", tc.err.Error(), body.Error)
			}
		})
	}
}

func TestErrorHandler_ValidationExposesDetail(t *testing.T) {
	status, body := renderError(t, fmt.Errorf("%w: name is required", domain.ErrValidation))
	if status != http.StatusBadRequest || body.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}
	if !strings.Contains(body.Error, "name is required") {
		t.Fatalf("expected detail in message, got %q", body.Error)
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	status, body := renderError(t, echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"))
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
	if body.Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("unexpected code %q", body.Code)
	}
}

func TestErrorHandler_UnknownErrorIsOpaque(t *testing.T) {
	status, body := renderError(t, errors.New("pq: connection refused to 10.0.0.5"))
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if body.Error != "internal server error" || body.Code != "INTERNAL_ERROR" {
		t.Fatalf("internal detail leaked: %+v", body)
	}
}

func TestErrorHandler_CommittedResponseIsLeftAlone(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = c.String(http.StatusOK, "done")

	NewHTTPErrorHandler(zerolog.Nop())(domain.ErrForbidden, c)

	if rec.Code != http.StatusOK || rec.Body.String() != "done" {
		t.Fatalf("committed response was modified: %d %q", rec.Code, rec.Body.String())
	}
}
