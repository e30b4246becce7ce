package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// domainError maps a sentinel to its HTTP status and machine-readable code.
type domainError struct {
	target error
	status int
	code   string
	// expose renders err.Error() instead of the sentinel text so wrapped
	// validation details reach the client.
	expose bool
}

// Order matters: the first matching sentinel wins.
var domainErrors = []domainError{
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", true},
	{domain.ErrSelfModification, http.StatusBadRequest, "VALIDATION_ERROR", false},
	{domain.ErrInvalidRole, http.StatusBadRequest, "VALIDATION_ERROR", false},
	{domain.ErrInvalidInviteCode, http.StatusBadRequest, "INVALID_INVITE_CODE", false},
	{domain.ErrInviteCodeExpired, http.StatusBadRequest, "INVITE_CODE_EXPIRED", false},
	{domain.ErrInviteCodeExhausted, http.StatusBadRequest, "INVITE_CODE_EXHAUSTED", false},
	{domain.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN", false},
	{domain.ErrInviteCodeTaken, http.StatusConflict, "INVITE_CODE_TAKEN", false},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", false},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", false},
	{domain.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", false},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED", false},
	{domain.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", false},
	{domain.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE", false},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", false},
	{domain.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND", false},
	{domain.ErrInviteNotFound, http.StatusNotFound, "NOT_FOUND", false},
	{domain.ErrAccountLocked, http.StatusTooManyRequests, "ACCOUNT_LOCKED", false},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", false},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status and error code.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<CODE>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	for _, de := range domainErrors {
		if errors.Is(err, de.target) {
			msg := de.target.Error()
			if de.expose {
				msg = err.Error()
			}
			return de.status, errorResponse{Error: msg, Code: de.code}
		}
	}

	// Echo's own errors (404 from router, 405, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			log.Debug().Err(he.Internal).Str("path", c.Path()).Msg("echo error")
		}
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: statusCode(he.Code)}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
}

// statusCode derives a code from the status text, e.g. 405 → METHOD_NOT_ALLOWED.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
