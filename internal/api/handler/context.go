package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// ctxIdentity returns the identity injected by the Authenticate middleware.
// Its absence means the route was mounted without the gate.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := domain.IdentityFromContext(c.Request().Context())
	if !ok || id.SubjectID == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return id, nil
}
