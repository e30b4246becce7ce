package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// AdminHandler handles the administrator-only endpoints.
type AdminHandler struct {
	service ports.AdminService
	now     func() time.Time
}

func NewAdminHandler(service ports.AdminService) *AdminHandler {
	return &AdminHandler{service: service, now: time.Now}
}

// bindQuery binds and validates query parameters into dst.
func bindQuery(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, dst); err != nil {
		return fmt.Errorf("%w: invalid query parameters", domain.ErrValidation)
	}
	return c.Validate(dst)
}

// ListUsers handles GET /admin/users.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Page size (default 10, max 100)"
// @Param        search  query     string  false  "Substring of name or email"
// @Param        role    query     string  false  "Role filter (user, admin)"
// @Success      200     {object}  listAccountsResponse
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	var q listAccountsQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	page, err := h.service.ListAccounts(c.Request().Context(), ports.ListAccountsInput{
		Search: q.Search,
		Role:   q.Role,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		return err
	}

	users := make([]accountSummary, 0, len(page.Items))
	for _, a := range page.Items {
		users = append(users, toAccountSummary(a))
	}
	return c.JSON(http.StatusOK, listAccountsResponse{Users: users, Pagination: toPagination(page.Pagination)})
}

// GetUser handles GET /admin/users/:id.
//
// @Summary      Get a user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  accountResponse
// @Failure      404  {object}  errorResponse
// @Router       /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	account, err := h.service.GetAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accountResponse{User: toAccountDetail(account)})
}

// UpdateUser handles PATCH /admin/users/:id.
//
// @Summary      Update a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Account id"
// @Param        body  body      updateAccountRequest  true  "Fields to change"
// @Success      200   {object}  accountResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /admin/users/{id} [patch]
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.service.UpdateAccount(c.Request().Context(), ports.UpdateAccountInput{
		ActorID:   actor.SubjectID,
		TargetID:  c.Param("id"),
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		Active:    req.Active,
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accountResponse{User: toAccountDetail(account)})
}

// DeactivateUser handles DELETE /admin/users/:id. The account is kept and
// marked inactive.
//
// @Summary      Deactivate a user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /admin/users/{id} [delete]
func (h *AdminHandler) DeactivateUser(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.DeactivateAccount(c.Request().Context(), actor.SubjectID, c.Param("id"), c.RealIP()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "user deactivated"})
}

// CreateInvite handles POST /admin/invite-codes.
//
// @Summary      Create an invite code
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createInviteRequest  false  "Invite parameters"
// @Success      201   {object}  inviteResponse
// @Failure      400   {object}  errorResponse
// @Router       /admin/invite-codes [post]
func (h *AdminHandler) CreateInvite(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createInviteRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	invite, err := h.service.CreateInvite(c.Request().Context(), ports.CreateInviteInput{
		ActorID:       actor.SubjectID,
		MaxUses:       req.MaxUses,
		ExpiresInDays: req.ExpiresInDays,
		NeverExpires:  req.NeverExpires,
		IPAddress:     c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inviteResponse{InviteCode: toInviteItem(invite, "", h.now())})
}

// ListInvites handles GET /admin/invite-codes.
//
// @Summary      List invite codes
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listInvitesResponse
// @Router       /admin/invite-codes [get]
func (h *AdminHandler) ListInvites(c echo.Context) error {
	items, err := h.service.ListInvites(c.Request().Context())
	if err != nil {
		return err
	}

	now := h.now()
	codes := make([]inviteResponseItem, 0, len(items))
	for i := range items {
		codes = append(codes, toInviteItem(&items[i].InviteCode, items[i].CreatorName, now))
	}
	return c.JSON(http.StatusOK, listInvitesResponse{InviteCodes: codes})
}

// DeactivateInvite handles PATCH /admin/invite-codes/:id/deactivate.
//
// @Summary      Deactivate an invite code
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invite code id"
// @Success      200  {object}  inviteResponse
// @Failure      404  {object}  errorResponse
// @Router       /admin/invite-codes/{id}/deactivate [patch]
func (h *AdminHandler) DeactivateInvite(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	invite, err := h.service.DeactivateInvite(c.Request().Context(), actor.SubjectID, c.Param("id"), c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inviteResponse{InviteCode: toInviteItem(invite, "", h.now())})
}

// Stats handles GET /admin/stats.
//
// @Summary      Dashboard statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  statsResponse
// @Router       /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toStatsResponse(stats))
}

// ActivityLogs handles GET /admin/activity-logs.
//
// @Summary      Activity log
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Page size (default 50, max 100)"
// @Success      200    {object}  activityLogsResponse
// @Router       /admin/activity-logs [get]
func (h *AdminHandler) ActivityLogs(c echo.Context) error {
	var q pageQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	page, err := h.service.ActivityLogs(c.Request().Context(), q.Page, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activityLogsResponse{Logs: toActivityItems(page.Items), Pagination: toPagination(page.Pagination)})
}
