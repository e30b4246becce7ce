package handler

import (
	"strings"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// messageResponse is returned by endpoints with no payload of their own.
type messageResponse struct {
	Message string `json:"message"`
}

// --- Request types ---

type registerRequest struct {
	Email      string `json:"email"      validate:"required,email,max=255"`
	Password   string `json:"password"   validate:"required,min=8,max=255,password"`
	Name       string `json:"name"       validate:"required,min=2,max=255,personname"`
	InviteCode string `json:"inviteCode" validate:"required,max=64"`
}

// sanitize trims and lower-cases the email and trims the name and code.
func (r *registerRequest) sanitize() {
	r.Email = domain.NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.InviteCode = strings.TrimSpace(r.InviteCode)
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginRequest) sanitize() {
	r.Email = domain.NormalizeEmail(r.Email)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// --- Response types ---

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type authResponse struct {
	User   domain.PublicAccount `json:"user"`
	Tokens tokensResponse       `json:"tokens"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type meUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Active        bool   `json:"is_active"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     string `json:"created_at"`
}

type meResponse struct {
	User meUser `json:"user"`
}

// --- Service result → Response ---

func toAuthResponse(r *ports.AuthResult) authResponse {
	return authResponse{
		User: r.Account,
		Tokens: tokensResponse{
			AccessToken:  r.Tokens.AccessToken,
			RefreshToken: r.Tokens.RefreshToken,
			ExpiresIn:    int64(r.Tokens.ExpiresIn.Seconds()),
		},
	}
}

func toMeResponse(a *domain.Account) meResponse {
	return meResponse{User: meUser{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Role:          a.Role.String(),
		Active:        a.Active,
		EmailVerified: a.EmailVerified,
		CreatedAt:     formatTime(a.CreatedAt),
	}}
}
