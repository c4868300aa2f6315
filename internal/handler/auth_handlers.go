package handler

import (
	"net/http"

	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/middleware"
	"github.com/mtlprog/teamtask/internal/service"
)

// handleRegister creates a plain user account.
// @Summary Register
// @Description Creates a user-role account and returns an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	creds, err := h.authService.Register(r.Context(), service.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAuthResponse(creds))
}

// handleLogin exchanges credentials for an access token.
// @Summary Login
// @Description Returns an access token for valid credentials
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	creds, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAuthResponse(creds))
}

// handleMe returns the caller's identity.
// @Summary Current identity
// @Tags auth
// @Produce json
// @Success 200 {object} dto.IdentityResponse
// @Failure 401 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /me [get]
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	respondJSON(w, http.StatusOK, dto.ToIdentityResponse(identity))
}

// handleListUsers lists the users the caller may assign tasks to.
// @Summary List assignable users
// @Description Super-admins get everyone, managers get themselves and their direct reports, users get themselves.
// @Tags users
// @Produce json
// @Success 200 {object} dto.UsersListResponse
// @Security BearerAuth
// @Router /users [get]
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	users, err := h.taskService.AssignableUsers(ctx, identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToUsersListResponse(users))
}

func toAuthResponse(creds *service.Credentials) dto.AuthResponse {
	return dto.AuthResponse{
		User:      dto.ToUserResponse(creds.User),
		Token:     creds.Token,
		TokenType: "Bearer",
		ExpiresIn: creds.ExpiresIn,
	}
}
