package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accounts/accounts-go/internal/middleware"
	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/service"
)

// AuthHandler handles HTTP requests for authentication and passwords.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// HandleRegister handles POST /api/v1/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.UserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, msgInvalidData)
		return
	}

	writeSuccess(w, "User registered", resp)
}

// HandleLogin handles POST /api/v1/auth/login requests. Every rejected
// login is reported the same way.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, service.MsgInvalidCredentials, nil)
			return
		}
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "Login successful", resp)
}

// HandleLogout handles POST /api/v1/auth/logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), user); err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "Logout successful", nil)
}

// HandlePasswordReset handles POST /api/v1/auth/password-reset requests.
// The token itself only travels through the notifier.
func (h *AuthHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.service.RequestPasswordReset(r.Context(), req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "Password reset link sent", nil)
}

// HandleConfirmPasswordReset handles
// POST /api/v1/auth/password-reset/confirm/{uidb64}/{token} requests.
func (h *AuthHandler) HandleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmPasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.ConfirmPasswordReset(r.Context(),
		chi.URLParam(r, "uidb64"),
		chi.URLParam(r, "token"),
		req.NewPassword,
	)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "Password has been reset", nil)
}

// HandleChangePassword handles POST /api/v1/auth/change-password requests.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), user, req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "Password changed", nil)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, middleware.MsgNotAuthenticated, nil)
	}
	return user, ok
}
