package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/handler/dto"
	"github.com/credittrack/credittrack/internal/service"
)

// AuthHandler handles HTTP requests for account operations.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req dto.CredentialsRequest
	decodeLenient(body, &req)

	token, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TokenResponse{AccessToken: token})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req dto.CredentialsRequest
	decodeLenient(body, &req)

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TokenResponse{AccessToken: token})
}

// Forgot handles POST /api/v1/auth/forgot.
func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req dto.ForgotPasswordRequest
	decodeLenient(body, &req)

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Msg: "Password reset email sent"})
}

// Reset handles POST /api/v1/auth/reset/{token}.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req dto.ResetPasswordRequest
	decodeLenient(body, &req)

	if err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Msg: "Password updated"})
}

// Profile handles GET /api/v1/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Profile(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileResponse{ID: user.ID, Email: user.Email})
}

// handleServiceError maps service errors to HTTP responses.
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email")
	case errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 6 characters")
	case errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "BAD_CREDENTIALS", "Bad credentials")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "Invalid token")
	case errors.Is(err, service.ErrTokenExpired):
		writeError(w, http.StatusBadRequest, "TOKEN_EXPIRED", "Link has expired")
	case errors.Is(err, service.ErrMailDeliveryFailed):
		writeError(w, http.StatusInternalServerError, "MAIL_DELIVERY_FAILED", "Could not send email")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
