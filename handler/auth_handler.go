package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go-task-api/common"
	"go-task-api/logger"
	"go-task-api/model"
	"go-task-api/service"
)

// IAuthService is the slice of the auth service the HTTP boundary needs.
type IAuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshTokenPlain string) (*service.TokenPair, error)
	Logout(ctx context.Context, userID int, refreshTokenPlain string) error
	LogoutAll(ctx context.Context, userID int) error
}

type AuthHandler struct {
	service IAuthService
}

func NewAuthHandler(service IAuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.RegisterRequest true "Registration payload"
// @Success      201 {object} model.User
// @Router       /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return common.NewAppError(http.StatusConflict, "Email already registered", nil)
		}
		return mapAuthError(err, "Could not register user")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
	return nil
}

// Login godoc
// @Summary      Authenticate with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.LoginRequest true "Login payload"
// @Success      200 {object} service.TokenPair
// @Router       /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err, "Could not log in")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pair)
	return nil
}

// Refresh godoc
// @Summary      Exchange a refresh token for a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.RefreshRequest true "Refresh payload"
// @Success      200 {object} service.TokenPair
// @Router       /api/token/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return mapAuthError(err, "Could not refresh token")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pair)
	return nil
}

// Logout godoc
// @Summary      Revoke the presented refresh token
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Success      204
// @Router       /api/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	// The body is optional: logout without a refresh token is a no-op.
	var req model.LogoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Logout(r.Context(), userID, req.RefreshToken); err != nil {
		return mapAuthError(err, "Could not log out")
	}

	logger.Log.WithField("user_id", userID).Info("Logout request completed")
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// LogoutAll godoc
// @Summary      Revoke every active session of the caller
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Router       /api/logout-all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		return mapAuthError(err, "Could not revoke sessions")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// mapAuthError translates service errors into transport responses. Invalid
// credentials and reuse detection produce byte-identical responses so a
// caller cannot tell whether a token ever existed or why it stopped working.
func mapAuthError(err error, fallback string) *common.AppError {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrReuseDetected):
		return common.NewAppError(http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, service.ErrInvalidInput):
		return common.NewAppError(http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, service.ErrStoreUnavailable):
		return common.NewAppError(http.StatusServiceUnavailable, "Service temporarily unavailable", err)
	default:
		return common.NewAppError(http.StatusInternalServerError, fallback, err)
	}
}
