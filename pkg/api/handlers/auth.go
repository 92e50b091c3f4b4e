package handlers

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/api/middleware"
	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

// loginLockout is how many recent failures from one address block
// further attempts. Shared with the gateway's identify path through
// the hub's failure counters.
const loginLockout = 10

// AuthHandler implements registration, login, logout, and MFA status.
type AuthHandler struct {
	store store.Store
	auth  *auth.Service
	hub   *gateway.Hub
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(st store.Store, svc *auth.Service, hub *gateway.Hub) *AuthHandler {
	return &AuthHandler{store: st, auth: svc, hub: hub}
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a local account and returns a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		respond.BadRequest(w, "INVALID_USERNAME", "username is required")
		return
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		respond.BadRequest(w, "INVALID_PASSWORD", err.Error())
		return
	}

	user := &models.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Active:       true,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			respond.Conflict(w, "USERNAME_TAKEN", "username is already registered")
			return
		}
		respond.Internal(w, "failed to create user")
		return
	}

	token, err := h.auth.Mint(r.Context(), user.ID, auth.PurposeSession)
	if err != nil {
		respond.Internal(w, "failed to create session")
		return
	}

	logger.Info("user registered", logger.UserID(user.ID), logger.Username(user.Username))
	respond.WriteJSON(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a username/password pair. Failures burn the same
// hashing cost whether or not the user exists, and repeated failures
// from one address trip the shared lockout.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ip := clientHost(r)
	if h.hub.AuthFailures(ip) >= loginLockout {
		respond.WriteError(w, http.StatusTooManyRequests, "AUTH_RATE_LIMITED", "too many failed attempts")
		return
	}

	user, err := h.store.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		h.hub.RecordAuthFailure(ip)
		respond.Unauthorized(w, "INVALID_CREDENTIALS", "invalid username or password")
		return
	}
	if !user.Active {
		respond.Unauthorized(w, "ACCOUNT_DISABLED", "account is deactivated")
		return
	}

	token, err := h.auth.Mint(r.Context(), user.ID, auth.PurposeSession)
	if err != nil {
		respond.Internal(w, "failed to create session")
		return
	}
	_ = h.store.UpdateLastLogin(r.Context(), user.ID, time.Now())

	respond.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

// Logout revokes the presented token. Idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.BearerToken(r)
	if !ok {
		respond.Unauthorized(w, "MISSING_TOKEN", "authorization required")
		return
	}
	if err := h.auth.Revoke(r.Context(), raw); err != nil {
		respond.Internal(w, "failed to revoke session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MFAStatus reports which second factors the user has enrolled.
func (h *AuthHandler) MFAStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	totp, webauthn, err := h.store.MFAStatus(r.Context(), id.User.ID)
	if err != nil {
		respond.Internal(w, "failed to load MFA status")
		return
	}
	left, err := h.store.CountUnusedRecoveryCodes(r.Context(), id.User.ID)
	if err != nil {
		respond.Internal(w, "failed to count recovery codes")
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"totp_enabled":        totp,
		"webauthn_enabled":    webauthn,
		"recovery_codes_left": left,
	})
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
