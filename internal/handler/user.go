package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/service"
	"github.com/tastebase/tastebase/internal/store"
)

// UserHandler serves registration, login, and the admin user listing.
type UserHandler struct {
	auth   *service.AuthService
	store  *store.Store
	logger *slog.Logger
}

func NewUserHandler(auth *service.AuthService, st *store.Store, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: auth, store: st, logger: logger}
}

type credentialsRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role,omitempty"`
}

// authResponse is returned by both register and login: a bearer token, the
// caller's raw API key, and their role. This is the only place the raw key
// value crosses the wire.
type authResponse struct {
	Token  string     `json:"token"`
	APIKey string     `json:"api_key"`
	Role   model.Role `json:"role"`
}

// Register handles POST /api/users/register.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, key, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		h.logger.Error("register user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, APIKey: key.Key, Role: user.Role})
}

// Login handles POST /api/users/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	key, err := h.store.GetAPIKeyByUserID(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("load api key on login", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, APIKey: key.Key, Role: user.Role})
}

// ListAll handles GET /api/users/all (admin only).
func (h *UserHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}
