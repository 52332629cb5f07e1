package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/server/middleware"
	"github.com/tastebase/tastebase/internal/service"
	"github.com/tastebase/tastebase/internal/store"
)

// APIKeyHandler serves key regeneration and inspection. All routes sit
// behind the bearer-only auth gate: a key cannot be used to mint its own
// replacement.
type APIKeyHandler struct {
	auth   *service.AuthService
	store  *store.Store
	logger *slog.Logger
}

func NewAPIKeyHandler(auth *service.AuthService, st *store.Store, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{auth: auth, store: st, logger: logger}
}

type apiKeyResponse struct {
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Regenerate handles POST /api/apikey/regenerate. The key value is replaced
// in place; the row and its usage history survive.
func (h *APIKeyHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	key, err := h.auth.RotateAPIKey(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		h.logger.Error("rotate api key", "error", err, "user_id", principal.UserID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("api key regenerated", "user_id", principal.UserID, "key_prefix", model.KeyPrefix(key.Key))
	writeJSON(w, http.StatusOK, apiKeyResponse{
		APIKey:    key.Key,
		CreatedAt: key.CreatedAt,
		UpdatedAt: key.UpdatedAt,
	})
}

// Current handles GET /api/apikey/current.
func (h *APIKeyHandler) Current(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	key, err := h.store.GetAPIKeyByUserID(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		h.logger.Error("get api key", "error", err, "user_id", principal.UserID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, apiKeyResponse{
		APIKey:    key.Key,
		CreatedAt: key.CreatedAt,
		UpdatedAt: key.UpdatedAt,
	})
}

type apiKeyListEntry struct {
	ID        string    `json:"id"`
	KeyPrefix string    `json:"key_prefix"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListAll handles GET /api/apikey/all (admin only). Key values are shown as
// prefixes only; the full secret never appears in listings.
func (h *APIKeyHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		h.logger.Error("list api keys", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	entries := make([]apiKeyListEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, apiKeyListEntry{
			ID:        k.ID,
			KeyPrefix: model.KeyPrefix(k.Key),
			UserID:    k.UserID,
			Email:     k.Email,
			CreatedAt: k.CreatedAt,
			UpdatedAt: k.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_keys": entries,
		"count":    len(entries),
	})
}
