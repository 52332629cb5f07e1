package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tastebase/tastebase/internal/server/middleware"
	"github.com/tastebase/tastebase/internal/service"
	"github.com/tastebase/tastebase/internal/store"
)

// UsageHandler serves the metering read side: per-user stats and the admin
// analytics report. These routes are deliberately outside the metered set so
// checking your usage never consumes it.
type UsageHandler struct {
	usage  *service.UsageService
	store  *store.Store
	logger *slog.Logger
}

func NewUsageHandler(usage *service.UsageService, st *store.Store, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, store: st, logger: logger}
}

// Stats handles GET /api/usage/stats.
func (h *UsageHandler) Stats(w http.ResponseWriter, r *http.Request) {
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
		h.logger.Error("load api key for stats", "error", err, "user_id", principal.UserID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	stats, err := h.usage.Stats(r.Context(), key.ID)
	if err != nil {
		h.logger.Error("usage stats", "error", err, "user_id", principal.UserID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Analytics handles GET /api/usage/analytics (admin only). The window is
// controlled by ?days=N, defaulting to 30.
func (h *UsageHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days := clampInt(queryInt(r, "days", 30), 1, 365)

	analytics, err := h.usage.Analytics(r.Context(), days)
	if err != nil {
		h.logger.Error("usage analytics", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}
