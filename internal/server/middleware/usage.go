package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/store"
)

type contextKeyHolder string

const principalHolderKey contextKeyHolder = "principal_holder"

// principalHolder lets Meter, which sits outside the auth gate, observe the
// principal the gate resolves further down the chain. Meter seeds the context
// with an empty holder; Authenticate fills it in.
type principalHolder struct {
	mu sync.Mutex
	p  *Principal
}

func (h *principalHolder) set(p *Principal) {
	h.mu.Lock()
	h.p = p
	h.mu.Unlock()
}

func (h *principalHolder) get() *Principal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.p
}

func holderFrom(ctx context.Context) *principalHolder {
	if h, ok := ctx.Value(principalHolderKey).(*principalHolder); ok {
		return h
	}
	return nil
}

// UsageStore is the slice of the store Meter needs: appending records and
// resolving key attribution fallbacks.
type UsageStore interface {
	CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error
	GetAPIKeyByKey(ctx context.Context, rawKey string) (*model.APIKey, error)
	GetAPIKeyByUserID(ctx context.Context, userID string) (*model.APIKey, error)
}

// meteredPrefixes are the route prefixes whose traffic is recorded. The
// usage endpoints themselves are excluded so reading your stats never
// inflates them.
var meteredPrefixes = []string{"/api/recipes", "/api/users", "/api/apikey"}

func metered(path string) bool {
	if strings.HasPrefix(path, "/api/usage") {
		return false
	}
	for _, p := range meteredPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Meter returns an HTTP middleware that records one usage row per completed
// request on metered routes, attributed to the caller's API key. Recording
// happens in a detached goroutine after the response is written; failures
// are logged and swallowed so metering can never affect the response.
//
// Attribution tries, in order: the API key the auth gate resolved, the
// X-API-Key header re-resolved against the store, and finally the bearer
// subject's owned key. A request none of those can attribute is simply not
// recorded; the usage table's foreign key forbids orphan rows.
func Meter(st UsageStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !metered(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			holder := &principalHolder{}
			ctx := context.WithValue(r.Context(), principalHolderKey, holder)

			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(ctx))
			elapsed := time.Since(start)

			rec := &model.UsageRecord{
				Endpoint:       r.URL.Path,
				Method:         r.Method,
				StatusCode:     ww.status,
				ResponseTimeMs: roundMillis(elapsed),
			}
			if ua := r.UserAgent(); ua != "" {
				rec.UserAgent = &ua
			}
			if ip := clientIP(r); ip != "" {
				rec.IPAddress = &ip
			}

			rawKey := r.Header.Get("X-API-Key")
			principal := holder.get()

			go func() {
				defer func() {
					if rv := recover(); rv != nil {
						logger.Error("usage recorder panic", "panic", rv)
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				keyID, ok := attributeKey(ctx, st, logger, principal, rawKey)
				if !ok {
					return
				}
				rec.APIKeyID = keyID
				if err := st.CreateUsageRecord(ctx, rec); err != nil {
					logger.Error("record usage", "error", err, "endpoint", rec.Endpoint)
				}
			}()
		})
	}
}

// roundMillis converts a duration to whole milliseconds, rounding to the
// nearest rather than truncating.
func roundMillis(d time.Duration) int64 {
	return int64(d.Round(time.Millisecond) / time.Millisecond)
}

func attributeKey(ctx context.Context, st UsageStore, logger *slog.Logger, principal *Principal, rawKey string) (string, bool) {
	if principal != nil && principal.APIKeyID != "" {
		return principal.APIKeyID, true
	}
	if rawKey != "" {
		key, err := st.GetAPIKeyByKey(ctx, rawKey)
		switch {
		case err == nil:
			return key.ID, true
		case !errors.Is(err, store.ErrNotFound):
			logger.Error("attribute usage by header", "error", err, "key_prefix", model.KeyPrefix(rawKey))
			return "", false
		}
	}
	if principal != nil && principal.UserID != "" {
		key, err := st.GetAPIKeyByUserID(ctx, principal.UserID)
		switch {
		case err == nil:
			return key.ID, true
		case !errors.Is(err, store.ErrNotFound):
			logger.Error("attribute usage by subject", "error", err, "user_id", principal.UserID)
		}
	}
	return "", false
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware has already rewritten RemoteAddr from the
	// forwarding headers when they are present.
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host := addr[:i]
		if host != "" {
			return strings.Trim(host, "[]")
		}
	}
	return addr
}
