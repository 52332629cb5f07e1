package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/service"
	"github.com/tastebase/tastebase/internal/store"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the authenticated identity making the request.
type Principal struct {
	UserID   string
	Role     model.Role
	APIKeyID string // set when the API key lane authenticated the request
	Method   string // "api_key" or "bearer"
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == model.RoleAdmin
}

// Authenticator is one credential lane. Try inspects the request and returns
// a Principal when its credential authenticates, or (nil, nil) when the lane
// yields no usable credential so the gate can move on to the next lane. A
// non-nil error means an infrastructure failure (store down, not a bad
// credential) and aborts the request with a 500.
type Authenticator interface {
	Try(r *http.Request) (*Principal, error)
}

// UserSource loads user rows for credential lanes that need the owner's role.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// APIKeyLane authenticates via the X-API-Key header. An absent or unknown
// key is a soft failure: the gate falls through to the next lane rather than
// rejecting outright, so a stale key plus a valid bearer token still gets in.
type APIKeyLane struct {
	Auth   *service.AuthService
	Users  UserSource
	Logger *slog.Logger
}

func (l *APIKeyLane) Try(r *http.Request) (*Principal, error) {
	raw := r.Header.Get("X-API-Key")

	key, err := l.Auth.ResolveAPIKey(r.Context(), raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if raw != "" && l.Logger != nil {
				// Never log the full key value.
				l.Logger.Warn("unknown api key", "key_prefix", model.KeyPrefix(raw))
			}
			return nil, nil
		}
		return nil, err
	}

	user, err := l.Users.GetUser(r.Context(), key.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &Principal{
		UserID:   user.ID,
		Role:     user.Role,
		APIKeyID: key.ID,
		Method:   "api_key",
	}, nil
}

// BearerLane authenticates via an Authorization: Bearer token. A missing or
// invalid token is a soft failure; the gate produces the 401 if no other
// lane succeeds.
type BearerLane struct {
	Auth *service.AuthService
}

func (l *BearerLane) Try(r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil
	}

	claims, err := l.Auth.VerifyToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, nil
	}

	return &Principal{
		UserID: claims.UserID,
		Role:   model.Role(claims.Role),
		Method: "bearer",
	}, nil
}

// Authenticate returns an HTTP middleware that runs the given credential
// lanes in order and admits the request on the first success. The resolved
// Principal is attached to the request context before any handler runs. If
// every lane comes up empty the request is rejected with a 401; a lane
// infrastructure error becomes a 500, never a 401.
func Authenticate(lanes ...Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, lane := range lanes {
				principal, err := lane.Try(r)
				if err != nil {
					writeAuthError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				if principal != nil {
					ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
					if holder := holderFrom(ctx); holder != nil {
						holder.set(principal)
					}
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			writeAuthError(w, http.StatusUnauthorized, "Authentication required")
		})
	}
}

// RequireAdmin enforces the ADMIN role. It must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetPrincipal(r.Context()).IsAdmin() {
			writeAuthError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPrincipal extracts the authenticated principal from the context, or nil
// for an unauthenticated request.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Hand-built JSON keeps this package free of the handler helpers and the
	// body byte-exact: {"error":"..."}.
	w.Write([]byte(`{"error":"` + message + `"}`)) //nolint:errcheck
}
