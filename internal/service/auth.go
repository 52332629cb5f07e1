package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

// AuthService owns account lifecycle and both credential kinds: opaque API
// keys resolved against the store, and short-lived HS256 bearer tokens.
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(st *store.Store, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a user account with a bcrypt-hashed password and a fresh
// API key, atomically. Duplicate emails return ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, email, password string, role model.Role) (*model.User, *model.APIKey, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !role.Valid() {
		role = model.RoleUser
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	key := &model.APIKey{
		ID:  uuid.NewString(),
		Key: NewAPIKeyValue(),
	}
	if err := s.store.CreateUserWithKey(ctx, user, key); err != nil {
		// The unique email constraint can still fire under a racing register.
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}
	return user, key, nil
}

// Login verifies an email+password pair and returns the user together with a
// signed bearer token. Unknown emails and wrong passwords are both
// ErrInvalidCredentials, deliberately indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ResolveAPIKey maps a raw key value to its key row. Empty values are
// rejected up front without touching the store. Missing keys are
// store.ErrNotFound; any other error is an infrastructure failure the caller
// must not treat as a bad credential.
func (s *AuthService) ResolveAPIKey(ctx context.Context, rawKey string) (*model.APIKey, error) {
	if rawKey == "" {
		return nil, store.ErrNotFound
	}
	return s.store.GetAPIKeyByKey(ctx, rawKey)
}

// RotateAPIKey issues a new key value for the user's existing key row.
func (s *AuthService) RotateAPIKey(ctx context.Context, userID string) (*model.APIKey, error) {
	return s.store.RotateAPIKey(ctx, userID, NewAPIKeyValue())
}

// IssueToken signs a bearer token for the user, carrying their ID and role.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Issuer:    "tastebase",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a bearer token. Anything wrong with the
// token itself (signature, expiry, algorithm) is ErrInvalidCredentials.
func (s *AuthService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// TokenClaims is the bearer token payload.
type TokenClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewAPIKeyValue generates a fresh opaque key value.
func NewAPIKeyValue() string {
	return "tb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
