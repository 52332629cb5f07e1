package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tastebase/tastebase/internal/model"
)

// GetAPIKeyByKey performs an exact-match lookup of an API key by its opaque
// value. Missing keys are ErrNotFound; anything else is an infrastructure
// failure and is reported as such.
func (s *Store) GetAPIKeyByKey(ctx context.Context, rawKey string) (*model.APIKey, error) {
	var key model.APIKey
	q := "SELECT * FROM api_keys WHERE " + s.keyCol() + " = ?"
	if err := s.db.GetContext(ctx, &key, s.rebind(q), rawKey); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// GetAPIKeyByUserID returns the API key owned by a user.
func (s *Store) GetAPIKeyByUserID(ctx context.Context, userID string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.rebind("SELECT * FROM api_keys WHERE user_id = ?"), userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by user: %w", err)
	}
	return &key, nil
}

// RotateAPIKey replaces the key value for a user's existing key row in place,
// preserving the row identity and ownership. Returns the updated key, or
// ErrNotFound if the user has no key row. Uniqueness of the new value is
// enforced by the store's unique constraint, which also settles concurrent
// rotations: both writers succeed in turn, each with a distinct value, and
// exactly one row remains.
func (s *Store) RotateAPIKey(ctx context.Context, userID, newKey string) (*model.APIKey, error) {
	now := time.Now().UTC()
	q := "UPDATE api_keys SET " + s.keyCol() + " = ?, updated_at = ? WHERE user_id = ?"
	result, err := s.db.ExecContext(ctx, s.rebind(q), newKey, now, userID)
	if err != nil {
		return nil, fmt.Errorf("rotate api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rotate api key rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetAPIKeyByUserID(ctx, userID)
}

// APIKeyWithOwner pairs an API key with its owner's email for admin listings.
type APIKeyWithOwner struct {
	model.APIKey
	Email string `json:"email" db:"email"`
}

// ListAPIKeys returns all API keys joined with their owners' emails.
func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKeyWithOwner, error) {
	var keys []APIKeyWithOwner
	q := `SELECT k.id, k.` + s.keyCol() + ` AS ` + s.keyCol() + `, k.user_id, k.created_at, k.updated_at, u.email
		FROM api_keys k JOIN users u ON u.id = k.user_id
		ORDER BY k.created_at`
	if err := s.db.SelectContext(ctx, &keys, q); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
