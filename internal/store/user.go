package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tastebase/tastebase/internal/model"
)

// CreateUser inserts a new user. The CreatedAt and UpdatedAt fields on user
// are populated before the insert; the ID must already be set.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const q = `INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :role, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// CreateUserWithKey inserts a user and their API key in one transaction, so
// the one-key-per-user invariant holds from the moment the account exists.
func (s *Store) CreateUserWithKey(ctx context.Context, user *model.User, key *model.APIKey) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	key.CreatedAt = now
	key.UpdatedAt = now
	key.UserID = user.ID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQ = `INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :role, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQ, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	keyQ := `INSERT INTO api_keys (id, ` + s.keyCol() + `, user_id, created_at, updated_at)
		VALUES (:id, :key, :user_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, keyQ, key); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	return tx.Commit()
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.GetContext(ctx, &user, s.rebind("SELECT * FROM users WHERE email = ?"), email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.GetContext(ctx, &user, s.rebind("SELECT * FROM users WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all registered users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// HasAdmin reports whether at least one ADMIN account exists. Used for
// first-run detection at server start.
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.rebind("SELECT COUNT(*) FROM users WHERE role = ?"), model.RoleAdmin); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}
