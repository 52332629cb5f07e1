package model

import "time"

// APIKey is the opaque bearer secret that authenticates machine clients as
// an alternative to a signed token. Each user owns exactly one key; the key
// value is only ever replaced in place by regeneration, never deleted on its
// own. The raw value is a credential and must not appear in logs; use
// KeyPrefix when logging.
type APIKey struct {
	ID        string    `json:"id" db:"id"`
	Key       string    `json:"-" db:"key"` // opaque unique token, treat as a secret
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// KeyPrefix returns at most the first 8 characters of a raw key, safe for
// log output.
func KeyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
