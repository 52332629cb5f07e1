package store

import (
	"fmt"
	"strings"
)

// dialect holds the handful of DDL fragments that differ between backends.
type dialect struct {
	autoID    string // auto-incrementing integer primary key
	timestamp string // timestamp column type
}

func dialectFor(driver string) dialect {
	switch driver {
	case DriverPostgres:
		return dialect{autoID: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ"}
	case DriverMySQL:
		return dialect{autoID: "BIGINT PRIMARY KEY AUTO_INCREMENT", timestamp: "DATETIME"}
	default:
		return dialect{autoID: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "DATETIME"}
	}
}

func (s *Store) migrate() error {
	d := dialectFor(s.driver)

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'USER',
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,

		// Exactly one key per user, keys globally unique. Regeneration
		// replaces the key value in the same row; the unique constraint on
		// user_id is what keeps the 1:1 invariant under concurrent writes.
		`CREATE TABLE IF NOT EXISTS api_keys (
			id VARCHAR(36) PRIMARY KEY,
			` + "`key`" + ` VARCHAR(64) UNIQUE NOT NULL,
			user_id VARCHAR(36) UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS recipes (
			id {{auto}},
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			cuisine VARCHAR(128) NOT NULL,
			image TEXT NOT NULL,
			source_url TEXT NOT NULL,
			chef_name VARCHAR(255) NOT NULL,
			preparation_time VARCHAR(64) NOT NULL,
			cooking_time VARCHAR(64) NOT NULL,
			serves VARCHAR(64) NOT NULL,
			ingredients_desc_json TEXT NOT NULL,
			ingredients_json TEXT NOT NULL,
			method_json TEXT NOT NULL,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,

		// Append-only usage log. The FK must resolve at insert time;
		// unattributable requests are never written here.
		`CREATE TABLE IF NOT EXISTS api_usage (
			id {{auto}},
			api_key_id VARCHAR(36) NOT NULL REFERENCES api_keys(id),
			endpoint VARCHAR(512) NOT NULL,
			method VARCHAR(16) NOT NULL,
			status_code INTEGER NOT NULL,
			response_time_ms BIGINT NOT NULL,
			user_agent VARCHAR(512),
			ip_address VARCHAR(64),
			created_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			name VARCHAR(128) PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_api_keys_key ON api_keys(` + "`key`" + `)`,
		`CREATE INDEX IF NOT EXISTS idx_api_usage_key_created ON api_usage(api_key_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_recipes_cuisine ON recipes(cuisine)`,
	}

	for _, m := range migrations {
		m = strings.ReplaceAll(m, "{{auto}}", d.autoID)
		m = strings.ReplaceAll(m, "{{ts}}", d.timestamp)
		if s.driver != DriverMySQL {
			m = strings.ReplaceAll(m, "`", `"`)
		}
		if _, err := s.db.Exec(m); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; treat duplicates as a
			// no-op so migrations stay idempotent.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
