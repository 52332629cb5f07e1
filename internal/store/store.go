package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store persists users, API keys, recipes, and usage records behind a single
// relational database handle. The default backend is an embedded SQLite file;
// postgres and mysql are supported through their sqlx drivers. The store is
// opened once at process start and closed at shutdown; components receive
// the handle by injection rather than through package-level state.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured backend and runs migrations. Supported
// drivers are "sqlite" (default), "postgres", and "mysql". For sqlite the DSN
// is a data directory; pass empty string for an in-memory database.
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	var db *sqlx.DB
	var err error

	switch driver {
	case DriverSQLite:
		db, err = openSQLite(dsn)
	case DriverPostgres:
		db, err = sqlx.Connect("pgx", dsn)
	case DriverMySQL:
		db, err = sqlx.Connect("mysql", dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

func openSQLite(dataDir string) (*sqlx.DB, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL&_time_format=sqlite"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "tastebase.db") + "?_journal_mode=WAL&_busy_timeout=5000&_time_format=sqlite"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite). The usage table relies
	// on them to reject orphaned api_key_id references.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind converts ?-style placeholders to the driver's bind syntax.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// keyCol returns the quoted name of the api_keys.key column. KEY is a
// reserved word in MySQL, so the quoting style depends on the driver.
func (s *Store) keyCol() string {
	if s.driver == DriverMySQL {
		return "`key`"
	}
	return `"key"`
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value for a settings key, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.rebind("SELECT value FROM settings WHERE name = ?"), name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting inserts or replaces a settings key.
func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	q := "INSERT INTO settings (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value"
	if s.driver == DriverMySQL {
		q = "INSERT INTO settings (name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(q), name, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
