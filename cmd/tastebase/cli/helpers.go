package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/tastebase/tastebase/internal/service"
	"github.com/tastebase/tastebase/internal/store"
)

// resolveDataDir returns the data directory from the --data-dir flag, the
// TASTEBASE_DATA_DIR env var, or ~/.tastebase as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("TASTEBASE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.tastebase"
}

// openStore opens the configured store backend. The sqlite default lives in
// the data directory.
func openStore() (*store.Store, error) {
	driver := viper.GetString("store.driver")
	dsn := viper.GetString("store.dsn")
	if driver == "" || driver == store.DriverSQLite {
		if dsn == "" {
			dsn = resolveDataDir()
		}
		return store.Open(store.DriverSQLite, dsn)
	}
	return store.Open(driver, dsn)
}

// newAuthService builds an AuthService from the effective configuration.
func newAuthService(st *store.Store) *service.AuthService {
	secret := viper.GetString("auth.jwt_secret")
	if secret == "" {
		secret = "tastebase-dev-secret-change-me"
	}
	expiry := 24 * time.Hour
	if raw := viper.GetString("auth.jwt_expiry"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			expiry = d
		}
	}
	return service.NewAuthService(st, secret, expiry)
}

// promptPassword reads and confirms a password without echo.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

func validEmail(email string) bool {
	return strings.Contains(email, "@")
}
