package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Inspect and regenerate the API keys that authenticate catalog requests.",
	}

	cmd.AddCommand(newKeyShowCmd())
	cmd.AddCommand(newKeyRegenerateCmd())
	cmd.AddCommand(newKeyListCmd())

	return cmd
}

// ---------- key show ----------

func newKeyShowCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's API key",
		Example: `  tastebase key show --email chef@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyShow(email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runKeyShow(email string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no account with email %q", email)
		}
		return err
	}

	key, err := st.GetAPIKeyByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("account %q has no API key", email)
		}
		return err
	}

	fmt.Printf("API key: %s\n", key.Key)
	fmt.Printf("  created: %s\n", key.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  updated: %s\n", key.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// ---------- key regenerate ----------

func newKeyRegenerateCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:     "regenerate",
		Aliases: []string{"rotate"},
		Short:   "Replace a user's API key value in place",
		Long:    "Generate a fresh key value for an account. The old value stops working immediately; usage history is preserved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRegenerate(email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runKeyRegenerate(email string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no account with email %q", email)
		}
		return err
	}

	authSvc := newAuthService(st)
	key, err := authSvc.RotateAPIKey(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("regenerate key: %w", err)
	}

	fmt.Printf("New API key for %q: %s\n", email, key.Key)
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys with their owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	type keyRow struct {
		ID        string `json:"id"`
		KeyPrefix string `json:"key_prefix"`
		Email     string `json:"email"`
		Created   string `json:"created"`
	}
	rows := make([]keyRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, keyRow{
			ID:        k.ID,
			KeyPrefix: model.KeyPrefix(k.Key),
			Email:     k.Email,
			Created:   k.CreatedAt.Format("2006-01-02"),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys. Keys are issued at account creation.")
		return nil
	}

	fmt.Printf("%-36s %-10s %-30s %s\n", "ID", "PREFIX", "OWNER", "CREATED")
	for _, r := range rows {
		fmt.Printf("%-36s %-10s %-30s %s\n", r.ID, r.KeyPrefix, r.Email, r.Created)
	}
	return nil
}
