package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tastebase/tastebase/internal/model"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  "Create and list accounts without going through the HTTP API. Useful for bootstrapping the first admin.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new account",
		Example: `  tastebase user create --email admin@example.com --role ADMIN
  tastebase user create --email chef@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(email, password, role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", "USER", "Role: USER or ADMIN")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runUserCreate(email, password, roleName string) error {
	if !validEmail(email) {
		return fmt.Errorf("invalid email address: %q", email)
	}
	role := model.Role(strings.ToUpper(roleName))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q (want USER or ADMIN)", roleName)
	}

	if password == "" {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	authSvc := newAuthService(st)
	user, key, err := authSvc.Register(context.Background(), email, password, role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created %s account %q\n", user.Role, user.Email)
	fmt.Printf("API key: %s\n", key.Key)
	fmt.Println("Store the key now; it is only shown in full here and on login.")
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No accounts. Use 'tastebase user create' to create one.")
		return nil
	}

	fmt.Printf("%-36s %-30s %-8s %s\n", "ID", "EMAIL", "ROLE", "CREATED")
	for _, u := range users {
		fmt.Printf("%-36s %-30s %-8s %s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
