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

func newSeedCmd() *cobra.Command {
	var (
		email string
		keep  bool
	)

	cmd := &cobra.Command{
		Use:   "seed <recipes.json>",
		Short: "Load a recipe catalog from a JSON file",
		Long: `Replace the recipe catalog with the contents of a JSON file. The file may be
a bare array of recipes or an object with a "recipes" array. Seeded recipes
are attributed to the account given with --email.`,
		Example: `  tastebase seed recipes.json --email admin@example.com
  tastebase seed recipes.json --email admin@example.com --keep`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(args[0], email, keep)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account to attribute the recipes to (required)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep existing recipes instead of clearing the catalog first")
	cmd.MarkFlagRequired("email")

	return cmd
}

const seedBatchSize = 1000

func runSeed(path, email string, keep bool) error {
	recipes, err := readSeedFile(path)
	if err != nil {
		return err
	}
	if len(recipes) == 0 {
		return fmt.Errorf("no recipes in %s", path)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no account with email %q (create one with 'tastebase user create')", email)
		}
		return err
	}

	for i := range recipes {
		recipes[i].ID = 0
		recipes[i].UserID = user.ID
	}

	var deleted int64
	if !keep {
		deleted, err = st.DeleteAllRecipes(ctx)
		if err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
	}

	var inserted int64
	for start := 0; start < len(recipes); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(recipes) {
			end = len(recipes)
		}
		n, err := st.CreateRecipes(ctx, recipes[start:end])
		if err != nil {
			return fmt.Errorf("insert batch starting at %d: %w", start, err)
		}
		inserted += n
		fmt.Printf("  inserted %d/%d\n", inserted, len(recipes))
	}

	if deleted > 0 {
		fmt.Printf("Cleared %d existing recipes.\n", deleted)
	}
	fmt.Printf("Seeded %d recipes from %s.\n", inserted, path)
	return nil
}

// readSeedFile accepts either a bare JSON array of recipes or an object
// wrapping them in a "recipes" field, matching the seed endpoint's payload.
func readSeedFile(path string) ([]model.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var recipes []model.Recipe
	if err := json.Unmarshal(data, &recipes); err == nil {
		return recipes, nil
	}

	var wrapped struct {
		Recipes []model.Recipe `json:"recipes"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return wrapped.Recipes, nil
}
