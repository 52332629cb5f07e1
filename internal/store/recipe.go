package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tastebase/tastebase/internal/model"
)

// recipeRow is a flat struct that maps 1:1 to the recipes table columns.
// The list-valued fields of model.Recipe are stored as JSON text columns, so
// they go through this row type for sqlx scanning.
type recipeRow struct {
	ID                  int64     `db:"id"`
	Title               string    `db:"title"`
	Description         string    `db:"description"`
	Cuisine             string    `db:"cuisine"`
	Image               string    `db:"image"`
	SourceURL           string    `db:"source_url"`
	ChefName            string    `db:"chef_name"`
	PreparationTime     string    `db:"preparation_time"`
	CookingTime         string    `db:"cooking_time"`
	Serves              string    `db:"serves"`
	IngredientsDescJSON string    `db:"ingredients_desc_json"`
	IngredientsJSON     string    `db:"ingredients_json"`
	MethodJSON          string    `db:"method_json"`
	UserID              string    `db:"user_id"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func recipeRowFromModel(r *model.Recipe) (recipeRow, error) {
	ingredientsDesc, err := marshalList(r.IngredientsDesc)
	if err != nil {
		return recipeRow{}, err
	}
	ingredients, err := marshalList(r.Ingredients)
	if err != nil {
		return recipeRow{}, err
	}
	method, err := marshalList(r.Method)
	if err != nil {
		return recipeRow{}, err
	}
	return recipeRow{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		Cuisine:             r.Cuisine,
		Image:               r.Image,
		SourceURL:           r.SourceURL,
		ChefName:            r.ChefName,
		PreparationTime:     r.PreparationTime,
		CookingTime:         r.CookingTime,
		Serves:              r.Serves,
		IngredientsDescJSON: ingredientsDesc,
		IngredientsJSON:     ingredients,
		MethodJSON:          method,
		UserID:              r.UserID,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}, nil
}

func (r recipeRow) toModel() (model.Recipe, error) {
	ingredientsDesc, err := unmarshalList(r.IngredientsDescJSON)
	if err != nil {
		return model.Recipe{}, err
	}
	ingredients, err := unmarshalList(r.IngredientsJSON)
	if err != nil {
		return model.Recipe{}, err
	}
	method, err := unmarshalList(r.MethodJSON)
	if err != nil {
		return model.Recipe{}, err
	}
	return model.Recipe{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Cuisine:         r.Cuisine,
		Image:           r.Image,
		SourceURL:       r.SourceURL,
		ChefName:        r.ChefName,
		PreparationTime: r.PreparationTime,
		CookingTime:     r.CookingTime,
		Serves:          r.Serves,
		IngredientsDesc: ingredientsDesc,
		Ingredients:     ingredients,
		Method:          method,
		UserID:          r.UserID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return values, nil
}

const recipeInsertQ = `INSERT INTO recipes
	(title, description, cuisine, image, source_url, chef_name,
	 preparation_time, cooking_time, serves,
	 ingredients_desc_json, ingredients_json, method_json,
	 user_id, created_at, updated_at)
	VALUES
	(:title, :description, :cuisine, :image, :source_url, :chef_name,
	 :preparation_time, :cooking_time, :serves,
	 :ingredients_desc_json, :ingredients_json, :method_json,
	 :user_id, :created_at, :updated_at)`

// CreateRecipe inserts a new recipe. The ID, CreatedAt, and UpdatedAt fields
// on recipe are populated after a successful insert.
func (s *Store) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	row, err := recipeRowFromModel(recipe)
	if err != nil {
		return err
	}

	result, err := s.db.NamedExecContext(ctx, recipeInsertQ, row)
	if err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		// Postgres doesn't support LastInsertId; fall back to a lookup by
		// the unique timestamp+title pair is not reliable, so re-query max id.
		if qErr := s.db.GetContext(ctx, &recipe.ID, "SELECT MAX(id) FROM recipes"); qErr != nil {
			return fmt.Errorf("get recipe id: %w", err)
		}
		return nil
	}
	recipe.ID = id
	return nil
}

// CreateRecipes bulk-inserts a batch of recipes inside one transaction and
// returns the number inserted.
func (s *Store) CreateRecipes(ctx context.Context, recipes []model.Recipe) (int64, error) {
	if len(recipes) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var inserted int64
	for i := range recipes {
		recipes[i].CreatedAt = now
		recipes[i].UpdatedAt = now
		row, err := recipeRowFromModel(&recipes[i])
		if err != nil {
			return 0, err
		}
		if _, err := tx.NamedExecContext(ctx, recipeInsertQ, row); err != nil {
			return 0, fmt.Errorf("insert recipe %d: %w", i, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recipes: %w", err)
	}
	return inserted, nil
}

// GetRecipe returns a recipe by ID.
func (s *Store) GetRecipe(ctx context.Context, id int64) (*model.Recipe, error) {
	var row recipeRow
	if err := s.db.GetContext(ctx, &row, s.rebind("SELECT * FROM recipes WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	recipe, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListRecipesParams controls filtering and paging for ListRecipes.
type ListRecipesParams struct {
	Cuisine string // exact match, empty means any
	Title   string // case-insensitive substring, empty means any
	Limit   int
	Offset  int
}

// ListRecipes returns a page of recipes ordered by id, plus the total count
// matching the filters.
func (s *Store) ListRecipes(ctx context.Context, p ListRecipesParams) ([]model.Recipe, int64, error) {
	where := []string{}
	args := []interface{}{}

	if p.Cuisine != "" {
		where = append(where, "cuisine = ?")
		args = append(args, p.Cuisine)
	}
	if p.Title != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(p.Title)+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, s.rebind("SELECT COUNT(*) FROM recipes"+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	listArgs := append(args, p.Limit, p.Offset)
	var rows []recipeRow
	q := "SELECT * FROM recipes" + clause + " ORDER BY id LIMIT ? OFFSET ?"
	if err := s.db.SelectContext(ctx, &rows, s.rebind(q), listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	recipes := make([]model.Recipe, 0, len(rows))
	for _, r := range rows {
		recipe, err := r.toModel()
		if err != nil {
			return nil, 0, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, total, nil
}

// SearchRecipes performs a case-insensitive substring search across title,
// description, cuisine, and chef name.
func (s *Store) SearchRecipes(ctx context.Context, query string, limit, offset int) ([]model.Recipe, int64, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	const clause = ` WHERE LOWER(title) LIKE ? OR LOWER(description) LIKE ?
		OR LOWER(cuisine) LIKE ? OR LOWER(chef_name) LIKE ?`

	var total int64
	if err := s.db.GetContext(ctx, &total, s.rebind("SELECT COUNT(*) FROM recipes"+clause),
		pattern, pattern, pattern, pattern); err != nil {
		return nil, 0, fmt.Errorf("count search: %w", err)
	}

	var rows []recipeRow
	q := "SELECT * FROM recipes" + clause + " ORDER BY id LIMIT ? OFFSET ?"
	if err := s.db.SelectContext(ctx, &rows, s.rebind(q),
		pattern, pattern, pattern, pattern, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("search recipes: %w", err)
	}

	recipes := make([]model.Recipe, 0, len(rows))
	for _, r := range rows {
		recipe, err := r.toModel()
		if err != nil {
			return nil, 0, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, total, nil
}

// CuisineCounts returns the number of recipes per cuisine.
func (s *Store) CuisineCounts(ctx context.Context) ([]model.CuisineCount, error) {
	var counts []model.CuisineCount
	const q = `SELECT cuisine, COUNT(*) AS count FROM recipes GROUP BY cuisine ORDER BY cuisine`
	if err := s.db.SelectContext(ctx, &counts, q); err != nil {
		return nil, fmt.Errorf("cuisine counts: %w", err)
	}
	return counts, nil
}

// UpdateRecipe replaces an existing recipe's fields. The UpdatedAt field is
// refreshed automatically.
func (s *Store) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()

	row, err := recipeRowFromModel(recipe)
	if err != nil {
		return err
	}

	const q = `UPDATE recipes SET
		title = :title, description = :description, cuisine = :cuisine,
		image = :image, source_url = :source_url, chef_name = :chef_name,
		preparation_time = :preparation_time, cooking_time = :cooking_time, serves = :serves,
		ingredients_desc_json = :ingredients_desc_json, ingredients_json = :ingredients_json,
		method_json = :method_json, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recipe rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecipe removes a recipe by ID.
func (s *Store) DeleteRecipe(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM recipes WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recipe rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllRecipes clears the catalog ahead of a bulk load and returns the
// number of rows removed.
func (s *Store) DeleteAllRecipes(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM recipes")
	if err != nil {
		return 0, fmt.Errorf("delete all recipes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all recipes rows affected: %w", err)
	}
	return n, nil
}
