package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tastebase/tastebase/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, "") // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email string, role model.Role) (*model.User, *model.APIKey) {
	t.Helper()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
		Role:         role,
	}
	key := &model.APIKey{
		ID:  uuid.NewString(),
		Key: uuid.NewString(),
	}
	if err := s.CreateUserWithKey(context.Background(), user, key); err != nil {
		t.Fatalf("CreateUserWithKey: %v", err)
	}
	return user, key
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// HasAdmin - false initially
	has, err := s.HasAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAdmin: %v", err)
	}
	if has {
		t.Error("expected no admins initially")
	}

	user, key := seedUser(t, s, "alice@example.com", model.RoleAdmin)
	if key.UserID != user.ID {
		t.Errorf("key user ID %q, want %q", key.UserID, user.ID)
	}

	has, err = s.HasAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAdmin: %v", err)
	}
	if !has {
		t.Error("expected admin to exist")
	}

	// GetUserByEmail
	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got ID %q, want %q", got.ID, user.ID)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("got role %q, want %q", got.Role, model.RoleAdmin)
	}

	// GetUser
	got2, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got2.Email != "alice@example.com" {
		t.Errorf("got email %q, want %q", got2.Email, "alice@example.com")
	}

	// Not found
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// ListUsers
	seedUser(t, s, "bob@example.com", model.RoleUser)
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2", len(users))
	}
}

func TestDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "dup@example.com", model.RoleUser)

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        "dup@example.com",
		PasswordHash: "$2a$10$fakehash",
		Role:         model.RoleUser,
	}
	key := &model.APIKey{ID: uuid.NewString(), Key: uuid.NewString()}
	if err := s.CreateUserWithKey(ctx, user, key); err == nil {
		t.Error("expected unique constraint violation on duplicate email")
	}
}

func TestAPIKeyLookupAndRotate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, key := seedUser(t, s, "carol@example.com", model.RoleUser)

	// Exact-match lookup
	got, err := s.GetAPIKeyByKey(ctx, key.Key)
	if err != nil {
		t.Fatalf("GetAPIKeyByKey: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("got ID %q, want %q", got.ID, key.ID)
	}
	if got.UserID != user.ID {
		t.Errorf("got user ID %q, want %q", got.UserID, user.ID)
	}

	// Unknown key
	_, err = s.GetAPIKeyByKey(ctx, "no-such-key")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Rotation preserves row identity, replaces the value
	newValue := uuid.NewString()
	rotated, err := s.RotateAPIKey(ctx, user.ID, newValue)
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if rotated.ID != key.ID {
		t.Errorf("rotation changed key row ID: got %q, want %q", rotated.ID, key.ID)
	}
	if rotated.Key != newValue {
		t.Errorf("got key %q, want %q", rotated.Key, newValue)
	}

	// The old value no longer resolves
	_, err = s.GetAPIKeyByKey(ctx, key.Key)
	if err != ErrNotFound {
		t.Errorf("expected old key to be gone, got %v", err)
	}

	// Rotating for a user without a key row
	_, err = s.RotateAPIKey(ctx, uuid.NewString(), uuid.NewString())
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAPIKeysWithOwners(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "dave@example.com", model.RoleUser)
	seedUser(t, s, "erin@example.com", model.RoleAdmin)

	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	emails := map[string]bool{}
	for _, k := range keys {
		emails[k.Email] = true
	}
	if !emails["dave@example.com"] || !emails["erin@example.com"] {
		t.Errorf("owner emails missing from listing: %v", emails)
	}
}

func TestRecipeCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := seedUser(t, s, "chef@example.com", model.RoleAdmin)

	recipe := &model.Recipe{
		Title:           "Spaghetti Carbonara",
		Description:     "Roman pasta with eggs and guanciale",
		Cuisine:         "Italian",
		ChefName:        "Marco",
		PreparationTime: "10 mins",
		CookingTime:     "15 mins",
		Serves:          "4",
		IngredientsDesc: []string{"400g spaghetti", "150g guanciale"},
		Ingredients:     []string{"spaghetti", "guanciale", "eggs", "pecorino"},
		Method:          []string{"Boil pasta", "Fry guanciale", "Combine off heat"},
		UserID:          user.ID,
	}
	if err := s.CreateRecipe(ctx, recipe); err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if recipe.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	// Get round-trips the JSON list columns
	got, err := s.GetRecipe(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if got.Title != "Spaghetti Carbonara" {
		t.Errorf("got title %q, want %q", got.Title, "Spaghetti Carbonara")
	}
	if len(got.Ingredients) != 4 {
		t.Errorf("got %d ingredients, want 4", len(got.Ingredients))
	}
	if len(got.Method) != 3 || got.Method[2] != "Combine off heat" {
		t.Errorf("method round-trip failed: %v", got.Method)
	}

	// Update
	recipe.Title = "Carbonara"
	recipe.Ingredients = append(recipe.Ingredients, "black pepper")
	if err := s.UpdateRecipe(ctx, recipe); err != nil {
		t.Fatalf("UpdateRecipe: %v", err)
	}
	got2, _ := s.GetRecipe(ctx, recipe.ID)
	if got2.Title != "Carbonara" {
		t.Errorf("got title %q, want %q", got2.Title, "Carbonara")
	}
	if len(got2.Ingredients) != 5 {
		t.Errorf("got %d ingredients, want 5", len(got2.Ingredients))
	}

	// Delete
	if err := s.DeleteRecipe(ctx, recipe.ID); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	if _, err := s.GetRecipe(ctx, recipe.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteRecipe(ctx, recipe.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}

	// Update of a missing row
	if err := s.UpdateRecipe(ctx, recipe); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func seedRecipes(t *testing.T, s *Store, userID string) {
	t.Helper()
	batch := []model.Recipe{
		{Title: "Pad Thai", Description: "Stir-fried noodles", Cuisine: "Thai", ChefName: "Anong", UserID: userID,
			IngredientsDesc: []string{}, Ingredients: []string{"noodles"}, Method: []string{"fry"}},
		{Title: "Green Curry", Description: "Coconut curry", Cuisine: "Thai", ChefName: "Anong", UserID: userID,
			IngredientsDesc: []string{}, Ingredients: []string{"coconut"}, Method: []string{"simmer"}},
		{Title: "Margherita Pizza", Description: "Neapolitan classic", Cuisine: "Italian", ChefName: "Gino", UserID: userID,
			IngredientsDesc: []string{}, Ingredients: []string{"dough"}, Method: []string{"bake"}},
	}
	n, err := s.CreateRecipes(context.Background(), batch)
	if err != nil {
		t.Fatalf("CreateRecipes: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d recipes, want 3", n)
	}
}

func TestListRecipesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := seedUser(t, s, "chef@example.com", model.RoleAdmin)
	seedRecipes(t, s, user.ID)

	// No filters
	all, total, err := s.ListRecipes(ctx, ListRecipesParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListRecipes: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("got %d/%d recipes, want 3/3", len(all), total)
	}

	// Cuisine filter
	thai, total, err := s.ListRecipes(ctx, ListRecipesParams{Cuisine: "Thai", Limit: 10})
	if err != nil {
		t.Fatalf("ListRecipes cuisine: %v", err)
	}
	if total != 2 || len(thai) != 2 {
		t.Errorf("got %d/%d Thai recipes, want 2/2", len(thai), total)
	}

	// Title filter is case-insensitive substring
	curry, total, err := s.ListRecipes(ctx, ListRecipesParams{Title: "CURRY", Limit: 10})
	if err != nil {
		t.Fatalf("ListRecipes title: %v", err)
	}
	if total != 1 || len(curry) != 1 || curry[0].Title != "Green Curry" {
		t.Errorf("title filter: got %v (total %d)", curry, total)
	}

	// Paging: limit 2 returns 2 of 3, total still 3
	page, total, err := s.ListRecipes(ctx, ListRecipesParams{Limit: 2})
	if err != nil {
		t.Fatalf("ListRecipes page: %v", err)
	}
	if len(page) != 2 || total != 3 {
		t.Errorf("got %d/%d, want 2/3", len(page), total)
	}
	page2, _, err := s.ListRecipes(ctx, ListRecipesParams{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListRecipes page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Errorf("got %d on page 2, want 1", len(page2))
	}
}

func TestSearchRecipes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := seedUser(t, s, "chef@example.com", model.RoleAdmin)
	seedRecipes(t, s, user.ID)

	// Matches chef name across recipes
	got, total, err := s.SearchRecipes(ctx, "anong", 10, 0)
	if err != nil {
		t.Fatalf("SearchRecipes: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Errorf("got %d/%d matches, want 2/2", len(got), total)
	}

	// Matches description
	got, total, err = s.SearchRecipes(ctx, "neapolitan", 10, 0)
	if err != nil {
		t.Fatalf("SearchRecipes: %v", err)
	}
	if total != 1 || got[0].Title != "Margherita Pizza" {
		t.Errorf("description search: got %v (total %d)", got, total)
	}

	// No matches
	_, total, err = s.SearchRecipes(ctx, "sushi", 10, 0)
	if err != nil {
		t.Fatalf("SearchRecipes: %v", err)
	}
	if total != 0 {
		t.Errorf("got total %d, want 0", total)
	}
}

func TestCuisineCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := seedUser(t, s, "chef@example.com", model.RoleAdmin)
	seedRecipes(t, s, user.ID)

	counts, err := s.CuisineCounts(ctx)
	if err != nil {
		t.Fatalf("CuisineCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d cuisines, want 2", len(counts))
	}
	// Ordered by cuisine name
	if counts[0].Cuisine != "Italian" || counts[0].Count != 1 {
		t.Errorf("counts[0] = %+v, want Italian/1", counts[0])
	}
	if counts[1].Cuisine != "Thai" || counts[1].Count != 2 {
		t.Errorf("counts[1] = %+v, want Thai/2", counts[1])
	}
}

func TestDeleteAllRecipes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := seedUser(t, s, "chef@example.com", model.RoleAdmin)
	seedRecipes(t, s, user.ID)

	n, err := s.DeleteAllRecipes(ctx)
	if err != nil {
		t.Fatalf("DeleteAllRecipes: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
	_, total, err := s.ListRecipes(ctx, ListRecipesParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListRecipes: %v", err)
	}
	if total != 0 {
		t.Errorf("got total %d after clear, want 0", total)
	}
}

func recordUsage(t *testing.T, s *Store, keyID, endpoint, method string, status int, ms int64, at time.Time) {
	t.Helper()
	rec := &model.UsageRecord{
		APIKeyID:       keyID,
		Endpoint:       endpoint,
		Method:         method,
		StatusCode:     status,
		ResponseTimeMs: ms,
		CreatedAt:      at,
	}
	if err := s.CreateUsageRecord(context.Background(), rec); err != nil {
		t.Fatalf("CreateUsageRecord: %v", err)
	}
}

func TestUsageCountsAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, key := seedUser(t, s, "meter@example.com", model.RoleUser)
	now := time.Now().UTC()

	recordUsage(t, s, key.ID, "/api/recipes", "GET", 200, 12, now.Add(-48*time.Hour))
	recordUsage(t, s, key.ID, "/api/recipes", "GET", 200, 8, now.Add(-1*time.Hour))
	recordUsage(t, s, key.ID, "/api/recipes/1", "GET", 404, 3, now.Add(-30*time.Minute))

	// Window excludes the 48h-old record
	count, err := s.CountUsageBetween(ctx, key.ID, now.Add(-24*time.Hour), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("CountUsageBetween: %v", err)
	}
	if count != 2 {
		t.Errorf("got count %d, want 2", count)
	}

	// Recent is newest first
	recent, err := s.RecentUsage(ctx, key.ID, 2)
	if err != nil {
		t.Fatalf("RecentUsage: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d recent records, want 2", len(recent))
	}
	if recent[0].Endpoint != "/api/recipes/1" {
		t.Errorf("recent[0].Endpoint = %q, want /api/recipes/1", recent[0].Endpoint)
	}
	if recent[0].StatusCode != 404 {
		t.Errorf("recent[0].StatusCode = %d, want 404", recent[0].StatusCode)
	}
}

func TestUsageRejectsUnknownKey(t *testing.T) {
	s := newTestStore(t)

	rec := &model.UsageRecord{
		APIKeyID:   uuid.NewString(),
		Endpoint:   "/api/recipes",
		Method:     "GET",
		StatusCode: 200,
	}
	if err := s.CreateUsageRecord(context.Background(), rec); err == nil {
		t.Error("expected foreign key violation for unknown api_key_id")
	}
}

func TestDailyUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, key := seedUser(t, s, "daily@example.com", model.RoleUser)

	day1 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	recordUsage(t, s, key.ID, "/api/recipes", "GET", 200, 5, day1)
	recordUsage(t, s, key.ID, "/api/recipes", "GET", 200, 5, day1.Add(time.Hour))
	recordUsage(t, s, key.ID, "/api/recipes", "GET", 200, 5, day2)

	counts, err := s.DailyUsage(ctx, key.ID, day1.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d days, want 2", len(counts))
	}
	if counts[0].Date != "2026-08-20" || counts[0].Requests != 2 {
		t.Errorf("counts[0] = %+v, want 2026-08-20/2", counts[0])
	}
	if counts[1].Date != "2026-08-21" || counts[1].Requests != 1 {
		t.Errorf("counts[1] = %+v, want 2026-08-21/1", counts[1])
	}
}

func TestUsageAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, key1 := seedUser(t, s, "agg1@example.com", model.RoleUser)
	_, key2 := seedUser(t, s, "agg2@example.com", model.RoleUser)
	now := time.Now().UTC()

	recordUsage(t, s, key1.ID, "/api/recipes", "GET", 200, 10, now.Add(-time.Hour))
	recordUsage(t, s, key1.ID, "/api/recipes", "GET", 200, 20, now.Add(-time.Hour))
	recordUsage(t, s, key2.ID, "/api/recipes/search", "GET", 500, 30, now.Add(-time.Hour))

	start, end := now.Add(-24*time.Hour), now.Add(time.Minute)

	total, unique, avg, err := s.UsageTotals(ctx, start, end)
	if err != nil {
		t.Fatalf("UsageTotals: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if unique != 2 {
		t.Errorf("unique keys = %d, want 2", unique)
	}
	if avg != 20 {
		t.Errorf("avg response = %v, want 20", avg)
	}

	statuses, err := s.StatusCounts(ctx, start, end)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d status rows, want 2", len(statuses))
	}
	if statuses[0].StatusCode != 200 || statuses[0].Count != 2 {
		t.Errorf("statuses[0] = %+v, want 200/2", statuses[0])
	}

	endpoints, err := s.TopEndpoints(ctx, start, end, 5)
	if err != nil {
		t.Fatalf("TopEndpoints: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("got %d endpoint rows, want 2", len(endpoints))
	}
	if endpoints[0].Endpoint != "/api/recipes" || endpoints[0].Count != 2 {
		t.Errorf("endpoints[0] = %+v, want /api/recipes/2", endpoints[0])
	}
}

func TestUsageTotalsEmpty(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	total, unique, avg, err := s.UsageTotals(context.Background(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("UsageTotals: %v", err)
	}
	if total != 0 || unique != 0 || avg != 0 {
		t.Errorf("got %d/%d/%v, want zeros", total, unique, avg)
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Missing setting
	if _, err := s.GetSetting(ctx, "usage.monthly_limit"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetSetting(ctx, "usage.monthly_limit", "5000"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	got, err := s.GetSetting(ctx, "usage.monthly_limit")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "5000" {
		t.Errorf("got %q, want %q", got, "5000")
	}

	// Upsert replaces
	if err := s.SetSetting(ctx, "usage.monthly_limit", "9000"); err != nil {
		t.Fatalf("SetSetting upsert: %v", err)
	}
	got, _ = s.GetSetting(ctx, "usage.monthly_limit")
	if got != "9000" {
		t.Errorf("got %q after upsert, want %q", got, "9000")
	}
}
