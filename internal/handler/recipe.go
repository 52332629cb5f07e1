package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/server/middleware"
	"github.com/tastebase/tastebase/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	seedBatchSize   = 1000
)

// RecipeHandler serves the recipe catalog.
type RecipeHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewRecipeHandler(st *store.Store, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{store: st, logger: logger}
}

// List handles GET /api/recipes with page/limit paging and optional cuisine
// and title filters.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := clampInt(queryInt(r, "limit", defaultPageSize), 1, maxPageSize)

	recipes, total, err := h.store.ListRecipes(r.Context(), store.ListRecipesParams{
		Cuisine: queryString(r, "cuisine"),
		Title:   queryString(r, "title"),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		h.logger.Error("list recipes", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, model.RecipePage{
		Recipes:    recipes,
		Pagination: paginate(total, page, limit),
	})
}

// Cuisines handles GET /api/recipes/cuisines.
func (h *RecipeHandler) Cuisines(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CuisineCounts(r.Context())
	if err != nil {
		h.logger.Error("cuisine counts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cuisines": counts})
}

// Search handles GET /api/recipes/search?q=...
func (h *RecipeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := queryString(r, "q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := clampInt(queryInt(r, "limit", defaultPageSize), 1, maxPageSize)

	recipes, total, err := h.store.SearchRecipes(r.Context(), q, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("search recipes", "error", err, "query", q)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, model.RecipePage{
		Recipes:    recipes,
		Pagination: paginate(total, page, limit),
	})
}

// Get handles GET /api/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(w, r)
	if !ok {
		return
	}

	recipe, err := h.store.GetRecipe(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recipe not found")
			return
		}
		h.logger.Error("get recipe", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// Create handles POST /api/recipes (admin only).
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var recipe model.Recipe
	if err := readJSON(r, &recipe); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if recipe.Title == "" || recipe.Cuisine == "" {
		writeError(w, http.StatusBadRequest, "Title and cuisine are required")
		return
	}
	recipe.ID = 0
	recipe.UserID = middleware.GetPrincipal(r.Context()).UserID

	if err := h.store.CreateRecipe(r.Context(), &recipe); err != nil {
		h.logger.Error("create recipe", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

// Seed handles POST /api/recipes/seed (admin only): clears the catalog and
// bulk-loads the posted recipes in batches.
func (h *RecipeHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipes []model.Recipe `json:"recipes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Recipes) == 0 {
		writeError(w, http.StatusBadRequest, "No recipes to seed")
		return
	}

	userID := middleware.GetPrincipal(r.Context()).UserID
	for i := range req.Recipes {
		req.Recipes[i].ID = 0
		req.Recipes[i].UserID = userID
	}

	deleted, err := h.store.DeleteAllRecipes(r.Context())
	if err != nil {
		h.logger.Error("clear recipes", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var inserted int64
	for start := 0; start < len(req.Recipes); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(req.Recipes) {
			end = len(req.Recipes)
		}
		n, err := h.store.CreateRecipes(r.Context(), req.Recipes[start:end])
		if err != nil {
			h.logger.Error("seed recipes", "error", err, "batch_start", start)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		inserted += n
	}

	h.logger.Info("catalog seeded", "deleted", deleted, "inserted", inserted)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"deleted":  deleted,
		"inserted": inserted,
	})
}

// Update handles PUT /api/recipes/{id} (admin only).
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(w, r)
	if !ok {
		return
	}

	existing, err := h.store.GetRecipe(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recipe not found")
			return
		}
		h.logger.Error("get recipe for update", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var recipe model.Recipe
	if err := readJSON(r, &recipe); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if recipe.Title == "" || recipe.Cuisine == "" {
		writeError(w, http.StatusBadRequest, "Title and cuisine are required")
		return
	}
	recipe.ID = id
	recipe.UserID = existing.UserID
	recipe.CreatedAt = existing.CreatedAt

	if err := h.store.UpdateRecipe(r.Context(), &recipe); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recipe not found")
			return
		}
		h.logger.Error("update recipe", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// Delete handles DELETE /api/recipes/{id} (admin only).
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteRecipe(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recipe not found")
			return
		}
		h.logger.Error("delete recipe", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recipeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "Invalid recipe ID")
		return 0, false
	}
	return id, true
}

func paginate(total int64, page, limit int) model.Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return model.Pagination{Total: total, Page: page, Limit: limit, TotalPages: pages}
}
