package model

import "time"

// Recipe is a single catalog entry. The list-valued fields are stored as
// JSON text columns in the store.
type Recipe struct {
	ID              int64     `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Cuisine         string    `json:"cuisine" db:"cuisine"`
	Image           string    `json:"image,omitempty" db:"image"`
	SourceURL       string    `json:"source_url,omitempty" db:"source_url"`
	ChefName        string    `json:"chef_name" db:"chef_name"`
	PreparationTime string    `json:"preparation_time" db:"preparation_time"`
	CookingTime     string    `json:"cooking_time" db:"cooking_time"`
	Serves          string    `json:"serves" db:"serves"`
	IngredientsDesc []string  `json:"ingredients_desc"`
	Ingredients     []string  `json:"ingredients"`
	Method          []string  `json:"method"`
	UserID          string    `json:"user_id" db:"user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// CuisineCount is one row of the cuisine aggregation.
type CuisineCount struct {
	Cuisine string `json:"cuisine" db:"cuisine"`
	Count   int64  `json:"count" db:"count"`
}
