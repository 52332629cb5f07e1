package model

// ErrorResponse is the standard envelope for error responses. The bodies for
// authentication failures are fixed strings that clients match on, so the
// envelope stays flat.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Pagination carries offset/limit paging metadata for list endpoints.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"total_pages"`
}

// RecipePage is the envelope for paginated recipe listings.
type RecipePage struct {
	Recipes    []Recipe   `json:"recipes"`
	Pagination Pagination `json:"pagination"`
}
