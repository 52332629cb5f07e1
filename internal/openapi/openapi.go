// Package openapi builds the OpenAPI 3.1 description of the fixed route set,
// served at /openapi.json and exported by the CLI.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Document builds the full API description.
func Document() (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Tastebase API",
			Description: "Recipe catalog REST API with API-key metering.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: "/"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Components.Schemas["ErrorResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"error": stringSchema(),
	})
	doc.Components.Schemas["Credentials"] = objectSchema(map[string]*openapi3.SchemaRef{
		"email":    stringSchema(),
		"password": stringSchema(),
		"role":     enumSchema("USER", "ADMIN"),
	})
	doc.Components.Schemas["AuthResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"token":   stringSchema(),
		"api_key": stringSchema(),
		"role":    enumSchema("USER", "ADMIN"),
	})
	doc.Components.Schemas["Recipe"] = objectSchema(map[string]*openapi3.SchemaRef{
		"id":               intSchema(),
		"title":            stringSchema(),
		"description":      stringSchema(),
		"cuisine":          stringSchema(),
		"image":            stringSchema(),
		"source_url":       stringSchema(),
		"chef_name":        stringSchema(),
		"preparation_time": stringSchema(),
		"cooking_time":     stringSchema(),
		"serves":           stringSchema(),
		"ingredients_desc": stringArraySchema(),
		"ingredients":      stringArraySchema(),
		"method":           stringArraySchema(),
		"user_id":          stringSchema(),
		"created_at":       dateTimeSchema(),
		"updated_at":       dateTimeSchema(),
	})
	doc.Components.Schemas["Pagination"] = objectSchema(map[string]*openapi3.SchemaRef{
		"total":       intSchema(),
		"page":        intSchema(),
		"limit":       intSchema(),
		"total_pages": intSchema(),
	})
	doc.Components.Schemas["RecipePage"] = objectSchema(map[string]*openapi3.SchemaRef{
		"recipes":    arrayOfRef("#/components/schemas/Recipe"),
		"pagination": openapi3.NewSchemaRef("#/components/schemas/Pagination", nil),
	})
	doc.Components.Schemas["APIKeyResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"api_key":    stringSchema(),
		"created_at": dateTimeSchema(),
		"updated_at": dateTimeSchema(),
	})
	doc.Components.Schemas["UsageWindow"] = objectSchema(map[string]*openapi3.SchemaRef{
		"used":       intSchema(),
		"limit":      intSchema(),
		"percentage": numberSchema(),
		"remaining":  intSchema(),
	})

	doc.Paths = openapi3.NewPaths()

	// Public
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: publicOp("Liveness probe", "health", responses200("OK", nil)),
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: publicOp("Readiness probe (store ping)", "health", responses200("OK", nil)),
	})
	doc.Paths.Set("/api/users/register", &openapi3.PathItem{
		Post: publicOpWithBody("Register a new account",
			"users", "#/components/schemas/Credentials",
			newResponses("201", "Account created", refSchema("#/components/schemas/AuthResponse"))),
	})
	doc.Paths.Set("/api/users/login", &openapi3.PathItem{
		Post: publicOpWithBody("Log in with email and password",
			"users", "#/components/schemas/Credentials",
			responses200("Logged in", refSchema("#/components/schemas/AuthResponse"))),
	})

	// Bearer only
	doc.Paths.Set("/api/users/all", &openapi3.PathItem{
		Get: bearerOp("List all users (admin)", "users", responses200("Users", nil)),
	})
	doc.Paths.Set("/api/apikey/regenerate", &openapi3.PathItem{
		Post: bearerOp("Replace the caller's API key value in place", "apikey",
			responses200("New key", refSchema("#/components/schemas/APIKeyResponse"))),
	})
	doc.Paths.Set("/api/apikey/current", &openapi3.PathItem{
		Get: bearerOp("Show the caller's API key", "apikey",
			responses200("Key", refSchema("#/components/schemas/APIKeyResponse"))),
	})
	doc.Paths.Set("/api/apikey/all", &openapi3.PathItem{
		Get: bearerOp("List all API keys with owners (admin)", "apikey", responses200("Keys", nil)),
	})
	doc.Paths.Set("/api/usage/stats", &openapi3.PathItem{
		Get: bearerOp("Usage stats for the caller's key", "usage", responses200("Stats", nil)),
	})
	doc.Paths.Set("/api/usage/analytics", &openapi3.PathItem{
		Get: bearerOp("Fleet-wide usage analytics (admin)", "usage", responses200("Analytics", nil)),
	})

	// Both lanes
	recipePage := responses200("Recipes", refSchema("#/components/schemas/RecipePage"))
	doc.Paths.Set("/api/recipes", &openapi3.PathItem{
		Get: authedOp("List recipes with paging and cuisine/title filters", "recipes",
			pagingParams("cuisine", "title"), recipePage),
		Post: authedOpWithBody("Create a recipe (admin)", "recipes", "#/components/schemas/Recipe",
			newResponses("201", "Created", refSchema("#/components/schemas/Recipe"))),
	})
	doc.Paths.Set("/api/recipes/cuisines", &openapi3.PathItem{
		Get: authedOp("Recipe counts per cuisine", "recipes", nil, responses200("Cuisines", nil)),
	})
	doc.Paths.Set("/api/recipes/search", &openapi3.PathItem{
		Get: authedOp("Search recipes across title, description, cuisine, and chef", "recipes",
			append(openapi3.Parameters{queryParam("q", "search terms", true)}, pagingParams()...),
			recipePage),
	})
	doc.Paths.Set("/api/recipes/seed", &openapi3.PathItem{
		Post: authedOp("Clear and bulk-load the catalog (admin)", "recipes", nil,
			newResponses("201", "Seeded", nil)),
	})
	doc.Paths.Set("/api/recipes/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{pathParam("id", "recipe ID")},
		Get:        authedOp("Fetch one recipe", "recipes", nil, responses200("Recipe", refSchema("#/components/schemas/Recipe"))),
		Put: authedOpWithBody("Replace a recipe (admin)", "recipes", "#/components/schemas/Recipe",
			responses200("Updated", refSchema("#/components/schemas/Recipe"))),
		Delete: authedOp("Delete a recipe (admin)", "recipes", nil, newResponses("204", "Deleted", nil)),
	})

	// Resolve the internal $refs so the document validates; this does not
	// change the serialized output.
	loader := openapi3.NewLoader()
	if err := loader.ResolveRefsIn(doc, nil); err != nil {
		return nil, err
	}

	return doc, nil
}

// ---------------------------------------------------------------------------
// Schema helpers
// ---------------------------------------------------------------------------

func objectSchema(props map[string]*openapi3.SchemaRef) *openapi3.SchemaRef {
	s := &openapi3.Schema{Type: &openapi3.Types{"object"}, Properties: openapi3.Schemas{}}
	for name, ref := range props {
		s.Properties[name] = ref
	}
	return &openapi3.SchemaRef{Value: s}
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func intSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
}

func numberSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}
}

func dateTimeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}

func stringArraySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: stringSchema(),
	}}
}

func enumSchema(values ...string) *openapi3.SchemaRef {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: enum}}
}

func arrayOfRef(ref string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: openapi3.NewSchemaRef(ref, nil),
	}}
}

func refSchema(ref string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(ref, nil)
}

// ---------------------------------------------------------------------------
// Operation helpers
// ---------------------------------------------------------------------------

func publicOp(summary, tag string, responses *openapi3.Responses) *openapi3.Operation {
	return &openapi3.Operation{
		Summary:   summary,
		Tags:      []string{tag},
		Responses: responses,
	}
}

func publicOpWithBody(summary, tag, bodyRef string, responses *openapi3.Responses) *openapi3.Operation {
	op := publicOp(summary, tag, responses)
	op.RequestBody = requestBody(bodyRef)
	return op
}

func bearerOp(summary, tag string, responses *openapi3.Responses) *openapi3.Operation {
	op := publicOp(summary, tag, responses)
	op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
	return op
}

func authedOp(summary, tag string, params openapi3.Parameters, responses *openapi3.Responses) *openapi3.Operation {
	op := publicOp(summary, tag, responses)
	op.Parameters = params
	op.Security = &openapi3.SecurityRequirements{{"apiKey": {}}, {"bearerAuth": {}}}
	return op
}

func authedOpWithBody(summary, tag, bodyRef string, responses *openapi3.Responses) *openapi3.Operation {
	op := authedOp(summary, tag, nil, responses)
	op.RequestBody = requestBody(bodyRef)
	return op
}

func requestBody(schemaRef string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: openapi3.NewSchemaRef(schemaRef, nil),
				},
			},
		},
	}
}

func pagingParams(filters ...string) openapi3.Parameters {
	params := openapi3.Parameters{
		queryParam("page", "page number, 1-based", false),
		queryParam("limit", "page size, max 100", false),
	}
	for _, f := range filters {
		params = append(params, queryParam(f, "filter by "+f, false))
	}
	return params
}

func queryParam(name, description string, required bool) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          "query",
			Description: description,
			Required:    required,
			Schema:      stringSchema(),
		},
	}
}

func pathParam(name, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          "path",
			Description: description,
			Required:    true,
			Schema:      intSchema(),
		},
	}
}

func responses200(description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	return newResponses("200", description, schema)
}

func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()
	resp := &openapi3.Response{Description: &description}
	if schema != nil {
		resp.Content = openapi3.Content{
			"application/json": &openapi3.MediaType{Schema: schema},
		}
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: resp})

	errDesc := "Error"
	responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errDesc,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil),
				},
			},
		},
	})
	return responses
}
