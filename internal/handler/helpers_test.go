package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&bad=abc", nil)

	if got := queryInt(r, "page", 1); got != 3 {
		t.Errorf("page = %d, want 3", got)
	}
	if got := queryInt(r, "missing", 7); got != 7 {
		t.Errorf("missing = %d, want 7", got)
	}
	if got := queryInt(r, "bad", 7); got != 7 {
		t.Errorf("bad = %d, want 7", got)
	}
}

func TestClampInt(t *testing.T) {
	if got := clampInt(0, 1, 100); got != 1 {
		t.Errorf("clamp low = %d", got)
	}
	if got := clampInt(500, 1, 100); got != 100 {
		t.Errorf("clamp high = %d", got)
	}
	if got := clampInt(50, 1, 100); got != 50 {
		t.Errorf("clamp mid = %d", got)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, 404, "Recipe not found")

	if rr.Code != 404 {
		t.Errorf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"error":"Recipe not found"}` {
		t.Errorf("body = %s", got)
	}
}

func TestReadJSONClosesBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"a": 1}`))
	var v struct {
		A int `json:"a"`
	}
	if err := readJSON(r, &v); err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	if v.A != 1 {
		t.Errorf("a = %d", v.A)
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(`nonsense`))
	if err := readJSON(r, &v); err == nil {
		t.Error("expected decode error")
	}
}

func TestPaginate(t *testing.T) {
	p := paginate(25, 2, 10)
	if p.TotalPages != 3 || p.Total != 25 || p.Page != 2 || p.Limit != 10 {
		t.Errorf("pagination = %+v", p)
	}
	p = paginate(30, 1, 10)
	if p.TotalPages != 3 {
		t.Errorf("exact division pages = %d, want 3", p.TotalPages)
	}
	p = paginate(0, 1, 10)
	if p.TotalPages != 0 {
		t.Errorf("empty pages = %d, want 0", p.TotalPages)
	}
}
