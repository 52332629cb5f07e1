package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/store"
)

func newTestAuth(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewAuthService(st, "test-secret", time.Hour), st
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	user, key, err := auth.Register(ctx, "Alice@Example.com", "s3cret", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "s3cret" {
		t.Error("password stored in plaintext")
	}
	if key.Key == "" || key.UserID != user.ID {
		t.Errorf("bad key after register: %+v", key)
	}

	// Login with the right password issues a token
	got, token, err := auth.Login(ctx, "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got user %q, want %q", got.ID, user.ID)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	claims, err := auth.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, user.ID)
	}
	if claims.Role != string(model.RoleUser) {
		t.Errorf("claims.Role = %q, want %q", claims.Role, model.RoleUser)
	}

	// Wrong password and unknown email look identical
	if _, _, err := auth.Login(ctx, "alice@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@example.com", "s3cret"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, _, err := auth.Register(ctx, "dup@example.com", "pw", model.RoleUser); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := auth.Register(ctx, "dup@example.com", "pw2", model.RoleUser); err != ErrEmailTaken {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestRegisterInvalidRoleFallsBack(t *testing.T) {
	auth, _ := newTestAuth(t)

	user, _, err := auth.Register(context.Background(), "role@example.com", "pw", model.Role("WIZARD"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != model.RoleUser {
		t.Errorf("got role %q, want %q", user.Role, model.RoleUser)
	}
}

func TestResolveAPIKey(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, key, err := auth.Register(ctx, "key@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := auth.ResolveAPIKey(ctx, key.Key)
	if err != nil {
		t.Fatalf("ResolveAPIKey: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("got key %q, want %q", got.ID, key.ID)
	}

	// Empty values are rejected without a lookup
	if _, err := auth.ResolveAPIKey(ctx, ""); err != store.ErrNotFound {
		t.Errorf("empty key: got %v, want ErrNotFound", err)
	}
	if _, err := auth.ResolveAPIKey(ctx, "tb_bogus"); err != store.ErrNotFound {
		t.Errorf("unknown key: got %v, want ErrNotFound", err)
	}
}

func TestRotateAPIKey(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	user, key, err := auth.Register(ctx, "rotate@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	rotated, err := auth.RotateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if rotated.Key == key.Key {
		t.Error("rotation did not change the key value")
	}
	if rotated.ID != key.ID {
		t.Error("rotation changed the key row identity")
	}

	if _, err := auth.ResolveAPIKey(ctx, key.Key); err != store.ErrNotFound {
		t.Errorf("old key still resolves: %v", err)
	}
	if _, err := auth.ResolveAPIKey(ctx, rotated.Key); err != nil {
		t.Errorf("new key does not resolve: %v", err)
	}
}

func TestRotateAPIKeyConcurrent(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	user, original, err := auth.Register(ctx, "race@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Two rotations racing for the same owner. The key row's unique
	// constraints settle the order; both must succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = auth.RotateAPIKey(ctx, user.ID)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
	}

	// Exactly one key row remains for the user afterward.
	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	var surviving *model.APIKey
	count := 0
	for i := range keys {
		if keys[i].UserID == user.ID {
			count++
			surviving = &keys[i].APIKey
		}
	}
	if count != 1 {
		t.Fatalf("found %d key rows for the user, want exactly 1", count)
	}
	if surviving.ID != original.ID {
		t.Error("rotation changed the key row identity")
	}
	if surviving.Key == original.Key {
		t.Error("key value unchanged after concurrent rotations")
	}

	if _, err := auth.ResolveAPIKey(ctx, surviving.Key); err != nil {
		t.Errorf("surviving key does not resolve: %v", err)
	}
	if _, err := auth.ResolveAPIKey(ctx, original.Key); err != store.ErrNotFound {
		t.Errorf("original key still resolves: %v", err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	auth, _ := newTestAuth(t)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := auth.VerifyToken(tok); err != ErrInvalidCredentials {
			t.Errorf("VerifyToken(%q): got %v, want ErrInvalidCredentials", tok, err)
		}
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	short := NewAuthService(st, "test-secret", time.Nanosecond)
	user, _, err := short.Register(context.Background(), "exp@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := short.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := short.VerifyToken(token); err != ErrInvalidCredentials {
		t.Errorf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyTokenRejectsForeignSecret(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	a := NewAuthService(st, "secret-a", time.Hour)
	b := NewAuthService(st, "secret-b", time.Hour)

	user, _, err := a.Register(context.Background(), "cross@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := a.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := b.VerifyToken(token); err != ErrInvalidCredentials {
		t.Errorf("got %v, want ErrInvalidCredentials", err)
	}
}
