package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

func newTestAuth(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewAuthService(repo, ttl)
}

func TestRegisterAndResolve(t *testing.T) {
	auth := newTestAuth(t, time.Hour)
	ctx := context.Background()

	user, token, err := auth.Register(ctx, "Alice", " Alice@Example.COM ", "hunter2-long")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "hunter2-long" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	id, err := auth.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != user.ID {
		t.Fatalf("resolve returned %q, want %q", id, user.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth := newTestAuth(t, time.Hour)
	ctx := context.Background()

	cases := []struct {
		name, userName, email, password string
	}{
		{"empty name", "", "a@b.com", "password1"},
		{"bad email", "Alice", "not-an-email", "password1"},
		{"short password", "Alice", "a@b.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := auth.Register(ctx, tc.userName, tc.email, tc.password)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth := newTestAuth(t, time.Hour)
	ctx := context.Background()

	if _, _, err := auth.Register(ctx, "Alice", "alice@example.com", "password1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, _, err := auth.Register(ctx, "Alice Again", "ALICE@example.com", "password2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	auth := newTestAuth(t, time.Hour)
	ctx := context.Background()

	registered, _, err := auth.Register(ctx, "Alice", "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, token, err := auth.Login(ctx, "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != registered.ID || token == "" {
		t.Fatalf("login result: user %q token %q", user.ID, token)
	}

	if _, _, err := auth.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	auth := newTestAuth(t, time.Hour)
	ctx := context.Background()

	_, token, err := auth.Register(ctx, "Alice", "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := auth.Resolve(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expired session: expected ErrInvalidCredentials, got %v", err)
	}

	dropped, err := auth.PruneSessions(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("pruned %d sessions, want 1", dropped)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	auth := newTestAuth(t, time.Hour)

	for _, token := range []string{"", "deadbeef"} {
		if _, err := auth.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("token %q: expected ErrInvalidCredentials, got %v", token, err)
		}
	}
}
