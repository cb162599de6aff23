package service

import (
	"context"
	"testing"
	"time"

	"codearena/internal/user/repository"
	appErrors "codearena/pkg/errors"
)

func newAuth(t *testing.T, users repository.UserRepository) *AuthService {
	t.Helper()
	auth, err := NewAuthService(AuthConfig{
		Users:     users,
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return auth
}

func TestRegisterAndLogin(t *testing.T) {
	users := newFakeUserRepo()
	auth := newAuth(t, users)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice", "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == 0 {
		t.Error("user id should be assigned")
	}
	if user.EloRating != repository.DefaultEloRating {
		t.Errorf("rating = %v, want %v", user.EloRating, repository.DefaultEloRating)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("password must not be stored in plain text")
	}

	// Email matching is case insensitive at login.
	token, logged, err := auth.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("token should be issued")
	}
	if logged.ID != user.ID {
		t.Errorf("logged in user = %d, want %d", logged.ID, user.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newFakeUserRepo()
	auth := newAuth(t, users)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "alice", "a@example.com", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := auth.Register(ctx, "alice2", "a@example.com", "correct horse")
	if !appErrors.Is(err, appErrors.EmailAlreadyExists) {
		t.Errorf("err = %v, want EmailAlreadyExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth := newAuth(t, newFakeUserRepo())
	ctx := context.Background()

	cases := []struct {
		name, email, password string
	}{
		{"", "a@example.com", "correct horse"},
		{"alice", "not-an-email", "correct horse"},
		{"alice", "a@example.com", "short"},
	}
	for _, c := range cases {
		if _, err := auth.Register(ctx, c.name, c.email, c.password); err == nil {
			t.Errorf("Register(%q, %q, %q) should fail", c.name, c.email, c.password)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	users := newFakeUserRepo()
	auth := newAuth(t, users)
	ctx := context.Background()
	auth.Register(ctx, "alice", "a@example.com", "correct horse")

	_, _, err := auth.Login(ctx, "a@example.com", "wrong horse")
	if !appErrors.Is(err, appErrors.InvalidCredentials) {
		t.Errorf("err = %v, want InvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	auth := newAuth(t, newFakeUserRepo())
	_, _, err := auth.Login(context.Background(), "ghost@example.com", "whatever")
	if !appErrors.Is(err, appErrors.InvalidCredentials) {
		t.Errorf("err = %v, want InvalidCredentials", err)
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	users := newFakeUserRepo()
	auth := newAuth(t, users)
	ctx := context.Background()
	user, _ := auth.Register(ctx, "alice", "a@example.com", "correct horse")
	token, _, err := auth.Login(ctx, "a@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	identity, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.UserID != user.ID {
		t.Errorf("identity user = %d, want %d", identity.UserID, user.ID)
	}
	if identity.Name != "alice" {
		t.Errorf("identity name = %q, want alice", identity.Name)
	}
	if identity.Role != repository.RoleUser {
		t.Errorf("identity role = %q, want %q", identity.Role, repository.RoleUser)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	auth := newAuth(t, newFakeUserRepo())
	if _, err := auth.Authenticate(context.Background(), "not.a.token"); err == nil {
		t.Fatal("expected error for a malformed token")
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	users := newFakeUserRepo()
	auth := newAuth(t, users)
	ctx := context.Background()
	auth.Register(ctx, "alice", "a@example.com", "correct horse")
	token, _, _ := auth.Login(ctx, "a@example.com", "correct horse")

	other, err := NewAuthService(AuthConfig{Users: users, JWTSecret: "different-secret"})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if _, err := other.Authenticate(ctx, token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	users := newFakeUserRepo()
	auth, err := NewAuthService(AuthConfig{
		Users:     users,
		JWTSecret: "test-secret",
		TokenTTL:  -time.Hour,
	})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	ctx := context.Background()
	auth.Register(ctx, "alice", "a@example.com", "correct horse")
	token, _, err := auth.Login(ctx, "a@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := auth.Authenticate(ctx, token); !appErrors.Is(err, appErrors.TokenExpired) {
		t.Errorf("err = %v, want TokenExpired", err)
	}
}
