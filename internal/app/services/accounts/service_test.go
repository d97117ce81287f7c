package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/lampstack/versekeeper/internal/app/storage/memory"
)

func TestService_RegisterAndLogin(t *testing.T) {
	store := memory.New()
	svc := New(store, []byte("test-secret"), nil)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "anna", "Anna@Example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	if u.Email != "anna@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}
	if u.CurrentRank != "Nicodemus" || u.VersesMemorized != 0 {
		t.Fatalf("new user should start unranked at Nicodemus: %+v", u)
	}
	if u.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored in the clear")
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	id, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if id != u.ID {
		t.Fatalf("token names user %d, want %d", id, u.ID)
	}

	logged, loginToken, err := svc.Login(ctx, "anna@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != u.ID || loginToken == "" {
		t.Fatalf("unexpected login result: %+v", logged)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := New(memory.New(), []byte("test-secret"), nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "ab", "a@example.com", "hunter2hunter2"},
		{"bad characters", "an na", "a@example.com", "hunter2hunter2"},
		{"bad email", "anna", "not-an-email", "hunter2hunter2"},
		{"short password", "anna", "a@example.com", "short"},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(ctx, tc.username, tc.email, tc.password); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestService_RegisterRejectsDuplicates(t *testing.T) {
	svc := New(memory.New(), []byte("test-secret"), nil)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "anna", "anna@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "anna2", "anna@example.com", "hunter2hunter2"); !errors.Is(err, ErrCredentialsTaken) {
		t.Fatalf("expected ErrCredentialsTaken for email, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "anna", "other@example.com", "hunter2hunter2"); !errors.Is(err, ErrCredentialsTaken) {
		t.Fatalf("expected ErrCredentialsTaken for username, got %v", err)
	}
}

func TestService_LoginFailures(t *testing.T) {
	svc := New(memory.New(), []byte("test-secret"), nil)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "anna", "anna@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "anna@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "missing@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_VerifyTokenRejectsGarbage(t *testing.T) {
	svc := New(memory.New(), []byte("test-secret"), nil)

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// Tokens signed with another secret must not verify.
	other := New(memory.New(), []byte("other-secret"), nil)
	if _, token, err := other.Register(context.Background(), "anna", "anna@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	} else if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for foreign token, got %v", err)
	}
}
