package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/user"
)

// mockUserStore implements database.UserStore in memory.
type mockUserStore struct {
	mu    sync.Mutex
	users []user.User
}

func (m *mockUserStore) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
		}
	}
	m.users = append(m.users, *u)
	return nil
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserStore) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]user.User(nil), m.users...), nil
}

func (m *mockUserStore) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].PasswordHash = hash
			return nil
		}
	}
	return domain.ErrNotFound
}

func newTestAuthService(store *mockUserStore) *AuthService {
	return NewAuthService(store, config.Auth{
		JWTSecret:         "test-secret-key-must-be-long-enough",
		AccessTokenExpiry: 15 * time.Minute,
		BcryptCost:        4, // low cost for fast tests
	})
}

func TestAuthService_RegisterAndSignIn(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})
	ctx := context.Background()

	u, err := svc.Register(ctx, &user.CreateRequest{
		Email:    "Student@Example.com",
		FullName: "Sam Student",
		Password: "Password123",
		Role:     user.RoleStudent,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "student@example.com" {
		t.Errorf("email = %q, want normalized", u.Email)
	}

	id, err := svc.SignIn(ctx, "student@example.com", "Password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if id.Role != user.RoleStudent || id.AccessToken == "" {
		t.Errorf("identity = %+v", id)
	}

	verified, err := svc.Verify(ctx, id.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.ID != u.ID || verified.Email != u.Email || verified.Role != user.RoleStudent {
		t.Errorf("verified = %+v", verified)
	}
}

func TestAuthService_InvalidSignIn(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, &user.CreateRequest{
		Email: "f@example.com", Password: "Password123", Role: user.RoleFaculty,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "f@example.com", "nope-nope"},
		{"unknown user", "x@example.com", "Password123"},
		{"empty password", "f@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SignIn(ctx, tt.email, tt.password); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestAuthService_VerifyRejects(t *testing.T) {
	store := &mockUserStore{}
	svc := newTestAuthService(store)
	ctx := context.Background()
	if _, err := svc.Register(ctx, &user.CreateRequest{
		Email: "s@example.com", Password: "Password123", Role: user.RoleStudent,
	}); err != nil {
		t.Fatal(err)
	}
	id, err := svc.SignIn(ctx, "s@example.com", "Password123")
	if err != nil {
		t.Fatal(err)
	}

	other := NewAuthService(store, config.Auth{JWTSecret: "another-secret", AccessTokenExpiry: time.Minute, BcryptCost: 4})
	if _, err := other.Verify(ctx, id.AccessToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("wrong secret: expected ErrUnauthorized, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := svc.Verify(ctx, id.AccessToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expired: expected ErrUnauthorized, got %v", err)
	}

	if _, err := svc.Verify(ctx, "not.a.token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("malformed: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_DuplicateRegister(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})
	req := &user.CreateRequest{Email: "d@example.com", Password: "Password123", Role: user.RoleAdmin}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAuthService_SetPassword(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, &user.CreateRequest{Email: "p@example.com", Password: "Password123", Role: user.RoleStudent}); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetPassword(ctx, "p@example.com", "short"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.SetPassword(ctx, "p@example.com", "NewPassword456"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := svc.SignIn(ctx, "p@example.com", "NewPassword456"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestAuthService_InvalidRegister(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})
	_, err := svc.Register(context.Background(), &user.CreateRequest{Email: "bad", Password: "Password123", Role: user.RoleStudent})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
