// Package user defines accounts that sign in to book events.
package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Strob0t/Herald/internal/domain"
)

// Role represents which portal a user may sign in to.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RoleStudent: true,
	RoleFaculty: true,
	RoleAdmin:   true,
}

// DashboardPath is where a successful login redirects.
const DashboardPath = "/dashboard.html"

// ErrInvalidLogin is the single message returned for any rejected login so
// callers cannot tell which part was wrong.
const ErrInvalidLogin = "Invalid credentials or role"

// User is a locally stored account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullname"`
	PasswordHash string    `json:"-"` // never serialized
	Role         Role      `json:"role"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is an authenticated principal as reported by an identity provider.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"fullname,omitempty"`
	Role        Role   `json:"role"`
	AccessToken string `json:"-"`
}

// LoginRequest is the body of a portal login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// LoginResponse tells the browser where to go next.
type LoginResponse struct {
	Redirect    string `json:"redirect"`
	AccessToken string `json:"access_token,omitempty"`
}

// CreateRequest is the input for registering a local user.
type CreateRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullname"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Role     Role   `json:"role"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return domain.Invalid("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return domain.Invalid("invalid email format")
	}
	if len(r.Password) < 8 {
		return domain.Invalid("password must be at least 8 characters")
	}
	if !ValidRoles[r.Role] {
		return domain.Invalidf("invalid role %q", r.Role)
	}
	return nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
