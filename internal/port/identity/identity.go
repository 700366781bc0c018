// Package identity defines the port for authenticating portal users.
package identity

import (
	"context"

	"github.com/Strob0t/Herald/internal/domain/user"
)

// Provider signs users in and resolves bearer tokens to identities.
// Both methods return domain.ErrUnauthorized for rejected credentials.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*user.Identity, error)
	Verify(ctx context.Context, token string) (*user.Identity, error)
}
