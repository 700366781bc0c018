package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/user"
	"github.com/Strob0t/Herald/internal/port/identity"
)

var _ identity.Provider = (*Client)(nil)

// authUser is the user object returned by Supabase Auth.
type authUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

type userMetadata struct {
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

func (u *authUser) identity(token string) *user.Identity {
	return &user.Identity{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.UserMetadata.FullName,
		Role:        user.Role(u.UserMetadata.Role),
		AccessToken: token,
	}
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*user.Identity, error) {
	if email == "" || password == "" {
		return nil, domain.ErrUnauthorized
	}
	var session struct {
		AccessToken string   `json:"access_token"`
		User        authUser `json:"user"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		url:    c.authURL + "/token?grant_type=password",
		body:   map[string]string{"email": email, "password": password},
		bearer: c.anonKey,
	}, &session)
	if err != nil {
		if s := statusOf(err); s == http.StatusBadRequest || s == http.StatusUnauthorized || s == http.StatusForbidden {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("supabase sign-in: %w", err)
	}
	return session.User.identity(session.AccessToken), nil
}

// tokenClaims are the claims of a Supabase access token.
type tokenClaims struct {
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Verify resolves a Supabase access token. With a JWT secret the token is
// checked locally, otherwise Supabase Auth is asked.
func (c *Client) Verify(ctx context.Context, token string) (*user.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if len(c.jwtSecret) > 0 {
		return c.verifyLocal(token)
	}

	var u authUser
	err := c.do(ctx, request{method: http.MethodGet, url: c.authURL + "/user", bearer: token}, &u)
	if err != nil {
		if s := statusOf(err); s == http.StatusUnauthorized || s == http.StatusForbidden {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("supabase verify: %w", err)
	}
	return u.identity(token), nil
}

func (c *Client) verifyLocal(token string) (*user.Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("supabase token: %w", errors.Join(domain.ErrUnauthorized, err))
	}
	if claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return &user.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		FullName:    claims.UserMetadata.FullName,
		Role:        user.Role(claims.UserMetadata.Role),
		AccessToken: token,
	}, nil
}
