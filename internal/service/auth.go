package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/user"
	"github.com/Strob0t/Herald/internal/port/database"
	"github.com/Strob0t/Herald/internal/port/identity"
)

const (
	tokenIssuer   = "herald"
	tokenAudience = "herald-portal"
)

var _ identity.Provider = (*AuthService)(nil)

// tokenClaims are the claims of access tokens issued for local accounts.
type tokenClaims struct {
	Email    string    `json:"email"`
	FullName string    `json:"fullname,omitempty"`
	Role     user.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService is the identity provider of the postgres booking backend:
// bcrypt-hashed local accounts and HS256 access tokens.
type AuthService struct {
	store  database.UserStore
	cfg    config.Auth
	secret []byte
	now    func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.UserStore, cfg config.Auth) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        user.NormalizeEmail(req.Email),
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Enabled:      true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// SignIn checks the password of a local account and issues an access token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*user.Identity, error) {
	if email == "" || password == "" {
		return nil, domain.ErrUnauthorized
	}
	u, err := s.store.GetUserByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.Enabled {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.signToken(u)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &user.Identity{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		AccessToken: token,
	}, nil
}

// Verify resolves an access token issued by SignIn.
func (s *AuthService) Verify(_ context.Context, token string) (*user.Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", errors.Join(domain.ErrUnauthorized, err))
	}
	return &user.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}, nil
}

// ListUsers returns all local accounts.
func (s *AuthService) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// SetPassword replaces the password of the account with the given email.
func (s *AuthService) SetPassword(ctx context.Context, email, password string) error {
	if len(password) < 8 {
		return domain.Invalid("password must be at least 8 characters")
	}
	u, err := s.store.GetUserByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdatePassword(ctx, u.ID, string(hash))
}

func (s *AuthService) signToken(u *user.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
