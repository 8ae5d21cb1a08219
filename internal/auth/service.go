package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/users"
)

// ErrInvalidCredentials covers unknown accounts, wrong passwords and
// deactivated users alike, so a failed login reveals nothing.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken marks missing, expired or revoked tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenTTL is how long an issued token stays valid without re-login.
const TokenTTL = 24 * time.Hour

// UserDirectory is the slice of the users repository auth needs.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Service implements credential checks and bearer-token sessions backed by
// Redis.
type Service struct {
	users  UserDirectory
	tokens *redis.Client
}

// NewService constructs the auth service.
func NewService(users UserDirectory, tokens *redis.Client) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login validates the credentials and issues a fresh bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *users.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.tokens.Set(ctx, tokenKey(token), user.ID, TokenTTL).Err(); err != nil {
		return "", nil, fmt.Errorf("store token: %w", err)
	}
	return token, user, nil
}

// Resolve maps a bearer token back to the acting principal. Each successful
// resolve slides the token's expiry forward.
func (s *Service) Resolve(ctx context.Context, token string) (authz.Actor, error) {
	userID, err := s.tokens.Get(ctx, tokenKey(token)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return authz.Actor{}, ErrInvalidToken
		}
		return authz.Actor{}, fmt.Errorf("resolve token: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return authz.Actor{}, ErrInvalidToken
	}
	if err := s.tokens.Expire(ctx, tokenKey(token), TokenTTL).Err(); err != nil {
		return authz.Actor{}, fmt.Errorf("refresh token: %w", err)
	}
	return authz.Actor{ID: user.ID, Role: user.Role}, nil
}

// Logout revokes the token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Del(ctx, tokenKey(token)).Err()
}

func tokenKey(token string) string {
	return "auth:token:" + token
}
