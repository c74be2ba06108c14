package service

import (
	"context"
	"time"

	"github.com/xxxsen/mpage/internal/config"
	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/pkg/jwt"
	"github.com/xxxsen/mpage/internal/pkg/password"
)

// AuthService authenticates the users listed in the configuration.
type AuthService struct {
	users     map[string]*model.User
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users []config.UserConfig, secret []byte, ttl time.Duration) *AuthService {
	m := make(map[string]*model.User, len(users))
	for _, u := range users {
		m[u.Name] = &model.User{
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			Permissions:  append([]string(nil), u.Permissions...),
		}
	}
	return &AuthService{users: m, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Login(ctx context.Context, name, plainPassword string) (*model.User, string, error) {
	user, ok := s.users[name]
	if !ok || !password.Match(user.PasswordHash, plainPassword) {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.Name, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := jwt.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, appErr.ErrUnauthorized
	}
	user, ok := s.users[claims.Name]
	if !ok {
		return nil, appErr.ErrUnauthorized
	}
	return user, nil
}

func (s *AuthService) TTL() time.Duration {
	return s.jwtTTL
}
