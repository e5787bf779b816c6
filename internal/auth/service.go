// Package auth registers users, issues access tokens and guards routes that need an identity.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/core/validate"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

type Service struct {
	users  UserStore
	tokens *Tokens
	cost   int
	logger *slog.Logger
}

func NewService(users UserStore, tokens *Tokens, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{users: users, tokens: tokens, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, c model.Credentials) (model.UserPublic, error) {
	if err := validate.Struct(c); err != nil {
		return model.UserPublic{}, err
	}
	hashed, err := HashPassword(c.Password, s.cost)
	if err != nil {
		return model.UserPublic{}, err
	}
	err = s.users.CreateUser(ctx, model.User{Email: c.Email, HashedPassword: hashed})
	if errors.Is(err, store.ErrDuplicate) {
		return model.UserPublic{}, apperr.New(apperr.KindConflict, "Email already registered")
	}
	if err != nil {
		return model.UserPublic{}, err
	}
	s.logger.InfoContext(ctx, "user registered", "email", c.Email)
	return model.UserPublic{Email: c.Email}, nil
}

func (s *Service) Login(ctx context.Context, c model.Credentials) (model.AccessToken, error) {
	invalid := apperr.New(apperr.KindUnauthorized, "Invalid email or password")
	u, err := s.users.UserByEmail(ctx, c.Email)
	if errors.Is(err, store.ErrNotFound) {
		return model.AccessToken{}, invalid
	}
	if err != nil {
		return model.AccessToken{}, err
	}
	if !VerifyPassword(c.Password, u.HashedPassword) {
		return model.AccessToken{}, invalid
	}
	tok, err := s.tokens.Issue(u.Email)
	if err != nil {
		return model.AccessToken{}, err
	}
	return model.AccessToken{AccessToken: tok, TokenType: "bearer"}, nil
}

// Authenticate returns the email carried by a valid token.
func (s *Service) Authenticate(token string) (string, error) {
	sub, err := s.tokens.Subject(token)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnauthorized, "Invalid authentication credentials", err)
	}
	return sub, nil
}
