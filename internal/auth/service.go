// Package auth registers users, checks passwords and issues the session
// tokens the HTTP API accepts.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"lcamail-engine/internal/store"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingCredentials = errors.New("email and password are required")
)

type Service struct {
	db     *sql.DB
	tokens *Tokens
}

func NewService(db *sql.DB, tokens *Tokens) *Service {
	return &Service{db: db, tokens: tokens}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates a new user.
func (s *Service) Register(ctx context.Context, email, password string) (store.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.User{}, ErrMissingCredentials
	}
	hash, err := HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	u, err := store.CreateUser(ctx, s.db, email, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, ErrUserExists
	}
	return u, err
}

// Login checks user credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, store.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", store.User{}, ErrMissingCredentials
	}
	u, err := store.GetUserByEmail(ctx, s.db, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", store.User{}, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return "", store.User{}, ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return "", store.User{}, err
	}
	return tok, u, nil
}
