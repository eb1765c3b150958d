// Package auth verifies reviewer and employee credentials for the CLI
// binaries. Passwords are stored bcrypt-hashed.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"expensedesk/internal/core"
	"expensedesk/internal/storage"
)

var (
	// ErrInvalidCredentials covers both unknown username and wrong
	// password, so a caller cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrNotAuthorized = errors.New("user is not authorized for this action")
)

// UserFinder is the storage dependency of the login flow.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (core.User, error)
}

type Service struct {
	users UserFinder
}

func NewService(users UserFinder) *Service {
	return &Service{users: users}
}

// Login verifies the password against the stored hash.
func (s *Service) Login(ctx context.Context, username, password string) (core.User, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}

	slog.InfoContext(ctx, "User logged in", "username", user.Username, "role", user.Role)
	return user, nil
}

// LoginAs additionally requires the given role (the manager menu only
// admits reviewers).
func (s *Service) LoginAs(ctx context.Context, username, password, role string) (core.User, error) {
	user, err := s.Login(ctx, username, password)
	if err != nil {
		return core.User{}, err
	}
	if user.Role != role {
		return core.User{}, ErrNotAuthorized
	}
	return user, nil
}

// HashPassword produces the stored form of a password (seeding, user
// provisioning).
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// UserStore extends UserFinder with creation, for first-run seeding.
type UserStore interface {
	UserFinder
	CreateUser(ctx context.Context, u core.User) error
}

// EnsureUser creates the user if it does not exist yet and returns it.
// Existing users are returned unchanged; their password is not rewritten.
func EnsureUser(ctx context.Context, store UserStore, username, password, role string) (core.User, error) {
	existing, err := store.FindUserByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	user := core.User{Username: username, PasswordHash: hash, Role: role}
	if err := store.CreateUser(ctx, user); err != nil {
		return core.User{}, err
	}

	created, err := store.FindUserByUsername(ctx, username)
	if err != nil {
		return core.User{}, fmt.Errorf("reload created user: %w", err)
	}
	slog.InfoContext(ctx, "Seeded user", "username", username, "role", role)
	return created, nil
}
