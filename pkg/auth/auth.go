// Package auth implements username/password authentication for Marble.
//
// Authentication resolves a username to a tenant UUID after verifying the
// password against the stored bcrypt hash. The service deliberately
// collapses "no such user" and "wrong password" into one error so the
// HTTP layer cannot leak which usernames exist.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/marble/internal/logger"
	"github.com/marmos91/marble/pkg/db"
)

// ErrInvalidCredentials is returned for unknown usernames and wrong
// passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service authenticates users against the metadata store.
//
// Thread Safety:
// Safe for concurrent use.
type Service struct {
	users *db.UserRepository
}

// NewService creates an authentication service over the user repository.
func NewService(users *db.UserRepository) *Service {
	if users == nil {
		panic("auth: user repository is required")
	}
	return &Service{users: users}
}

// Authenticate verifies the credentials and returns the user's stable
// tenant UUID. Successful authentication stamps last_login.
//
// Returns:
//   - string: Tenant UUID on success
//   - error: ErrInvalidCredentials on unknown user or password mismatch,
//     or a wrapped database error
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			// Burn a comparison anyway so unknown users cost the same
			// as wrong passwords.
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		// Login bookkeeping must not fail the request.
		logger.Warn("failed to record login for %s: %v", username, err)
	}

	return user.UUID, nil
}

// HashPassword produces a bcrypt hash suitable for db.User.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is a valid bcrypt hash of an unguessable string, used to
// equalize timing for unknown usernames.
var dummyHash = func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("marble-dummy-credential"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
}()
