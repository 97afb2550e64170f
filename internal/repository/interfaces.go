package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
)

// ErrNotFound is returned by all repositories when a row is absent.
var ErrNotFound = errors.New("repository: not found")

// UserRepository exposes persistence for marketplace accounts.
//
// UpdatePassword and InvalidateSessions each run their writes in a single
// transaction so a concurrent refresh cannot slip between the token-version
// bump and the session purge.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	// UpdatePassword sets a new hash, bumps the token version, and purges
	// every refresh token owned by the user.
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	// InvalidateSessions bumps the token version and purges every refresh
	// token owned by the user ("logout everywhere").
	InvalidateSessions(ctx context.Context, userID int64) error
}

// RefreshTokenRepository handles session persistence. A session slot is
// identified by its current token string.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	// Rotate rewrites the row in place, conditional on the old token string
	// still being current. It reports false when the row was already
	// rotated, revoked, or never existed.
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (bool, error)
	// DeleteByToken removes every row matching the token string. Deleting
	// an absent token is not an error.
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error)
}

// ResetTokenRepository stores one-time password reset capabilities.
type ResetTokenRepository interface {
	Create(ctx context.Context, token domain.ResetToken) error
	GetByToken(ctx context.Context, token string) (domain.ResetToken, error)
	// Delete is idempotent; redeeming and expiring both remove the row.
	Delete(ctx context.Context, token string) error
}
