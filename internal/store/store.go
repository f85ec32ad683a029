// Package store persists users, refresh-token records, OTP challenges,
// roles, modules and visitors. Three backends share one contract:
// an in-memory map store, SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/rbacauth/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
}

// RefreshTokens stores the per-user refresh-token records.
type RefreshTokens interface {
	AddRefreshToken(ctx context.Context, userID string, t models.RefreshToken) error
	FindRefreshToken(ctx context.Context, userID, token string) (*models.RefreshToken, error)
	// RemoveRefreshToken reports whether a record was removed.
	RemoveRefreshToken(ctx context.Context, userID, token string) (bool, error)
	// RotateRefreshToken removes old and inserts next as one operation.
	// It returns ErrNotFound, and inserts nothing, when old is missing or
	// already expired at now.
	RotateRefreshToken(ctx context.Context, userID, old string, next models.RefreshToken, now time.Time) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Challenges stores OTP challenges. Implementations must keep at most one
// challenge per email and make ConsumeChallenge succeed for exactly one caller.
type Challenges interface {
	ReplaceChallenge(ctx context.Context, c *models.Challenge) error
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	IncrementChallengeAttempts(ctx context.Context, id string) (int, error)
	ConsumeChallenge(ctx context.Context, id string) error
	DeleteChallenge(ctx context.Context, email, id string) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type Roles interface {
	CreateRole(ctx context.Context, r *models.Role) error
	GetRole(ctx context.Context, id string) (*models.Role, error)
	CreateModule(ctx context.Context, m *models.Module) error
	GetModule(ctx context.Context, id string) (*models.Module, error)
	GetDefault(ctx context.Context, category string) (string, error)
	SetDefault(ctx context.Context, category, refID string) error
}

type Visitors interface {
	GetVisitor(ctx context.Context, id string) (*models.Visitor, error)
	// TouchVisitor upserts by (fingerprint, device) and bumps the impression count.
	TouchVisitor(ctx context.Context, fingerprint, device string, now time.Time) (*models.Visitor, error)
}

// Store is everything a backend provides.
type Store interface {
	Users
	RefreshTokens
	Challenges
	Roles
	Visitors
	Ping(ctx context.Context) error
	Close() error
}

// EnsureDefaultRole makes sure Defaults("Role") points at an existing role,
// creating a permission-less role called name when it does not.
func EnsureDefaultRole(ctx context.Context, s Roles, name string) (string, error) {
	id, err := s.GetDefault(ctx, models.DefaultRoleCategory)
	switch {
	case err == nil:
		if _, err := s.GetRole(ctx, id); err == nil {
			return id, nil
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	r := &models.Role{
		ID:   uuid.NewString(),
		UID:  uuid.NewString(),
		Name: name,
		Slug: models.RoleSlug(name, uuid.NewString()[:8]),
	}
	if err := s.CreateRole(ctx, r); err != nil {
		return "", fmt.Errorf("create default role: %w", err)
	}
	if err := s.SetDefault(ctx, models.DefaultRoleCategory, r.ID); err != nil {
		return "", fmt.Errorf("set default role: %w", err)
	}
	return r.ID, nil
}
