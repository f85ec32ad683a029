package token

import (
	"context"
	"errors"

	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/store"
)

var ErrRefreshRejected = apperr.Unauthorized("Your session has expired. Please sign in again.").WithVerify()

// Service ties issued refresh tokens to stored records. Signature checks
// alone never make a refresh token valid.
type Service struct {
	*Manager
	store store.RefreshTokens
}

func NewService(m *Manager, s store.RefreshTokens) *Service {
	return &Service{Manager: m, store: s}
}

func (s *Service) record(token string) models.RefreshToken {
	now := s.now()
	return models.RefreshToken{Token: token, CreatedAt: now, ExpiresAt: now.Add(s.refreshTTL)}
}

// Persist stores a record for token expiring after the refresh TTL.
func (s *Service) Persist(ctx context.Context, userID, token string) error {
	if err := s.store.AddRefreshToken(ctx, userID, s.record(token)); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// RevokeOne removes exactly the matching record, if any.
func (s *Service) RevokeOne(ctx context.Context, userID, token string) error {
	if _, err := s.store.RemoveRefreshToken(ctx, userID, token); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// IsValid reports whether a record for token exists and has not expired.
// A missing record is not an error; a failing store is.
func (s *Service) IsValid(ctx context.Context, userID, token string) (bool, error) {
	t, err := s.store.FindRefreshToken(ctx, userID, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err)
	}
	return t.Valid(s.now()), nil
}

// Rotate replaces old with next in one conditional step. Only one of
// several concurrent rotations of the same token can succeed.
func (s *Service) Rotate(ctx context.Context, userID, old, next string) error {
	err := s.store.RotateRefreshToken(ctx, userID, old, s.record(next), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrRefreshRejected
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Sweep deletes records that expired before now.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredRefreshTokens(ctx, s.now())
}
