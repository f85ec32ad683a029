package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/store"
)

// Refresh exchanges a refresh token for a new pair. The presented token
// is consumed: it is replaced by the new one in a single conditional
// step, so of several concurrent refreshes only one succeeds.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	claims, err := o.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrBadRefreshToken
	}
	ok, err := o.Tokens.IsValid(ctx, claims.UserID, refreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBadRefreshToken
	}
	u, err := o.Users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBadRefreshToken
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := access.CheckSession(u); err != nil {
		return nil, err
	}

	p, err := o.profile(ctx, u)
	if err != nil {
		return nil, err
	}
	pair, err := o.Tokens.Issue(u.ID, u.RoleID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := o.Tokens.Rotate(ctx, u.ID, refreshToken, pair.RefreshToken); err != nil {
		return nil, err
	}
	return &Session{User: *p, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout removes the record for refreshToken. A token that does not
// verify is treated as already logged out.
func (o *Orchestrator) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := o.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		o.Log.Debug(ctx, "logout with unverifiable token", "error", err)
		return nil
	}
	return o.Tokens.RevokeOne(ctx, claims.UserID, refreshToken)
}

// DiscardChallenge drops a pending code, e.g. when the client's
// countdown runs out.
func (o *Orchestrator) DiscardChallenge(ctx context.Context, email, otpID string) error {
	return o.OTP.Discard(ctx, strings.ToLower(strings.TrimSpace(email)), otpID)
}
