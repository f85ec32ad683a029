package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/store"
)

type ForgotInput struct {
	Email string `json:"email"`
	Query string `json:"query"`
}

type ChangePasswordInput struct {
	UID      string `json:"uid"`
	Password string `json:"password"`
}

// ForgotPassword emails a reset link addressed by the account's current
// uid. Requests from a device the account has never used get a warning
// email instead; the response is identical either way.
func (o *Orchestrator) ForgotPassword(ctx context.Context, in ForgotInput) (string, error) {
	if strings.TrimSpace(in.Email) == "" {
		return "", apperr.InvalidInput("Please enter the email address associated with your account.")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return "", err
	}
	u, err := o.findUser(ctx, email)
	if err != nil {
		return "", err
	}
	if err := access.CheckLogin(u); err != nil {
		return "", err
	}
	v, err := o.requireVisitor(ctx, in.Query, ErrSuspicious)
	if err != nil {
		return "", err
	}

	if u.HasVisitor(v.ID) {
		o.notify(ctx, o.Composer.ResetLink(u.Email, u.Username, u.UID))
	} else {
		o.Log.Warn(ctx, "password reset from unknown visitor", "user_id", u.ID, "visitor_id", v.ID)
		o.notify(ctx, o.Composer.SuspiciousReset(u.Email, u.Username, u.UID, v.Device))
	}
	return MsgResetSent, nil
}

// ChangePassword sets a new password for the account addressed by uid
// and rotates the uid so the reset link cannot be reused.
func (o *Orchestrator) ChangePassword(ctx context.Context, in ChangePasswordInput) (string, error) {
	if in.UID == "" || in.Password == "" {
		return "", apperr.InvalidInput("Please provide your new password.")
	}
	if err := checkPasswordPolicy(in.Password); err != nil {
		return "", err
	}
	u, err := o.Users.GetUserByUID(ctx, in.UID)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.NotFound("No user found for the provided account.")
	}
	if err != nil {
		return "", apperr.Internal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), o.BcryptCost)
	if err != nil {
		return "", apperr.Internal(err)
	}
	u.PasswordHash = string(hash)
	u.UID = newUID()
	if err := o.saveUser(ctx, u); err != nil {
		return "", err
	}
	o.notify(ctx, o.Composer.PasswordChanged(u.Email, u.Username))
	return MsgPasswordSet, nil
}
