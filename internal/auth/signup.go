package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/otp"
	"github.com/example/rbacauth/internal/store"
)

type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Query    string `json:"query"`
}

// Signup stages a new account and emails a verification code. Nothing is
// written to the user store until the code is verified.
func (o *Orchestrator) Signup(ctx context.Context, in SignupInput) (*Challenge, error) {
	if err := validateSignup(&in); err != nil {
		return nil, err
	}
	existing, err := o.findUser(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if err := access.CheckSignup(existing); err != nil {
		return nil, err
	}
	if _, err := o.requireVisitor(ctx, in.Query, ErrSuspicious); err != nil {
		return nil, err
	}
	if _, err := o.defaultRole(ctx, "Unable to set up your account. Please try again later."); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), o.BcryptCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	c, err := o.OTP.Issue(ctx, otp.Pending{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
		VisitorID:    in.Query,
		Purpose:      models.PurposeSignup,
	})
	if err != nil {
		return nil, err
	}
	o.notify(ctx, o.Composer.SignupCode(in.Email, in.Username, c.Code, c.ID, o.OTP.TTL()))

	return &Challenge{Message: MsgCodeSent, Username: in.Username, Email: in.Email, OTPID: c.ID}, nil
}

// VerifySignup consumes the signup code and creates the account, or
// reclaims a soft-deleted account registered under the same email.
func (o *Orchestrator) VerifySignup(ctx context.Context, otpID, code string) (*Session, error) {
	c, err := o.OTP.Verify(ctx, otpID, code)
	if err != nil {
		return nil, err
	}
	if c.Purpose != models.PurposeSignup {
		return nil, otp.ErrChallengeNotFound
	}
	roleID, err := o.defaultRole(ctx, "We could not assign a role to your account. Please contact support.")
	if err != nil {
		return nil, err
	}
	if _, err := o.requireVisitor(ctx, c.VisitorID,
		apperr.NotFound("Your session could not be verified. Please try signing up again.").WithRefresh()); err != nil {
		return nil, err
	}

	u, err := o.findUser(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	// the account may have changed state since the code was issued
	if err := access.CheckSignup(u); err != nil {
		return nil, err
	}

	now := o.now()
	if u == nil {
		u = &models.User{
			ID:           uuid.NewString(),
			UID:          newUID(),
			Email:        c.Email,
			Username:     c.Username,
			PasswordHash: c.PasswordHash,
			Access:       access.AccessFor(access.StatusActive),
			RoleID:       roleID,
			Visitors:     []string{c.VisitorID},
			ProfilePic:   o.DefaultProfilePic,
			FirstLogin:   true,
			Subscribed:   true,
			TimeAdded:    now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := o.Users.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, access.ErrEmailTaken
			}
			return nil, apperr.Internal(err)
		}
	} else {
		u.Username = c.Username
		u.PasswordHash = c.PasswordHash
		u.Access = access.AccessFor(access.StatusActive)
		u.Subscribed = true
		u.FirstLogin = false
		u.LastLoginAt = now
		u.UID = newUID()
		u.AddVisitor(c.VisitorID)
		if u.RoleID == "" {
			u.RoleID = roleID
		}
		if err := o.saveUser(ctx, u); err != nil {
			return nil, err
		}
	}

	s, err := o.establish(ctx, u)
	if err != nil {
		return nil, err
	}
	o.notify(ctx, o.Composer.Welcome(u.Email, u.Username))
	o.Log.Info(ctx, "account verified", "user_id", u.ID)
	return s, nil
}
