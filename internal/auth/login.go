package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/otp"
	"github.com/example/rbacauth/internal/store"
)

// unusablePasswordHash is stored for accounts created through Google.
// It is not a valid bcrypt hash, so password login always fails.
const unusablePasswordHash = "!"

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Query    string `json:"query"`
}

type GoogleInput struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	UID        string `json:"uid"`
	ProfilePic string `json:"profile_pic"`
	Query      string `json:"query"`
}

// Login checks the password and emails a login code.
func (o *Orchestrator) Login(ctx context.Context, in LoginInput) (*Challenge, error) {
	if err := validateLogin(&in); err != nil {
		return nil, err
	}
	u, err := o.findUser(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if err := access.CheckLogin(u); err != nil {
		return nil, err
	}
	v, err := o.requireVisitor(ctx, in.Query, ErrSuspicious)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, ErrBadCredentials
	}
	if !u.HasVisitor(v.ID) {
		u.AddVisitor(v.ID)
		if err := o.saveUser(ctx, u); err != nil {
			return nil, err
		}
	}

	c, err := o.OTP.Issue(ctx, otp.Pending{
		Email:     u.Email,
		Username:  u.Username,
		VisitorID: v.ID,
		Purpose:   models.PurposeLogin,
	})
	if err != nil {
		return nil, err
	}
	o.notify(ctx, o.Composer.LoginCode(u.Email, u.Username, c.Code, c.ID, o.OTP.TTL()))

	return &Challenge{Message: MsgLoginCodeSent, Username: u.Username, Email: u.Email, OTPID: c.ID}, nil
}

// VerifyLogin consumes the login code and opens a session.
func (o *Orchestrator) VerifyLogin(ctx context.Context, otpID, code string) (*Session, error) {
	c, err := o.OTP.Verify(ctx, otpID, code)
	if err != nil {
		return nil, err
	}
	if c.Purpose != models.PurposeLogin {
		return nil, otp.ErrChallengeNotFound
	}
	if _, err := o.requireVisitor(ctx, c.VisitorID,
		apperr.NotFound("Your session could not be verified. Please try signing in again.").WithRefresh()); err != nil {
		return nil, err
	}
	u, err := o.findUser(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("No account was found with this email address. Please create an account first.")
	}
	if err := access.CheckLogin(u); err != nil {
		return nil, err
	}

	firstLogin := u.FirstLogin
	now := o.now()
	u.AddVisitor(c.VisitorID)
	u.FirstLogin = false
	u.GoogleAuth = false
	if !u.TimeAdded.IsZero() {
		u.LastLoginAt = u.TimeAdded
	}
	u.TimeAdded = now
	u.UID = newUID()
	if err := o.saveUser(ctx, u); err != nil {
		return nil, err
	}

	s, err := o.establish(ctx, u)
	if err != nil {
		return nil, err
	}
	o.notify(ctx, o.Composer.SignedIn(u.Email, u.Username, firstLogin))
	return s, nil
}

// GoogleAuth signs in with an identity already verified by Google. A
// missing or soft-deleted account is created or reclaimed on the spot.
func (o *Orchestrator) GoogleAuth(ctx context.Context, in GoogleInput) (*Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.UID) == "" {
		return nil, apperr.InvalidInput("Invalid Google account data received. Please try again.")
	}
	u, err := o.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := access.CheckGoogle(u); err != nil {
		return nil, err
	}
	v, err := o.requireVisitor(ctx, in.Query,
		apperr.NotFound("Your session could not be verified. Please try again.").WithRefresh())
	if err != nil {
		return nil, err
	}

	now := o.now()
	created := u == nil
	if created {
		roleID, err := o.defaultRole(ctx, "Unable to assign a default role. Please contact support.")
		if err != nil {
			return nil, err
		}
		u = &models.User{
			ID:           uuid.NewString(),
			UID:          newUID(),
			Email:        email,
			Username:     in.Username,
			PasswordHash: unusablePasswordHash,
			Access:       access.AccessFor(access.StatusActive),
			RoleID:       roleID,
			Visitors:     []string{v.ID},
			GoogleUID:    in.UID,
			ProfilePic:   in.ProfilePic,
			FirstLogin:   true,
			GoogleAuth:   true,
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
		if !u.Access.Active && in.Username != "" {
			u.Username = in.Username
		}
		u.AddVisitor(v.ID)
		u.FirstLogin = false
		u.GoogleAuth = true
		if !u.TimeAdded.IsZero() {
			u.LastLoginAt = u.TimeAdded
		}
		u.TimeAdded = now
		u.Access = access.AccessFor(access.StatusActive)
		if u.GoogleUID == "" {
			u.GoogleUID = in.UID
		}
		if in.ProfilePic != "" {
			u.ProfilePic = in.ProfilePic
		}
		u.UID = newUID()
		if err := o.saveUser(ctx, u); err != nil {
			return nil, err
		}
	}

	s, err := o.establish(ctx, u)
	if err != nil {
		return nil, err
	}
	o.notify(ctx, o.Composer.GoogleSignedIn(u.Email, u.Username, created))
	return s, nil
}
