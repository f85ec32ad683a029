// Package auth composes the credential, OTP, token and permission services
// into the signup, login, Google sign-in, password and session flows.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/logging"
	"github.com/example/rbacauth/internal/mail"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/otp"
	"github.com/example/rbacauth/internal/permission"
	"github.com/example/rbacauth/internal/store"
	"github.com/example/rbacauth/internal/token"
)

const (
	MsgCodeSent      = "A verification code has been sent to your email."
	MsgLoginCodeSent = "A verification code has been sent to your email. Please check your inbox."
	MsgVerified      = "Your account has been verified successfully. You are now signed in."
	MsgResetSent     = "We’ve sent a password reset link to your registered email address."
	MsgPasswordSet   = "Your password has been updated successfully."
	MsgLoggedOut     = "You have been logged out successfully."
	MsgOTPDiscarded  = "Your verification code has expired. Please request a new one to continue."
)

var (
	ErrVisitorRequired = apperr.InvalidInput("Identifier is required.")
	ErrSuspicious      = apperr.NotFound("Suspicious request detected").WithRefresh()
	ErrBadCredentials  = apperr.Unauthorized("The email or password you entered is incorrect.")
	ErrNoRefreshToken  = apperr.Unauthorized("No refresh token")
	ErrBadRefreshToken = apperr.Unauthorized("Invalid refresh token")
)

// Deps are the collaborators an Orchestrator needs.
type Deps struct {
	Users    store.Users
	Visitors store.Visitors
	Roles    store.Roles
	OTP      *otp.Service
	Tokens   *token.Service
	Resolver *permission.Resolver
	Mailer   mail.Enqueuer
	Composer mail.Composer
	Log      logging.Logger

	BcryptCost        int
	DefaultProfilePic string
}

type Orchestrator struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Orchestrator {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	return &Orchestrator{Deps: d, now: time.Now}
}

// SetClock overrides the time source used for account timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Challenge is returned when a flow waits for an emailed code.
type Challenge struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Email    string `json:"email"`
	OTPID    string `json:"otpId"`
}

// Profile is the user view returned with every session.
type Profile struct {
	Username      string               `json:"username"`
	Email         string               `json:"email"`
	ProfilePic    string               `json:"profile_pic"`
	GoogleAuth    bool                 `json:"g_auth"`
	Theme         string               `json:"theme"`
	UID           string               `json:"uid"`
	RedirectRoute string               `json:"redirectRoute"`
	Role          *permission.Resolved `json:"role"`
}

// Session is the outcome of a successful authentication.
type Session struct {
	Message      string
	User         Profile
	AccessToken  string
	RefreshToken string
}

// requireVisitor loads the visitor the client registered before
// authenticating. A missing reference means the request cannot be tied
// to a known device.
func (o *Orchestrator) requireVisitor(ctx context.Context, id string, missing *apperr.Error) (*models.Visitor, error) {
	if id == "" {
		return nil, ErrVisitorRequired
	}
	v, err := o.Visitors.GetVisitor(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, missing
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return v, nil
}

// findUser returns nil, nil when no account has the email.
func (o *Orchestrator) findUser(ctx context.Context, email string) (*models.User, error) {
	u, err := o.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (o *Orchestrator) defaultRole(ctx context.Context, msg string) (string, error) {
	id, err := o.Roles.GetDefault(ctx, models.DefaultRoleCategory)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.Wrap(apperr.CodeInternal, msg, err)
	}
	if err != nil {
		return "", apperr.Internal(err)
	}
	return id, nil
}

func (o *Orchestrator) saveUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = o.now()
	if err := o.Users.UpdateUser(ctx, u); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// profile resolves the role for u and renders the client view.
func (o *Orchestrator) profile(ctx context.Context, u *models.User) (*Profile, error) {
	role, err := o.Resolver.Resolve(ctx, u.RoleID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Username:      u.Username,
		Email:         u.Email,
		ProfilePic:    u.ProfilePic,
		GoogleAuth:    u.GoogleAuth,
		Theme:         u.Theme,
		UID:           u.UID,
		RedirectRoute: "/" + role.RoutePrefix() + "/" + u.UID,
		Role:          role,
	}, nil
}

// establish ends every successful authentication: resolve the role,
// issue a token pair and persist the refresh record.
func (o *Orchestrator) establish(ctx context.Context, u *models.User) (*Session, error) {
	p, err := o.profile(ctx, u)
	if err != nil {
		return nil, err
	}
	pair, err := o.Tokens.Issue(u.ID, u.RoleID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := o.Tokens.Persist(ctx, u.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	return &Session{
		Message:      MsgVerified,
		User:         *p,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (o *Orchestrator) notify(ctx context.Context, m mail.Message) {
	if o.Mailer == nil {
		return
	}
	o.Mailer.Enqueue(ctx, m)
}

// Profile returns the client view of the account with id userID.
func (o *Orchestrator) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := o.Users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, access.ErrNoAccount
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := access.CheckSession(u); err != nil {
		return nil, err
	}
	return o.profile(ctx, u)
}

func newUID() string { return uuid.NewString() }
