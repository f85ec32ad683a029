// Package access decides whether an account may enter an auth flow.
package access

import (
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/models"
)

// Status is the account state encoded by the stored {active, suspend} pair.
type Status int

const (
	StatusActive Status = iota
	StatusSuspended
	StatusDeactivated
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusDeactivated:
		return "inactive"
	case StatusDeleted:
		return "deleted"
	}
	return "unknown"
}

// StatusOf maps every {active, suspend} pair onto exactly one status.
// An active account that is also suspended counts as suspended.
func StatusOf(a models.Access) Status {
	switch {
	case a.Active && a.Suspend:
		return StatusSuspended
	case a.Active:
		return StatusActive
	case a.Suspend:
		return StatusDeactivated
	default:
		return StatusDeleted
	}
}

// AccessFor is the inverse of StatusOf.
func AccessFor(s Status) models.Access {
	switch s {
	case StatusSuspended:
		return models.Access{Active: true, Suspend: true}
	case StatusDeactivated:
		return models.Access{Active: false, Suspend: true}
	case StatusDeleted:
		return models.Access{}
	default:
		return models.Access{Active: true}
	}
}

var (
	ErrNoAccount   = apperr.NotFound("No account found with this email. Please register first.")
	ErrSuspended   = apperr.Forbidden("Your account has been suspended. Please contact support.").WithVerify()
	ErrDeleted     = apperr.Forbidden("No account found with this email. Please register first.").WithVerify()
	ErrDeactivated = apperr.Forbidden("Your account is inactive. Please contact support.").WithVerify()

	// ErrSessionDeleted replaces ErrDeleted once the caller already holds a session.
	ErrSessionDeleted = apperr.Forbidden("Your account has been deleted. Please contact support.").WithVerify()

	ErrSignupSuspended = apperr.Forbidden("This email is linked to a suspended account. Please contact support.")
	ErrEmailTaken      = apperr.Conflict("An account with this email already exists.")
)

// CheckLogin guards login and password reset.
func CheckLogin(u *models.User) error {
	if u == nil {
		return ErrNoAccount
	}
	switch StatusOf(u.Access) {
	case StatusSuspended:
		return ErrSuspended
	case StatusDeleted:
		return ErrDeleted
	case StatusDeactivated:
		return ErrDeactivated
	}
	return nil
}

// CheckSession guards token refresh and profile reads. It differs from
// CheckLogin only in how a deleted account is reported.
func CheckSession(u *models.User) error {
	if u != nil && StatusOf(u.Access) == StatusDeleted {
		return ErrSessionDeleted
	}
	return CheckLogin(u)
}

// CheckSignup allows new emails and soft-deleted accounts, whose slot
// can be reclaimed.
func CheckSignup(u *models.User) error {
	if u == nil {
		return nil
	}
	switch StatusOf(u.Access) {
	case StatusDeleted:
		return nil
	case StatusSuspended, StatusDeactivated:
		// any account carrying the suspend flag reads as suspended here
		return ErrSignupSuspended
	}
	return ErrEmailTaken
}

// CheckGoogle treats a missing or soft-deleted account as an implicit signup.
func CheckGoogle(u *models.User) error {
	if u == nil {
		return nil
	}
	switch StatusOf(u.Access) {
	case StatusDeleted, StatusActive:
		return nil
	}
	// both remaining states carry the suspend flag
	return ErrSuspended
}
