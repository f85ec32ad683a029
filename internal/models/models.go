// Package models holds the persisted entities shared by stores and services.
package models

import (
	"slices"
	"strings"
	"time"
)

// Access is the raw account-state pair stored with every user.
type Access struct {
	Active  bool
	Suspend bool
}

type User struct {
	ID           string
	UID          string
	Email        string
	Username     string
	PasswordHash string
	Access       Access
	RoleID       string
	Visitors     []string
	GoogleUID    string
	ProfilePic   string
	Theme        string
	FirstLogin   bool
	GoogleAuth   bool
	Subscribed   bool
	TimeAdded    time.Time
	LastLoginAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasVisitor reports whether the visitor reference is bound to the user.
func (u *User) HasVisitor(id string) bool {
	return id != "" && slices.Contains(u.Visitors, id)
}

// AddVisitor binds a visitor reference once.
func (u *User) AddVisitor(id string) {
	if id != "" && !u.HasVisitor(id) {
		u.Visitors = append(u.Visitors, id)
	}
}

// RefreshToken is one live session record owned by a user.
type RefreshToken struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Valid reports whether the record is still usable at now.
func (t RefreshToken) Valid(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}

type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeLogin  Purpose = "login"
)

// Challenge is a pending OTP verification. It is the only place
// credentials for a not-yet-verified signup exist.
type Challenge struct {
	ID           string
	Email        string
	Code         string
	Username     string
	PasswordHash string
	VisitorID    string
	Purpose      Purpose
	Attempts     int
	ExpiresAt    time.Time
	Verified     bool
	CreatedAt    time.Time
}

type Actions struct {
	Get    bool `json:"get"`
	Post   bool `json:"post"`
	Put    bool `json:"put"`
	Delete bool `json:"delete"`
}

// Allows reports whether the named HTTP-style action is granted.
func (a Actions) Allows(action string) bool {
	switch action {
	case "get":
		return a.Get
	case "post":
		return a.Post
	case "put":
		return a.Put
	case "delete":
		return a.Delete
	}
	return false
}

type Permission struct {
	ModuleID string
	Actions  Actions
}

type Role struct {
	ID          string
	UID         string
	Name        string
	Slug        string
	Permissions []Permission
}

type ModuleStatus struct {
	Active      bool `json:"active"`
	Maintenance bool `json:"maintenance"`
}

type Module struct {
	ID     string
	UID    string
	Name   string
	Slug   string
	Status ModuleStatus
}

// DefaultRoleCategory keys the Defaults record naming the role for new accounts.
const DefaultRoleCategory = "Role"

// Visitor is a device/session fingerprint a client registers before auth.
type Visitor struct {
	ID          string
	Fingerprint string
	Device      string
	Impression  int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// ModuleSlug renders the slug form used for permission checks, e.g. "_roles_".
func ModuleSlug(name string) string {
	return "_" + strings.ToLower(strings.Join(strings.Fields(name), "_")) + "_"
}

// RoleSlug renders "name-suffix" with the name lowercased and dashed.
func RoleSlug(name, suffix string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-")) + "-" + suffix
}
