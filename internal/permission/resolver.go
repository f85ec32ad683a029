// Package permission resolves a role into the permission matrix clients see.
package permission

import (
	"context"
	"errors"
	"strings"

	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/store"
)

var ErrRoleNotFound = apperr.NotFound("Role not found for this user.")

type ModuleRef struct {
	Slug   string              `json:"slug"`
	UID    string              `json:"uid"`
	Status models.ModuleStatus `json:"status"`
}

type Entry struct {
	Module  ModuleRef      `json:"module"`
	Actions models.Actions `json:"actions"`
}

// Resolved is the effective role handed back with every session.
type Resolved struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	UID         string  `json:"uid"`
	Permissions []Entry `json:"permissions"`
}

// RoutePrefix is the lowercased role name used to build client routes.
func (r *Resolved) RoutePrefix() string {
	return RoutePrefix(r.Name)
}

func RoutePrefix(roleName string) string {
	return strings.ToLower(roleName)
}

type Resolver struct {
	roles store.Roles
}

func NewResolver(roles store.Roles) *Resolver {
	return &Resolver{roles: roles}
}

// Resolve loads the role and keeps only permissions whose module still
// exists and is active.
func (r *Resolver) Resolve(ctx context.Context, roleID string) (*Resolved, error) {
	role, err := r.roles.GetRole(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := &Resolved{Name: role.Name, Slug: role.Slug, UID: role.UID, Permissions: []Entry{}}
	for _, p := range role.Permissions {
		mod, err := r.roles.GetModule(ctx, p.ModuleID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !mod.Status.Active {
			continue
		}
		out.Permissions = append(out.Permissions, Entry{
			Module:  ModuleRef{Slug: mod.Slug, UID: mod.UID, Status: mod.Status},
			Actions: p.Actions,
		})
	}
	return out, nil
}

// Allowed reports whether roleID may perform action on the module with
// the given slug.
func (r *Resolver) Allowed(ctx context.Context, roleID, moduleSlug, action string) (bool, error) {
	res, err := r.Resolve(ctx, roleID)
	if err != nil {
		return false, err
	}
	for _, e := range res.Permissions {
		if e.Module.Slug == moduleSlug {
			return e.Actions.Allows(action), nil
		}
	}
	return false, nil
}
