package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/store"
)

// HandleMe returns the caller's profile and effective permissions.
// GET /api/auth/me
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, err := a.auth.Profile(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, p)
}

// HandleGetRole returns the resolved permission matrix of a role.
// GET /api/role-management/roles/{id}
func (a *App) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	res, err := a.resolver.Resolve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

type visitorReq struct {
	Query  string `json:"query"`
	Device string `json:"device"`
}

// HandleRegisterVisitor records a device fingerprint and returns the
// visitor reference clients send as "query" in the auth flows.
// POST /api/visitor
func (a *App) HandleRegisterVisitor(w http.ResponseWriter, r *http.Request) {
	var in visitorReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		writeAppError(w, r, a.log, apperr.InvalidInput("Identifier is required."))
		return
	}
	if in.Device == "" {
		in.Device = r.UserAgent()
	}
	v, err := a.store.TouchVisitor(r.Context(), in.Query, in.Device, time.Now())
	if err != nil {
		writeAppError(w, r, a.log, apperr.Internal(err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"id":         v.ID,
		"impression": v.Impression,
	})
}

// HandleCheckVisitor reports whether a visitor reference is known.
// POST /api/visitor/checkvisitor
func (a *App) HandleCheckVisitor(w http.ResponseWriter, r *http.Request) {
	var in visitorReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	if in.Query == "" {
		writeAppError(w, r, a.log, apperr.InvalidInput("Identifier is required."))
		return
	}
	_, err := a.store.GetVisitor(r.Context(), in.Query)
	if errors.Is(err, store.ErrNotFound) {
		writeAppError(w, r, a.log, apperr.NotFound("Suspicious request detected").WithRefresh())
		return
	}
	if err != nil {
		writeAppError(w, r, a.log, apperr.Internal(err))
		return
	}
	writeMessage(w, http.StatusOK, "Visitor verified.")
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.log.Warn(r.Context(), "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	if a.otpPing != nil {
		if err := a.otpPing(r.Context()); err != nil {
			a.log.Warn(r.Context(), "otp store not ready", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
