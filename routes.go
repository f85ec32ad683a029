package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/rbacauth/internal/models"
)

// rolesModule is the permission slug guarding role management.
var rolesModule = models.ModuleSlug("Roles")

// Router builds the HTTP surface. Auth routes are served under /api/auth
// and mirrored under /api/v1/auth.
func (a *App) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(a.Recover)
	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS())

	r.HandleFunc("/health", a.HandleHealth).Methods("GET")
	r.HandleFunc("/ready", a.HandleReady).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.RateLimit)

	for _, prefix := range []string{"/auth", "/v1/auth"} {
		a.authRoutes(api.PathPrefix(prefix).Subrouter())
	}

	visitors := api.PathPrefix("/visitor").Subrouter()
	visitors.HandleFunc("", a.HandleRegisterVisitor).Methods("POST", "OPTIONS")
	visitors.HandleFunc("/check", a.HandleCheckVisitor).Methods("POST", "OPTIONS")
	visitors.HandleFunc("/checkvisitor", a.HandleCheckVisitor).Methods("POST", "OPTIONS")

	roles := api.PathPrefix("/role-management").Subrouter()
	roles.Use(a.Authenticate)
	roles.Handle("/roles/{id}",
		a.RequirePermission(rolesModule, "get")(http.HandlerFunc(a.HandleGetRole)),
	).Methods("GET", "OPTIONS")

	return r
}

func (a *App) authRoutes(s *mux.Router) {
	s.HandleFunc("/signup", a.HandleSignup).Methods("POST", "OPTIONS")
	s.HandleFunc("/signup/verify", a.HandleVerifySignup).Methods("POST", "OPTIONS")
	s.HandleFunc("/verifysignupotp", a.HandleVerifySignup).Methods("POST", "OPTIONS")
	s.HandleFunc("/login", a.HandleLogin).Methods("POST", "OPTIONS")
	s.HandleFunc("/login/verify", a.HandleVerifyLogin).Methods("POST", "OPTIONS")
	s.HandleFunc("/verifysigninotp", a.HandleVerifyLogin).Methods("POST", "OPTIONS")
	s.HandleFunc("/google-auth", a.HandleGoogleAuth).Methods("POST", "OPTIONS")
	s.HandleFunc("/forgot-password", a.HandleForgotPassword).Methods("POST", "OPTIONS")
	s.HandleFunc("/forgotPasswordEmail", a.HandleForgotPassword).Methods("POST", "OPTIONS")
	s.HandleFunc("/change-password", a.HandleChangePassword).Methods("POST", "OPTIONS")
	s.HandleFunc("/delete-otp", a.HandleDeleteOTP).Methods("POST", "OPTIONS")
	s.HandleFunc("/refresh-token", a.HandleRefresh).Methods("GET", "OPTIONS")
	s.HandleFunc("/logout", a.HandleLogout).Methods("POST", "OPTIONS")
	s.Handle("/me", a.Authenticate(http.HandlerFunc(a.HandleMe))).Methods("GET", "OPTIONS")
}
