package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/store"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRoleID
)

var (
	errMissingBearer = apperr.Unauthorized("Unauthorized").WithVerify()
	errBadBearer     = apperr.Unauthorized("Invalid/Expired token").WithVerify()
)

// Authenticate requires a valid access token in the Authorization header
// and stores the caller's user and role ids in the request context.
func (a *App) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeAppError(w, r, a.log, errMissingBearer)
			return
		}
		claims, err := a.tokens.ParseAccess(raw)
		if err != nil {
			writeAppError(w, r, a.log, errBadBearer)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRoleID, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxUserID).(string)
	return id
}

// RequirePermission lets the request through only when the caller's
// current role grants action on the active module with the given slug.
// The role is read from the account, not the token, so role changes
// apply immediately. Must run after Authenticate.
func (a *App) RequirePermission(moduleSlug, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := a.store.GetUserByID(ctx, userIDFrom(ctx))
			if errors.Is(err, store.ErrNotFound) {
				writeAppError(w, r, a.log, apperr.Forbidden("User not found").WithVerify())
				return
			}
			if err != nil {
				writeAppError(w, r, a.log, apperr.Internal(err))
				return
			}
			if err := access.CheckLogin(u); err != nil {
				writeAppError(w, r, a.log, err)
				return
			}
			ok, err := a.resolver.Allowed(ctx, u.RoleID, moduleSlug, action)
			if err != nil {
				writeAppError(w, r, a.log, err)
				return
			}
			if !ok {
				writeAppError(w, r, a.log, apperr.Forbidden("Forbidden: No '"+action+"' permission for your role."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows the configured client origins with credentials, so the
// refresh cookie travels on cross-origin requests.
func (a *App) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.ClientOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Set-Cookie"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// RateLimiter keeps one token bucket per client address. Buckets idle
// for longer than idle are dropped by Purge.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	perMin   int
	idle     time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func NewRateLimiter(perMinute int, idle time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMin:   perMinute,
		idle:     idle,
		now:      time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := rl.now().UnixNano()
	rl.mu.RLock()
	entry, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		entry, exists = rl.limiters[key]
		if !exists {
			entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.perMin)/60, rl.perMin)}
			rl.limiters[key] = entry
		}
		rl.mu.Unlock()
	}
	entry.lastSeen.Store(now)
	return entry.limiter
}

// Purge drops buckets not used within the idle window. Its signature
// matches a sweeper job.
func (rl *RateLimiter) Purge(context.Context) (int64, error) {
	cutoff := rl.now().Add(-rl.idle).UnixNano()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	var n int64
	for key, entry := range rl.limiters {
		if entry.lastSeen.Load() < cutoff {
			delete(rl.limiters, key)
			n++
		}
	}
	return n, nil
}

// RateLimit enforces the per-client request budget.
func (a *App) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.rateLimiter == nil || a.rateLimiter.perMin <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !a.rateLimiter.getLimiter(a.clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the connecting peer's address. X-Forwarded-For is only
// consulted when the peer is a trusted proxy, and then the rightmost
// address that is not itself a trusted proxy wins.
func (a *App) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !a.cfg.TrustedProxy(host) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !a.cfg.TrustedProxy(hop) {
			return hop
		}
		host = hop
	}
	return host
}

// Recover turns a panic into a 500 JSON response.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				a.log.Error(r.Context(), "panic recovered", "method", r.Method, "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, string(apperr.CodeInternal), "Something went wrong. Please try again.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging middleware logs requests
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		a.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", a.clientIP(r),
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
