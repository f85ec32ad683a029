package main

import (
	"net/http"
	"time"
)

const refreshCookie = "refreshToken"

func (a *App) setRefreshCookie(w http.ResponseWriter, value string) {
	ttl := a.tokens.RefreshTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure || a.cfg.IsProduction(),
		SameSite: a.cfg.SameSite(),
	})
}

func (a *App) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure || a.cfg.IsProduction(),
		SameSite: a.cfg.SameSite(),
	})
}

func refreshCookieValue(r *http.Request) string {
	c, err := r.Cookie(refreshCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
