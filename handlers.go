package main

import (
	"net/http"

	"github.com/example/rbacauth/internal/auth"
)

type otpReq struct {
	OTPID   string `json:"otpId"`
	OTPCode string `json:"otpCode"`
}

func (a *App) writeSession(w http.ResponseWriter, s *auth.Session) {
	a.setRefreshCookie(w, s.RefreshToken)
	body := map[string]interface{}{
		"status":      true,
		"user":        s.User,
		"accessToken": s.AccessToken,
	}
	if s.Message != "" {
		body["message"] = s.Message
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *App) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	ch, err := a.auth.Signup(r.Context(), in)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, ch)
}

func (a *App) HandleVerifySignup(w http.ResponseWriter, r *http.Request) {
	var in otpReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	s, err := a.auth.VerifySignup(r.Context(), in.OTPID, in.OTPCode)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	a.writeSession(w, s)
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	ch, err := a.auth.Login(r.Context(), in)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, ch)
}

func (a *App) HandleVerifyLogin(w http.ResponseWriter, r *http.Request) {
	var in otpReq
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	s, err := a.auth.VerifyLogin(r.Context(), in.OTPID, in.OTPCode)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	a.writeSession(w, s)
}

func (a *App) HandleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var in auth.GoogleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	s, err := a.auth.GoogleAuth(r.Context(), in)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	a.writeSession(w, s)
}

func (a *App) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ForgotInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	msg, err := a.auth.ForgotPassword(r.Context(), in)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

func (a *App) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	msg, err := a.auth.ChangePassword(r.Context(), in)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

func (a *App) HandleDeleteOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		OTPID string `json:"otpId"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	if err := a.auth.DiscardChallenge(r.Context(), in.Email, in.OTPID); err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeMessage(w, http.StatusOK, auth.MsgOTPDiscarded)
}

func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	s, err := a.auth.Refresh(r.Context(), refreshCookieValue(r))
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	a.writeSession(w, s)
}

// HandleLogout always clears the cookie, even when the record could not
// be removed.
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	err := a.auth.Logout(r.Context(), refreshCookieValue(r))
	a.clearRefreshCookie(w)
	if err != nil {
		writeAppError(w, r, a.log, err)
		return
	}
	writeMessage(w, http.StatusOK, auth.MsgLoggedOut)
}
