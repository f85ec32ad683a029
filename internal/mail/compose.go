package mail

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Composer renders the notification emails sent by the auth flows.
type Composer struct {
	ProjectTitle string
	FrontendURL  string
}

func (c Composer) link(path string) string {
	return strings.TrimRight(c.FrontendURL, "/") + path
}

func (c Composer) page(title, username, body, buttonHref, buttonText string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"UTF-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>")
	fmt.Fprintf(&b, "<h3>%s</h3><p>Hello %s,<br>%s</p>", html.EscapeString(title), html.EscapeString(username), body)
	if buttonHref != "" {
		fmt.Fprintf(&b, "<p><a href=\"%s\">%s</a></p>", html.EscapeString(buttonHref), html.EscapeString(buttonText))
	}
	fmt.Fprintf(&b, "<p>&copy; %s</p></body></html>", html.EscapeString(c.ProjectTitle))
	return b.String()
}

func minutes(ttl time.Duration) string {
	m := int(ttl.Round(time.Minute) / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

// SignupCode is the OTP email sent when an account is registered.
func (c Composer) SignupCode(to, username, code, otpID string, ttl time.Duration) Message {
	title := "Your Verification OTP - " + c.ProjectTitle
	body := fmt.Sprintf("Your One-Time Password (OTP) for verification is <b>%s</b>. It will expire in <b>%s</b>. Please do not share this code with anyone.",
		html.EscapeString(code), minutes(ttl))
	return Message{
		To:      to,
		Subject: "OTP For Email Verification",
		HTML:    c.page(title, username, body, c.link("/auth/verify/"+otpID), "Verify OTP"),
		Text:    fmt.Sprintf("Your OTP is %s. It will expire in %s. Please do not share it with anyone.", code, minutes(ttl)),
	}
}

// LoginCode is the OTP email sent after a correct password.
func (c Composer) LoginCode(to, username, code, otpID string, ttl time.Duration) Message {
	title := "Your Login OTP - " + c.ProjectTitle
	body := fmt.Sprintf("Your One-Time Password (OTP) for login is <b>%s</b>. It will expire in <b>%s</b>. Please do not share this code with anyone.",
		html.EscapeString(code), minutes(ttl))
	return Message{
		To:      to,
		Subject: title,
		HTML:    c.page(title, username, body, c.link("/auth/verify/"+otpID), "Verify OTP"),
		Text:    fmt.Sprintf("Your OTP is %s. It will expire in %s. Please do not share it with anyone.", code, minutes(ttl)),
	}
}

// Welcome confirms a completed signup.
func (c Composer) Welcome(to, username string) Message {
	title := "Welcome to " + c.ProjectTitle + "!"
	body := "Your account has been created and verified successfully.<br>From now on, you can sign in anytime using your email and password."
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome %s - %s", username, c.ProjectTitle),
		HTML:    c.page(title, username, body, c.link("/"), "Go to Dashboard"),
		Text:    fmt.Sprintf("Welcome %s! Your account has been created and verified successfully. You can now sign in and explore %s.", username, c.ProjectTitle),
	}
}

// SignedIn confirms an OTP login. firstLogin selects the greeting.
func (c Composer) SignedIn(to, username string, firstLogin bool) Message {
	greeting := "Welcome back to "
	if firstLogin {
		greeting = "Welcome to "
	}
	title := "Welcome to " + c.ProjectTitle + "!"
	body := html.EscapeString(greeting+c.ProjectTitle) + "!<br><br>Your account has been verified successfully and you are now signed in."
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome %s - %s", username, c.ProjectTitle),
		HTML:    c.page(title, username, body, c.link("/"), "Go to Dashboard"),
		Text:    fmt.Sprintf("%s%s! You are now signed in.", greeting, c.ProjectTitle),
	}
}

// GoogleSignedIn confirms a Google sign-in.
func (c Composer) GoogleSignedIn(to, username string, newAccount bool) Message {
	state := "back"
	if newAccount {
		state = "onboard"
	}
	title := "Welcome to " + c.ProjectTitle + "!"
	body := fmt.Sprintf("We’re excited to have you %s with us.<br><br>You have successfully signed in using your Google account.", state)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome %s - %s", username, c.ProjectTitle),
		HTML:    c.page(title, username, body, c.link("/"), "Go to Dashboard"),
		Text:    fmt.Sprintf("Welcome %s! You have successfully signed in using your Google account. You can now access your dashboard and explore %s.", username, c.ProjectTitle),
	}
}

// ResetLink is sent when the reset request comes from a device the
// account has used before.
func (c Composer) ResetLink(to, username, uid string) Message {
	title := "Password Reset Request - " + c.ProjectTitle
	link := c.link("/auth/forgot-password/" + uid)
	body := fmt.Sprintf("We received a request to reset the password for your account <b>%s</b>.<br><br>Please click the button below to create a new password.",
		html.EscapeString(to))
	return Message{
		To:      to,
		Subject: title,
		HTML:    c.page(title, username, body, link, "Reset Password"),
		Text:    fmt.Sprintf("Hello %s, we received a request to reset your password. Use the link below to proceed: %s. If this wasn’t you, ignore this email.", username, link),
	}
}

// SuspiciousReset is sent when the reset request comes from an unknown
// device. device may be empty.
func (c Composer) SuspiciousReset(to, username, uid, device string) Message {
	title := "Suspicious Password Reset Attempt - " + c.ProjectTitle
	link := c.link("/auth/forgot-password/" + uid)
	info := "A suspicious forgot password attempt was detected."
	if device != "" {
		info = fmt.Sprintf("A suspicious forgot password attempt was detected from device: %s.", device)
	}
	body := html.EscapeString(info) + "<br><br>If this was you, please confirm by clicking the button below."
	return Message{
		To:      to,
		Subject: title,
		HTML:    c.page(title, username, body, link, "Confirm Password Reset"),
		Text:    fmt.Sprintf("Hello %s, %s If this was you, confirm here: %s. If not, ignore this email.", username, info, link),
	}
}

// PasswordChanged confirms a password update.
func (c Composer) PasswordChanged(to, username string) Message {
	title := "Your Password Has Been Updated - " + c.ProjectTitle
	body := fmt.Sprintf("This is a confirmation that the password for your account <b>%s</b> has been successfully updated.<br><br>If you did not request a password reset, please secure your account immediately.",
		html.EscapeString(to))
	return Message{
		To:      to,
		Subject: "Password Changed Successfully - " + c.ProjectTitle,
		HTML:    c.page(title, username, body, c.link("/auth/signin"), "Sign in to Your Account"),
		Text:    fmt.Sprintf("Hello %s, your password has been updated successfully. If this wasn’t you, please reset your password immediately or contact support.", username),
	}
}
