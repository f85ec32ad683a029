package auth

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/example/rbacauth/internal/apperr"
)

const passwordSymbols = "@$!%*?&"

// normalizeEmail trims and lowercases the address and checks its syntax.
func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", apperr.InvalidInput("Email address is required.")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", apperr.InvalidInput("Please enter a valid email address.")
	}
	return s, nil
}

func validateSignup(in *SignupInput) error {
	in.Username = strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(in.Username); n < 3 || n > 50 {
		return apperr.InvalidInput("Username must be between 3 and 50 characters.")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	in.Email = email
	if n := utf8.RuneCountInString(in.Password); n < 8 || n > 128 {
		return apperr.InvalidInput("Password must be between 8 and 128 characters.")
	}
	return nil
}

func validateLogin(in *LoginInput) error {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	in.Email = email
	if in.Password == "" {
		return apperr.InvalidInput("Password is required.")
	}
	return nil
}

// checkPasswordPolicy applies the reset-password rules in a fixed order
// so the first failing rule is reported.
func checkPasswordPolicy(p string) error {
	var lower, upper, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	switch {
	case !lower:
		return apperr.InvalidInput("Password must contain at least one lowercase letter.")
	case !upper:
		return apperr.InvalidInput("Password must contain at least one uppercase letter.")
	case !digit:
		return apperr.InvalidInput("Password must contain at least one number.")
	case !symbol:
		return apperr.InvalidInput("Password must contain at least one special character.")
	case utf8.RuneCountInString(p) < 7:
		return apperr.InvalidInput("Password must be at least 7 characters long.")
	}
	return nil
}
