// Package otp issues and verifies one-time email codes.
//
// A challenge moves from issued to verified (consumed), expired, or
// invalidated (superseded by a newer challenge for the same email, or
// dropped after too many wrong guesses).
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/logging"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/store"
)

const codeDigits = 6

var (
	ErrChallengeNotFound = apperr.NotFound("This verification code is invalid or has already expired. Please request a new one.")
	ErrCodeRequired      = apperr.InvalidInput("Please enter the verification code sent to your email.")
	ErrCodeMismatch      = apperr.Unauthorized("The verification code you entered is incorrect. Please try again.")
	ErrChallengeExpired  = apperr.Expired("This verification code has expired. Please request a new one.")
)

// Pending is the identity staged until the code is verified.
type Pending struct {
	Email        string
	Username     string
	PasswordHash string
	VisitorID    string
	Purpose      models.Purpose
}

type Service struct {
	store       store.Challenges
	ttl         time.Duration
	maxAttempts int
	log         logging.Logger
	now         func() time.Time
}

func NewService(s store.Challenges, ttl time.Duration, maxAttempts int, log logging.Logger) *Service {
	return &Service{store: s, ttl: ttl, maxAttempts: maxAttempts, log: log, now: time.Now}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// TTL is how long an issued code stays valid.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue stores a fresh challenge for p.Email, superseding any earlier one.
func (s *Service) Issue(ctx context.Context, p Pending) (*models.Challenge, error) {
	code, err := generateCode()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.now()
	c := &models.Challenge{
		ID:           uuid.NewString(),
		Email:        p.Email,
		Code:         code,
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		VisitorID:    p.VisitorID,
		Purpose:      p.Purpose,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}
	if err := s.store.ReplaceChallenge(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}
	return c, nil
}

// Verify checks code against the challenge and consumes it on success.
// Checks run in order: unknown id, missing code, wrong code, expiry.
// Each wrong code counts as an attempt; once maxAttempts is reached the
// challenge is dropped.
func (s *Service) Verify(ctx context.Context, id, code string) (*models.Challenge, error) {
	c, err := s.store.GetChallenge(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && c == nil) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if code == "" {
		return nil, ErrCodeRequired
	}
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		s.recordMiss(ctx, c)
		return nil, ErrCodeMismatch
	}
	if s.now().After(c.ExpiresAt) {
		return nil, ErrChallengeExpired
	}
	if err := s.store.ConsumeChallenge(ctx, c.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// consumed concurrently by another request
			return nil, ErrChallengeNotFound
		}
		return nil, apperr.Internal(err)
	}
	c.Verified = true
	return c, nil
}

func (s *Service) recordMiss(ctx context.Context, c *models.Challenge) {
	n, err := s.store.IncrementChallengeAttempts(ctx, c.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error(ctx, "otp attempt count failed", "otp_id", c.ID, "error", err)
		}
		return
	}
	if n < s.maxAttempts {
		return
	}
	if err := s.store.DeleteChallenge(ctx, c.Email, c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error(ctx, "otp invalidate failed", "otp_id", c.ID, "error", err)
		return
	}
	s.log.Warn(ctx, "otp invalidated after too many attempts", "otp_id", c.ID, "attempts", n)
}

// Discard deletes the challenge id issued to email.
func (s *Service) Discard(ctx context.Context, email, id string) error {
	if email == "" || id == "" {
		return apperr.InvalidInput("Email and verification id are required.")
	}
	err := s.store.DeleteChallenge(ctx, email, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("This verification code is no longer valid.")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Sweep removes challenges that expired before now.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredChallenges(ctx, s.now())
}

func generateCode() (string, error) {
	max := big.NewInt(900000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	code := n.Int64() + 100000
	b := make([]byte, codeDigits)
	for i := codeDigits - 1; i >= 0; i-- {
		b[i] = byte('0' + code%10)
		code /= 10
	}
	return string(b), nil
}
