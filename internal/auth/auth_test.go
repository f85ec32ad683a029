package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/rbacauth/internal/access"
	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/logging"
	"github.com/example/rbacauth/internal/mail"
	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/otp"
	"github.com/example/rbacauth/internal/permission"
	"github.com/example/rbacauth/internal/store"
	"github.com/example/rbacauth/internal/token"
)

const strongPassword = "Secret1!pass"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type outbox struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (o *outbox) Enqueue(_ context.Context, m mail.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
}

func (o *outbox) subjects() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.Subject)
	}
	return out
}

func (o *outbox) last() mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.msgs[len(o.msgs)-1]
}

func live(t *testing.T, tokens *token.Service, userID, refreshToken string) bool {
	t.Helper()
	ok, err := tokens.IsValid(context.Background(), userID, refreshToken)
	require.NoError(t, err)
	return ok
}

type unreachableTokens struct {
	store.RefreshTokens
}

func (unreachableTokens) FindRefreshToken(context.Context, string, string) (*models.RefreshToken, error) {
	return nil, errors.New("dial tcp: connection refused")
}

type fixture struct {
	s       *store.Memory
	o       *Orchestrator
	tokens  *token.Service
	outbox  *outbox
	clk     *clock
	visitor string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := store.NewMemory()

	require.NoError(t, s.CreateModule(ctx, &models.Module{
		ID: "m-dash", UID: "mu-dash", Name: "Dashboard", Slug: "_dashboard_",
		Status: models.ModuleStatus{Active: true},
	}))
	require.NoError(t, s.CreateRole(ctx, &models.Role{
		ID: "r-admin", UID: "ru-admin", Name: "Admin", Slug: "admin-1",
		Permissions: []models.Permission{{ModuleID: "m-dash", Actions: models.Actions{Get: true}}},
	}))
	require.NoError(t, s.SetDefault(ctx, models.DefaultRoleCategory, "r-admin"))
	v, err := s.TouchVisitor(ctx, "fp-1", "chrome", clk.Now())
	require.NoError(t, err)

	otpSvc := otp.NewService(s, time.Minute, 5, logging.Discard())
	otpSvc.SetClock(clk.Now)
	tokens := token.NewService(token.NewManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour), s)
	tokens.SetClock(clk.Now)
	box := &outbox{}

	o := New(Deps{
		Users:      s,
		Visitors:   s,
		Roles:      s,
		OTP:        otpSvc,
		Tokens:     tokens,
		Resolver:   permission.NewResolver(s),
		Mailer:     box,
		Composer:   mail.Composer{ProjectTitle: "Acme", FrontendURL: "https://app.example.com"},
		Log:        logging.Discard(),
		BcryptCost: bcrypt.MinCost,
	})
	o.SetClock(clk.Now)
	return &fixture{s: s, o: o, tokens: tokens, outbox: box, clk: clk, visitor: v.ID}
}

func (f *fixture) code(t *testing.T, otpID string) string {
	t.Helper()
	c, err := f.s.GetChallenge(context.Background(), otpID)
	require.NoError(t, err)
	return c.Code
}

func (f *fixture) signup(t *testing.T, email string) *Session {
	t.Helper()
	ctx := context.Background()
	ch, err := f.o.Signup(ctx, SignupInput{Username: "alice", Email: email, Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)
	s, err := f.o.VerifySignup(ctx, ch.OTPID, f.code(t, ch.OTPID))
	require.NoError(t, err)
	return s
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.s.GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func TestSignupAndVerifyCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.o.Signup(ctx, SignupInput{Username: " alice ", Email: "Alice@Example.com", Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", ch.Email)
	assert.NotEmpty(t, ch.OTPID)

	_, err = f.s.GetUserByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	s, err := f.o.VerifySignup(ctx, ch.OTPID, f.code(t, ch.OTPID))
	require.NoError(t, err)
	assert.Equal(t, MsgVerified, s.Message)
	assert.Equal(t, "alice", s.User.Username)
	assert.Equal(t, "/admin/"+s.User.UID, s.User.RedirectRoute)
	assert.Equal(t, "Admin", s.User.Role.Name)
	require.Len(t, s.User.Role.Permissions, 1)
	assert.Equal(t, "_dashboard_", s.User.Role.Permissions[0].Module.Slug)

	u := f.user(t, "alice@example.com")
	assert.True(t, u.FirstLogin)
	assert.True(t, u.Subscribed)
	assert.Equal(t, access.StatusActive, access.StatusOf(u.Access))
	assert.Equal(t, "r-admin", u.RoleID)
	assert.Equal(t, []string{f.visitor}, u.Visitors)
	assert.True(t, live(t, f.tokens, u.ID, s.RefreshToken))

	claims, err := f.tokens.ParseAccess(s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "r-admin", claims.Role)

	assert.Equal(t, []string{"OTP For Email Verification", "Welcome alice - Acme"}, f.outbox.subjects())
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	cases := []SignupInput{
		{Username: "al", Email: "a@example.com", Password: strongPassword, Query: f.visitor},
		{Username: "alice", Email: "not-an-email", Password: strongPassword, Query: f.visitor},
		{Username: "alice", Email: "a@example.com", Password: "short", Query: f.visitor},
		{Username: "alice", Email: "a@example.com", Password: strongPassword},
	}
	for _, in := range cases {
		_, err := f.o.Signup(context.Background(), in)
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput), "%+v: %v", in, err)
	}
}

func TestSignupRejectsActiveAccount(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice@example.com")

	_, err := f.o.Signup(context.Background(), SignupInput{Username: "alice", Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
}

func TestSignupUnknownVisitorAsksForRefresh(t *testing.T) {
	f := newFixture(t)
	_, err := f.o.Signup(context.Background(), SignupInput{Username: "alice", Email: "a@example.com", Password: strongPassword, Query: "ghost"})

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.CodeNotFound, e.Code)
	assert.True(t, e.Refresh)
}

func TestSignupReclaimsDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com")

	u := f.user(t, "alice@example.com")
	u.Access = access.AccessFor(access.StatusDeleted)
	require.NoError(t, f.s.UpdateUser(ctx, u))

	ch, err := f.o.Signup(ctx, SignupInput{Username: "alice2", Email: "alice@example.com", Password: "another-pass1", Query: f.visitor})
	require.NoError(t, err)
	_, err = f.o.VerifySignup(ctx, ch.OTPID, f.code(t, ch.OTPID))
	require.NoError(t, err)

	got := f.user(t, "alice@example.com")
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, access.StatusActive, access.StatusOf(got.Access))
	assert.False(t, got.FirstLogin)
	assert.NotEqual(t, u.UID, got.UID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("another-pass1")))
}

func TestWrongCodesThenCorrectAndFirstLoginFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.o.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.o.VerifySignup(ctx, ch.OTPID, "000000")
		assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized), "attempt %d: %v", i, err)
	}
	_, err = f.o.VerifySignup(ctx, ch.OTPID, f.code(t, ch.OTPID))
	require.NoError(t, err)
	assert.True(t, f.user(t, "alice@example.com").FirstLogin)

	lc, err := f.o.Login(ctx, LoginInput{Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)
	_, err = f.o.VerifyLogin(ctx, lc.OTPID, f.code(t, lc.OTPID))
	require.NoError(t, err)
	assert.False(t, f.user(t, "alice@example.com").FirstLogin)
}

func TestVerifyAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch, err := f.o.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)
	code := f.code(t, ch.OTPID)

	f.clk.Advance(2 * time.Minute)
	_, err = f.o.VerifySignup(ctx, ch.OTPID, code)
	assert.True(t, apperr.HasCode(err, apperr.CodeExpired))
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.signup(t, "alice@example.com")
	before := f.user(t, "alice@example.com")

	_, err := f.o.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password", Query: f.visitor})
	assert.Equal(t, ErrBadCredentials, err)

	_, err = f.o.Login(ctx, LoginInput{Email: "nobody@example.com", Password: strongPassword, Query: f.visitor})
	assert.Equal(t, access.ErrNoAccount, err)

	f.clk.Advance(time.Hour)
	other, err := f.s.TouchVisitor(ctx, "fp-2", "firefox", f.clk.Now())
	require.NoError(t, err)

	ch, err := f.o.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: strongPassword, Query: other.ID})
	require.NoError(t, err)
	assert.Equal(t, MsgLoginCodeSent, ch.Message)
	assert.Equal(t, "Your Login OTP - Acme", f.outbox.last().Subject)

	s, err := f.o.VerifyLogin(ctx, ch.OTPID, f.code(t, ch.OTPID))
	require.NoError(t, err)
	assert.NotEqual(t, first.User.UID, s.User.UID)

	after := f.user(t, "alice@example.com")
	assert.Equal(t, before.TimeAdded, after.LastLoginAt)
	assert.Equal(t, f.clk.Now(), after.TimeAdded)
	assert.False(t, after.GoogleAuth)
	assert.ElementsMatch(t, []string{f.visitor, other.ID}, after.Visitors)
}

func TestLoginRespectsAccountStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com")

	cases := map[access.Status]error{
		access.StatusSuspended:   access.ErrSuspended,
		access.StatusDeactivated: access.ErrDeactivated,
		access.StatusDeleted:     access.ErrDeleted,
	}
	for status, want := range cases {
		u := f.user(t, "alice@example.com")
		u.Access = access.AccessFor(status)
		require.NoError(t, f.s.UpdateUser(ctx, u))

		_, err := f.o.Login(ctx, LoginInput{Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
		assert.Equal(t, want, err, status.String())
	}
}

func TestVerifyRejectsChallengeForOtherFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch, err := f.o.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)

	_, err = f.o.VerifyLogin(ctx, ch.OTPID, f.code(t, ch.OTPID))
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestChangePasswordRotatesUID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "alice@example.com")
	oldUID := s.User.UID

	msg, err := f.o.ChangePassword(ctx, ChangePasswordInput{UID: oldUID, Password: "N3w!pass"})
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordSet, msg)
	assert.NotEqual(t, oldUID, f.user(t, "alice@example.com").UID)

	_, err = f.o.ChangePassword(ctx, ChangePasswordInput{UID: oldUID, Password: "An0ther!pass"})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = f.o.Login(ctx, LoginInput{Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	assert.Equal(t, ErrBadCredentials, err)
	_, err = f.o.Login(ctx, LoginInput{Email: "alice@example.com", Password: "N3w!pass", Query: f.visitor})
	assert.NoError(t, err)
}

func TestPasswordPolicy(t *testing.T) {
	cases := map[string]string{
		"ABC1!DEF":  "Password must contain at least one lowercase letter.",
		"abc1!def":  "Password must contain at least one uppercase letter.",
		"Abcd!efg":  "Password must contain at least one number.",
		"Abcd1efg":  "Password must contain at least one special character.",
		"Ab1!":      "Password must be at least 7 characters long.",
		"Abcdef1!":  "",
		"Passw0rd&": "",
	}
	for pw, want := range cases {
		err := checkPasswordPolicy(pw)
		if want == "" {
			assert.NoError(t, err, pw)
			continue
		}
		var e *apperr.Error
		require.ErrorAs(t, err, &e, pw)
		assert.Equal(t, want, e.Message, pw)
	}
}

func TestForgotPasswordSameResponseDifferentEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com")
	uid := f.user(t, "alice@example.com").UID

	msg, err := f.o.ForgotPassword(ctx, ForgotInput{Email: "alice@example.com", Query: f.visitor})
	require.NoError(t, err)
	assert.Equal(t, MsgResetSent, msg)
	known := f.outbox.last()
	assert.Equal(t, "Password Reset Request - Acme", known.Subject)
	assert.Contains(t, known.Text, "https://app.example.com/auth/forgot-password/"+uid)

	stranger, err := f.s.TouchVisitor(ctx, "fp-9", "curl", f.clk.Now())
	require.NoError(t, err)
	msg2, err := f.o.ForgotPassword(ctx, ForgotInput{Email: "alice@example.com", Query: stranger.ID})
	require.NoError(t, err)
	assert.Equal(t, msg, msg2)
	suspicious := f.outbox.last()
	assert.Equal(t, "Suspicious Password Reset Attempt - Acme", suspicious.Subject)
	assert.Contains(t, suspicious.Text, "curl")

	_, err = f.o.ForgotPassword(ctx, ForgotInput{Query: f.visitor})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))
	_, err = f.o.ForgotPassword(ctx, ForgotInput{Email: "nobody@example.com", Query: f.visitor})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := f.signup(t, "alice@example.com")
	u := f.user(t, "alice@example.com")

	s2, err := f.o.Refresh(ctx, s1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s1.RefreshToken, s2.RefreshToken)
	assert.False(t, live(t, f.tokens, u.ID, s1.RefreshToken))
	assert.True(t, live(t, f.tokens, u.ID, s2.RefreshToken))
	assert.Equal(t, "/admin/"+u.UID, s2.User.RedirectRoute)

	_, err = f.o.Refresh(ctx, s1.RefreshToken)
	assert.Equal(t, ErrBadRefreshToken, err)

	f.clk.Advance(7*24*time.Hour - time.Minute)
	assert.True(t, live(t, f.tokens, u.ID, s2.RefreshToken))
	f.clk.Advance(2 * time.Minute)
	assert.False(t, live(t, f.tokens, u.ID, s2.RefreshToken))
}

func TestRefreshStoreOutageIsInternal(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "alice@example.com")

	down := token.NewService(token.NewManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour), unreachableTokens{f.s})
	down.SetClock(f.clk.Now)
	f.o.Tokens = down

	_, err := f.o.Refresh(context.Background(), s.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal), err)
	assert.NotErrorIs(t, err, ErrBadRefreshToken)
}

func TestRefreshRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.o.Refresh(context.Background(), "")
	assert.Equal(t, ErrNoRefreshToken, err)
	_, err = f.o.Refresh(context.Background(), "garbage")
	assert.Equal(t, ErrBadRefreshToken, err)
}

func TestRefreshChecksAccountStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "alice@example.com")

	cases := map[access.Status]error{
		access.StatusSuspended:   access.ErrSuspended,
		access.StatusDeactivated: access.ErrDeactivated,
		access.StatusDeleted:     access.ErrSessionDeleted,
	}
	for status, want := range cases {
		u := f.user(t, "alice@example.com")
		u.Access = access.AccessFor(status)
		require.NoError(t, f.s.UpdateUser(ctx, u))

		_, err := f.o.Refresh(ctx, s.RefreshToken)
		assert.Equal(t, want, err, status.String())
	}
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "alice@example.com")

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.o.Refresh(context.Background(), s.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized), err)
	}
	assert.Equal(t, 1, wins)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "alice@example.com")
	u := f.user(t, "alice@example.com")

	require.NoError(t, f.o.Logout(ctx, s.RefreshToken))
	assert.False(t, live(t, f.tokens, u.ID, s.RefreshToken))

	assert.NoError(t, f.o.Logout(ctx, ""))
	assert.NoError(t, f.o.Logout(ctx, "not-a-jwt"))
	assert.NoError(t, f.o.Logout(ctx, s.RefreshToken))
}

func TestGoogleAuthCreatesAndReclaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.GoogleAuth(ctx, GoogleInput{Username: "Bob", Email: "bob@example.com", UID: "g-1", ProfilePic: "https://img/1", Query: f.visitor})
	require.NoError(t, err)
	assert.True(t, s.User.GoogleAuth)
	assert.Equal(t, "https://img/1", s.User.ProfilePic)

	u := f.user(t, "bob@example.com")
	assert.True(t, u.FirstLogin)
	assert.Equal(t, "g-1", u.GoogleUID)
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("")))

	u.Access = access.AccessFor(access.StatusDeleted)
	require.NoError(t, f.s.UpdateUser(ctx, u))

	s2, err := f.o.GoogleAuth(ctx, GoogleInput{Username: "Bobby", Email: "bob@example.com", UID: "g-1", ProfilePic: "https://img/2", Query: f.visitor})
	require.NoError(t, err)
	assert.NotEqual(t, s.User.UID, s2.User.UID)

	got := f.user(t, "bob@example.com")
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Bobby", got.Username)
	assert.Equal(t, access.StatusActive, access.StatusOf(got.Access))
	assert.False(t, got.FirstLogin)
	assert.Equal(t, "https://img/2", got.ProfilePic)
}

func TestGoogleAuthRejectsSuspended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com")
	u := f.user(t, "alice@example.com")
	u.Access = access.AccessFor(access.StatusSuspended)
	require.NoError(t, f.s.UpdateUser(ctx, u))

	_, err := f.o.GoogleAuth(ctx, GoogleInput{Username: "alice", Email: "alice@example.com", UID: "g", Query: f.visitor})
	assert.Equal(t, access.ErrSuspended, err)

	u.Access = access.AccessFor(access.StatusDeactivated)
	require.NoError(t, f.s.UpdateUser(ctx, u))
	_, err = f.o.GoogleAuth(ctx, GoogleInput{Username: "alice", Email: "alice@example.com", UID: "g", Query: f.visitor})
	assert.Equal(t, access.ErrSuspended, err)
	_, err = f.o.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	assert.Equal(t, access.ErrSignupSuspended, err)

	_, err = f.o.GoogleAuth(ctx, GoogleInput{Username: "x", Email: "x@example.com", Query: f.visitor})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))
}

func TestDiscardChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch, err := f.o.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: strongPassword, Query: f.visitor})
	require.NoError(t, err)

	require.NoError(t, f.o.DiscardChallenge(ctx, "Alice@example.com", ch.OTPID))
	_, err = f.o.VerifySignup(ctx, ch.OTPID, "123456")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	assert.True(t, apperr.HasCode(f.o.DiscardChallenge(ctx, "alice@example.com", ch.OTPID), apperr.CodeNotFound))
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "alice@example.com")
	u := f.user(t, "alice@example.com")

	p, err := f.o.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, s.User.UID, p.UID)
	assert.Equal(t, "admin", p.Role.RoutePrefix())

	_, err = f.o.Profile(context.Background(), "missing")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}
