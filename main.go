package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/rbacauth/internal/auth"
	"github.com/example/rbacauth/internal/config"
	"github.com/example/rbacauth/internal/logging"
	"github.com/example/rbacauth/internal/mail"
	"github.com/example/rbacauth/internal/otp"
	"github.com/example/rbacauth/internal/permission"
	"github.com/example/rbacauth/internal/store"
	"github.com/example/rbacauth/internal/sweeper"
	"github.com/example/rbacauth/internal/token"
)

const defaultRoleName = "User"

type App struct {
	cfg         *config.Config
	log         logging.Logger
	store       store.Store
	auth        *auth.Orchestrator
	tokens      *token.Service
	otp         *otp.Service
	resolver    *permission.Resolver
	rateLimiter *RateLimiter
	otpPing     func(context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.NewJSON(os.Stdout, c.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, c, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := store.EnsureDefaultRole(ctx, st, defaultRoleName); err != nil {
		return fmt.Errorf("default role: %w", err)
	}

	var challenges store.Challenges = st
	var otpPing func(context.Context) error
	if c.OTPStore == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		defer rdb.Close()
		rs := otp.NewRedisStore(rdb, "rbac")
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		challenges, otpPing = rs, rs.Ping
		log.Info(ctx, "otp challenges stored in redis", "addr", c.RedisAddr)
	}

	var sender mail.Sender = mail.LogSender{Log: log.With("component", "mail")}
	if c.MailHost != "" {
		sender = mail.SMTPSender{Host: c.MailHost, Port: c.MailPort, Username: c.MailUser, Password: c.MailPassword, From: c.MailFrom}
	} else {
		log.Warn(ctx, "MAIL_HOST not set, emails are logged instead of sent")
	}
	dispatcher := mail.NewDispatcher(sender, c.MailQueueSize, log)
	defer dispatcher.Close()

	app := newApp(c, log, st, challenges, dispatcher)
	app.otpPing = otpPing

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.New(log,
			sweeper.Job{Name: "otp", Interval: c.OTPSweepInterval, Run: app.otp.Sweep},
			sweeper.Job{Name: "refresh_tokens", Interval: c.TokenSweepInterval, Run: app.tokens.Sweep},
			sweeper.Job{Name: "rate_limiters", Interval: c.RateLimitIdle, Run: app.rateLimiter.Purge},
		).Run(sweepCtx)
	}()

	srv := &http.Server{
		Handler:           app.Router(),
		Addr:              ":" + c.Port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", "port", c.Port, "db", c.DBAdapter)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		cancelSweep()
		<-sweepDone
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown failed", "error", err)
	}
	cancelSweep()
	<-sweepDone
	log.Info(shutdownCtx, "server exited properly")
	return nil
}

func openStore(ctx context.Context, c *config.Config, log logging.Logger) (store.Store, error) {
	switch c.DBAdapter {
	case "sqlite":
		s, err := store.NewSQLite(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		return s, nil
	case "postgres":
		log.Info(ctx, "applying database migrations")
		if err := ApplyMigrations(ctx, c.PostgresDSN, log); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := store.NewPostgres(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		log.Info(ctx, "connected to PostgreSQL database")
		return p, nil
	case "memory":
		log.Warn(ctx, "using in-memory store (not recommended for production)")
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
}

// newApp wires the services over st. challenges may be st itself or a
// separate OTP backend.
func newApp(c *config.Config, log logging.Logger, st store.Store, challenges store.Challenges, mailer mail.Enqueuer) *App {
	tokens := token.NewService(
		token.NewManager(c.AccessSecret, c.RefreshSecret, c.AccessTokenTTL, c.RefreshTokenTTL),
		st,
	)
	otpSvc := otp.NewService(challenges, c.OTPTTL, c.OTPMaxAttempts, log.With("component", "otp"))
	resolver := permission.NewResolver(st)

	return &App{
		cfg:      c,
		log:      log,
		store:    st,
		tokens:   tokens,
		otp:      otpSvc,
		resolver: resolver,
		auth: auth.New(auth.Deps{
			Users:             st,
			Visitors:          st,
			Roles:             st,
			OTP:               otpSvc,
			Tokens:            tokens,
			Resolver:          resolver,
			Mailer:            mailer,
			Composer:          mail.Composer{ProjectTitle: c.ProjectTitle, FrontendURL: c.FrontendURL},
			Log:               log.With("component", "auth"),
			BcryptCost:        c.BcryptCost,
			DefaultProfilePic: c.DefaultProfilePic,
		}),
		rateLimiter: NewRateLimiter(c.RateLimitPerMinute, c.RateLimitIdle),
	}
}
