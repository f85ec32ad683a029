package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const insecureDefaultSecret = "change-me"

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	Env        string `env:"ENV"`
	DBAdapter  string `env:"DB_ADAPTER" envDefault:"postgres"`
	SQLiteFile string `env:"SQLITE_FILE" envDefault:"./data/rbacauth.db"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// PostgreSQL connection settings
	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"rbac"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"rbacpass"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"rbacauth"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Tokens
	AccessSecret    string        `env:"JWT_ACCESS_SECRET" envDefault:"change-me"`
	RefreshSecret   string        `env:"JWT_REFRESH_SECRET" envDefault:"change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`

	// OTP challenges
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"60s"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPStore       string        `env:"OTP_STORE" envDefault:"sql"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`

	// HTTP surface
	ClientOrigins      []string `env:"CLIENT_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	FrontendURL        string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	ProjectTitle       string   `env:"PROJECT_TITLE" envDefault:"Admin Dashboard"`
	DefaultProfilePic  string   `env:"DEFAULT_PROFILE_PIC"`
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite     string   `env:"COOKIE_SAMESITE" envDefault:"lax"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies     []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Outbound mail
	MailHost      string `env:"MAIL_HOST"`
	MailPort      int    `env:"MAIL_PORT" envDefault:"587"`
	MailUser      string `env:"MAIL_USER"`
	MailPassword  string `env:"MAIL_PASSWORD"`
	MailFrom      string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`
	MailQueueSize int    `env:"MAIL_QUEUE_SIZE" envDefault:"64"`

	// Background sweeps
	OTPSweepInterval   time.Duration `env:"OTP_SWEEP_INTERVAL" envDefault:"24h"`
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`
	RateLimitIdle      time.Duration `env:"RATE_LIMIT_IDLE" envDefault:"10m"`

	proxies []netip.Prefix
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// TrustedProxy reports whether addr falls inside TRUSTED_PROXIES.
func (c *Config) TrustedProxy(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range c.proxies {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func parseProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", e, err)
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SameSite converts COOKIE_SAMESITE into the http constant.
func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// New loads .env (if present) and then the process environment.
func New() (*Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}
	return Parse(os.Environ())
}

// Parse builds a Config from KEY=VALUE pairs without touching the process env.
func Parse(environ []string) (*Config, error) {
	c := &Config{}
	opts := env.Options{Environment: env.ToMap(environ)}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	switch c.OTPStore {
	case "sql", "redis":
	default:
		return fmt.Errorf("unsupported OTP_STORE: %s (supported: sql, redis)", c.OTPStore)
	}

	if c.IsProduction() {
		if c.AccessSecret == "" || c.AccessSecret == insecureDefaultSecret {
			return errors.New("JWT_ACCESS_SECRET must be set in production")
		}
		if c.RefreshSecret == "" || c.RefreshSecret == insecureDefaultSecret {
			return errors.New("JWT_REFRESH_SECRET must be set in production")
		}
	}
	if c.AccessSecret == c.RefreshSecret && c.IsProduction() {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.OTPTTL <= 0 {
		return errors.New("token and otp TTLs must be positive")
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %d", c.OTPMaxAttempts)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST: %d", c.BcryptCost)
	}

	proxies, err := parseProxies(c.TrustedProxies)
	if err != nil {
		return err
	}
	c.proxies = proxies

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}
	return nil
}
