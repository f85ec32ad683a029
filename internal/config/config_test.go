package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]string{"DB_ADAPTER=memory"})
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
	assert.Equal(t, 60*time.Second, c.OTPTTL)
	assert.Equal(t, 5, c.OTPMaxAttempts)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, []string{"http://localhost:3000"}, c.ClientOrigins)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite())
}

func TestParseOrigins(t *testing.T) {
	c, err := Parse([]string{"DB_ADAPTER=memory", "CLIENT_ORIGINS=https://a.example,https://b.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.ClientOrigins)
}

func TestTrustedProxies(t *testing.T) {
	c, err := Parse([]string{"DB_ADAPTER=memory", "TRUSTED_PROXIES=10.0.0.0/8, 192.0.2.7"})
	require.NoError(t, err)

	assert.True(t, c.TrustedProxy("10.1.2.3"))
	assert.True(t, c.TrustedProxy("192.0.2.7"))
	assert.True(t, c.TrustedProxy("::ffff:10.0.0.1"))
	assert.False(t, c.TrustedProxy("192.0.2.8"))
	assert.False(t, c.TrustedProxy("not-an-ip"))

	none, err := Parse([]string{"DB_ADAPTER=memory"})
	require.NoError(t, err)
	assert.False(t, none.TrustedProxy("127.0.0.1"))

	_, err = Parse([]string{"DB_ADAPTER=memory", "TRUSTED_PROXIES=10.0.0.0/99"})
	require.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	c, err := Parse([]string{"DB_ADAPTER=postgres", "POSTGRES_HOST=db", "POSTGRES_USER=u", "POSTGRES_PASSWORD=p", "POSTGRES_DB=d"})
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u dbname=d sslmode=disable password=p", c.PostgresDSN)

	c, err = Parse([]string{"DB_ADAPTER=postgres", "POSTGRES_DSN=postgres://x"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", c.PostgresDSN)
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string][]string{
		"adapter":      {"DB_ADAPTER=mongo"},
		"otp store":    {"DB_ADAPTER=memory", "OTP_STORE=file"},
		"port":         {"DB_ADAPTER=memory", "PORT=http"},
		"attempts":     {"DB_ADAPTER=memory", "OTP_MAX_ATTEMPTS=0"},
		"bcrypt":       {"DB_ADAPTER=memory", "BCRYPT_COST=2"},
		"prod secrets": {"DB_ADAPTER=memory", "ENV=production"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(environ)
			assert.Error(t, err)
		})
	}
}

func TestProductionRequiresDistinctSecrets(t *testing.T) {
	_, err := Parse([]string{"DB_ADAPTER=memory", "ENV=prod", "JWT_ACCESS_SECRET=same", "JWT_REFRESH_SECRET=same"})
	assert.Error(t, err)

	c, err := Parse([]string{"DB_ADAPTER=memory", "ENV=prod", "JWT_ACCESS_SECRET=a", "JWT_REFRESH_SECRET=b"})
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
}
