package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func TestLoadOptionsDefaults(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", testSigningKey)

	opts, err := LoadOptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAudience, opts.GetAudience())
	assert.Equal(t, time.Hour, opts.GetAccessTokenTTL())
	assert.Equal(t, DefaultRefreshTokenTTL, opts.GetRefreshTokenTTL())
	assert.Equal(t, 2*time.Hour, opts.GetPasswordResetTTL())
	assert.Equal(t, 5, opts.ResetsPerHour)
}

func TestLoadOptionsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authd.toml")
	content := `
signing_key = "` + testSigningKey + `"
audience = "mobile"
access_token_ttl = "15m"
http_addr = ":9090"

[smtp]
host = "mail.places.app"
port = 587
from = "hello@places.app"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("AUTH_HTTP_ADDR", ":7070")
	t.Setenv("AUTH_PASSWORD_RESET_TTL_SECONDS", "600")
	t.Setenv("AUTH_SMTP_PORT", "2525")

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	assert.Equal(t, testSigningKey, opts.GetSigningKey())
	assert.Equal(t, "mobile", opts.GetAudience())
	assert.Equal(t, 15*time.Minute, opts.GetAccessTokenTTL())
	assert.Equal(t, 10*time.Minute, opts.GetPasswordResetTTL())
	assert.Equal(t, ":7070", opts.HTTPAddr)
	assert.Equal(t, "mail.places.app", opts.SMTP.Host)
	assert.Equal(t, 2525, opts.SMTP.Port)
	assert.Equal(t, "hello@places.app", opts.GetMailFrom())
}

func TestLoadOptionsValidation(t *testing.T) {
	t.Run("short signing key", func(t *testing.T) {
		t.Setenv("AUTH_SIGNING_KEY", "too-short")
		_, err := LoadOptions("")
		require.Error(t, err)
		assert.Equal(t, 400, StatusCode(err))
	})

	t.Run("missing signing key", func(t *testing.T) {
		t.Setenv("AUTH_SIGNING_KEY", "")
		_, err := LoadOptions("")
		assert.Error(t, err)
	})

	t.Run("broken file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.toml")
		require.NoError(t, os.WriteFile(path, []byte("signing_key = "), 0o600))
		_, err := LoadOptions(path)
		assert.Error(t, err)
	})
}

func TestGetenvParsing(t *testing.T) {
	t.Setenv("AUTH_TEST_DURATION", "bogus")
	assert.Equal(t, time.Minute, getenvDuration("AUTH_TEST_DURATION", time.Minute))

	t.Setenv("AUTH_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getenvDuration("AUTH_TEST_DURATION", time.Minute))

	t.Setenv("AUTH_TEST_INT", "x")
	assert.Equal(t, 3, getenvInt("AUTH_TEST_INT", 3))
}
