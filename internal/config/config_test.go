package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":       "redis://localhost:6379/0",
		"REMOTE_BASE_URL": "https://air593-default-rtdb.example.com/",
		"JWT_SECRET":      "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "https://air593-default-rtdb.example.com", cfg.RemoteBaseURL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 3*time.Second, cfg.NavigationDelay)
	require.Equal(t, "users", cfg.UsersResource)
	require.Equal(t, "orders", cfg.OrdersResource)
	require.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	require.True(t, cfg.SecurityHeaders)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9090"
	env["SESSION_TTL"] = "30m"
	env["COOKIE_SAMESITE"] = "strict"
	env["SECURITY_HEADERS"] = "off"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, ,https://b.example"
	env["RETRY_MAX_ATTEMPTS"] = "not-a-number"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, http.SameSiteStrictMode, cfg.CookieSameSite)
	require.False(t, cfg.SecurityHeaders)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
}

func TestLoadRequiresRemoteBaseURL(t *testing.T) {
	env := baseEnv()
	env["REMOTE_BASE_URL"] = ""
	_, err := LoadForTests(env)
	require.EqualError(t, err, "REMOTE_BASE_URL is required")
}

func TestMemoryRemoteAndCSRF(t *testing.T) {
	env := baseEnv()
	env["REMOTE_BASE_URL"] = "memory://"
	env["CSRF_ENABLED"] = "true"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.UsesMemoryRemote())
	require.True(t, cfg.CSRFEnabled)
}
