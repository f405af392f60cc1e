package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogFormat          string
	LogLevel           string
	MetricsNamespace   string
	TracingExporter    string
	TracingEndpoint    string
	TracingSampleRatio float64
	RedisURL           string
	RemoteBaseURL      string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL time.Duration
	RememberTTL    time.Duration
	SessionTTL     time.Duration
	AuthCookieName string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	RemoteTimeout       time.Duration
	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	UsersResource       string
	OrdersResource      string
	LoginRateLimit      string
	IdempotencyTTL      time.Duration
	LockTTL             time.Duration
	LockRetryBackoff    time.Duration
	NavigationDelay     time.Duration
	BodyLimitBytes      int64
	AMQPURL             string
	AMQPExchange        string
	ReceiptQueue        string
	ReceiptMaxRetry     int
	WorkerConcurrency   int
	NotifyEmailFrom     string
	SecurityHeaders     bool
	HSTSEnabled         bool
	CSRFEnabled         bool
	ReadinessTimeout    time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("METRICS_NAMESPACE"), "air593"),
		TracingExporter:    valueOrDefault(k.String("OTEL_TRACES_EXPORTER"), "none"),
		TracingEndpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		TracingSampleRatio: parseFloat(k.String("OTEL_TRACES_SAMPLER_RATIO"), 1),
		RedisURL:           k.String("REDIS_URL"),
		RemoteBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("REMOTE_BASE_URL")), "/"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),
		RememberTTL:    parseDuration(k.String("REMEMBER_TTL"), "720h"),
		SessionTTL:     parseDuration(k.String("SESSION_TTL"), "12h"),
		AuthCookieName: valueOrDefault(k.String("AUTH_COOKIE_NAME"), "air593_token"),
		CookieDomain:   strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:   parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite: parseSameSite(k.String("COOKIE_SAMESITE")),

		RemoteTimeout:       parseDuration(k.String("REMOTE_TIMEOUT"), "5s"),
		RetryBase:           parseDuration(k.String("RETRY_BASE"), "100ms"),
		RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 10),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		UsersResource:       valueOrDefault(k.String("REMOTE_USERS_RESOURCE"), "users"),
		OrdersResource:      valueOrDefault(k.String("REMOTE_ORDERS_RESOURCE"), "orders"),
		LoginRateLimit:      valueOrDefault(k.String("LOGIN_RATE_LIMIT"), "10-M"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		LockTTL:             parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff:    parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		NavigationDelay:     parseDuration(k.String("CHECKOUT_NAVIGATION_DELAY"), "3s"),
		BodyLimitBytes:      int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		AMQPURL:             strings.TrimSpace(k.String("AMQP_URL")),
		AMQPExchange:        valueOrDefault(k.String("AMQP_EXCHANGE"), "air593.events"),
		ReceiptQueue:        valueOrDefault(k.String("RECEIPT_QUEUE"), "notifications"),
		ReceiptMaxRetry:     parseInt(k.String("RECEIPT_MAX_RETRY"), 5),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailFrom:     valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@air593.travel"),
		SecurityHeaders:     parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		HSTSEnabled:         parseBool(k.String("SECURITY_HSTS")),
		CSRFEnabled:         parseBool(k.String("CSRF_ENABLED")),
		ReadinessTimeout:    parseDuration(k.String("HEALTH_READY_TIMEOUT"), "500ms"),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.RemoteBaseURL == "" {
		return nil, errors.New("REMOTE_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// UsesMemoryRemote reports whether the remote database is replaced by the
// in-process store, selected with REMOTE_BASE_URL=memory://.
func (c *Config) UsesMemoryRemote() bool {
	return strings.HasPrefix(c.RemoteBaseURL, "memory:")
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
