// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, the telephony provider account, auth, caching, rate
// limiting and observability settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-call-router")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TwilioConfig holds the provider account and the public address the
// provider uses to reach our webhooks.
type TwilioConfig struct {
	AccountSID        string        `validate:"required"`
	AuthToken         string        `validate:"required"`
	APIBaseURL        string        `validate:"required,url"` // TWILIO_API_BASE_URL
	PublicBaseURL     string        `validate:"required,url"` // PUBLIC_BASE_URL / SERVER_URL
	ValidateSignature bool          // TWILIO_VALIDATE_SIGNATURE
	Timeout           time.Duration // PROVIDER_TIMEOUT, per gateway call
	CountTimeout      time.Duration // PROVIDER_COUNT_TIMEOUT, whole page walk behind the recordings total
	RetryAttempts     uint          // PROVIDER_RETRY_ATTEMPTS
	BreakerFailures   uint32        // PROVIDER_CB_FAILURES, consecutive failures before the breaker opens
}

// AuthConfig configures bearer-token issuance and verification.
type AuthConfig struct {
	JWTSecret string        `validate:"required,min=16"`
	TokenTTL  time.Duration // JWT_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN when DBDriver=postgres

	// Provider / auth
	Twilio TwilioConfig `validate:"required"`
	Auth   AuthConfig   `validate:"required"`

	// Reporting
	StatsTimezone string        // IANA zone used for day buckets
	RedisURL      string        // optional stats cache
	StatsCacheTTL time.Duration // lifetime of a cached stats snapshot

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Webhook de-duplication
	WebhookDedupTTL time.Duration // how long a provider idempotency token is remembered

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "3000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "calls.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		Twilio: TwilioConfig{
			AccountSID:        getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getenv("TWILIO_AUTH_TOKEN", ""),
			APIBaseURL:        strings.TrimRight(getenv("TWILIO_API_BASE_URL", "https://api.twilio.com"), "/"),
			PublicBaseURL:     strings.TrimRight(getenv("PUBLIC_BASE_URL", getenv("SERVER_URL", "")), "/"),
			ValidateSignature: getbool("TWILIO_VALIDATE_SIGNATURE", false),
			Timeout:           getdur("PROVIDER_TIMEOUT", 10*time.Second),
			CountTimeout:      getdur("PROVIDER_COUNT_TIMEOUT", 25*time.Second),
			RetryAttempts:     uint(max(getint("PROVIDER_RETRY_ATTEMPTS", 3), 0)),
			BreakerFailures:   uint32(max(getint("PROVIDER_CB_FAILURES", 5), 0)),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			TokenTTL:  getdur("JWT_TTL", time.Hour),
		},

		StatsTimezone: getenv("STATS_TIMEZONE", "UTC"),
		RedisURL:      getenv("REDIS_URL", ""),
		StatsCacheTTL: getdur("STATS_CACHE_TTL", time.Minute),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 10.0),
		RateBurst: getint("RATE_BURST", 20),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		WebhookDedupTTL: getdur("WEBHOOK_DEDUP_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-call-router"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Twilio.Timeout <= 0 {
		return cfg, errors.New("PROVIDER_TIMEOUT must be > 0")
	}
	if cfg.Twilio.CountTimeout < cfg.Twilio.Timeout {
		return cfg, errors.New("PROVIDER_COUNT_TIMEOUT must be >= PROVIDER_TIMEOUT")
	}
	if cfg.Twilio.RetryAttempts < 1 {
		return cfg, errors.New("PROVIDER_RETRY_ATTEMPTS must be >= 1")
	}
	if cfg.Twilio.BreakerFailures < 1 {
		return cfg, errors.New("PROVIDER_CB_FAILURES must be >= 1")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if _, err := time.LoadLocation(cfg.StatsTimezone); err != nil {
		return cfg, fmt.Errorf("STATS_TIMEZONE is not a valid zone: %w", err)
	}
	if cfg.StatsCacheTTL <= 0 {
		return cfg, errors.New("STATS_CACHE_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.WebhookDedupTTL <= 0 {
		return cfg, errors.New("WEBHOOK_DEDUP_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	// Provider account and secrets are checked by tag so the message names the field.
	if err := validate.Struct(cfg); err != nil {
		return cfg, describe(err)
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// envNames maps validated struct namespaces back to the variables users set.
var envNames = map[string]string{
	"Config.Twilio.AccountSID":    "TWILIO_ACCOUNT_SID",
	"Config.Twilio.AuthToken":     "TWILIO_AUTH_TOKEN",
	"Config.Twilio.APIBaseURL":    "TWILIO_API_BASE_URL",
	"Config.Twilio.PublicBaseURL": "PUBLIC_BASE_URL",
	"Config.Auth.JWTSecret":       "JWT_SECRET",
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name := envNames[fe.Namespace()]
	if name == "" {
		name = fe.Namespace()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s must not be empty", name)
	case "url":
		return fmt.Errorf("%s must be an absolute URL", name)
	case "min":
		return fmt.Errorf("%s must be at least %s characters", name, fe.Param())
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
