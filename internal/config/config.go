// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database paths, cache/presence settings, webhook delivery,
// notification debounce, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "dialog-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WebhookConfig defines outbound webhook delivery settings. Delivery is
// disabled (noop sender) unless both URL and Secret are set.
type WebhookConfig struct {
	URL        string        // WEBHOOK_URL
	Secret     string        // WEBHOOK_SECRET (HMAC-SHA256 key)
	QueueSize  int           // WEBHOOK_QUEUE_SIZE
	MaxRetries int           // WEBHOOK_MAX_RETRIES (attempts after the first)
	RetryBase  time.Duration // WEBHOOK_RETRY_BASE (first retry delay)
	Timeout    time.Duration // WEBHOOK_TIMEOUT (per HTTP attempt)
}

// NotifyConfig defines the missed-message notification pipeline settings.
type NotifyConfig struct {
	Delay      time.Duration // NOTIFY_DELAY (debounce window before evaluation)
	QueueSize  int           // NOTIFY_QUEUE_SIZE
	MaxRetries int           // NOTIFY_MAX_RETRIES (storage-error re-evaluations)
}

// ArchiveConfig defines the inactivity auto-archive sweep.
type ArchiveConfig struct {
	Enabled  bool          // ARCHIVE_ENABLED
	Schedule string        // ARCHIVE_SCHEDULE (cron spec)
	After    time.Duration // ARCHIVE_AFTER (inactivity before archiving)
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

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath     string // SQLite path
	RedisURL   string // empty = in-memory cache (single replica)
	AdminToken string // bearer token for /management routes

	// Realtime
	WSSendBuffer int           // per-connection outbound buffer (messages)
	PresenceTTL  time.Duration // online-key expiry; refreshed by client pings

	// Webhooks / notifications / archiving
	Webhook WebhookConfig
	Notify  NotifyConfig
	Archive ArchiveConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:     getenv("DB_PATH", "dialogs.db"),
		RedisURL:   getenv("REDIS_URL", ""),
		AdminToken: getenv("ADMIN_TOKEN", ""),

		// Realtime
		WSSendBuffer: getint("WS_SEND_BUFFER", 100),
		PresenceTTL:  getdur("PRESENCE_TTL", 60*time.Second),

		Webhook: WebhookConfig{
			URL:        getenv("WEBHOOK_URL", ""),
			Secret:     getenv("WEBHOOK_SECRET", ""),
			QueueSize:  getint("WEBHOOK_QUEUE_SIZE", 1000),
			MaxRetries: getint("WEBHOOK_MAX_RETRIES", 3),
			RetryBase:  getdur("WEBHOOK_RETRY_BASE", time.Second),
			Timeout:    getdur("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			Delay:      getdur("NOTIFY_DELAY", time.Second),
			QueueSize:  getint("NOTIFY_QUEUE_SIZE", 1000),
			MaxRetries: getint("NOTIFY_MAX_RETRIES", 3),
		},
		Archive: ArchiveConfig{
			Enabled:  getbool("ARCHIVE_ENABLED", true),
			Schedule: getenv("ARCHIVE_SCHEDULE", "@every 5m"),
			After:    getdur("ARCHIVE_AFTER", 72*time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 10.0),
		RateBurst: getint("RATE_BURST", 20),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "dialog-backend"),
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
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.WSSendBuffer < 1 {
		return cfg, errors.New("WS_SEND_BUFFER must be >= 1")
	}
	if cfg.PresenceTTL <= 0 {
		return cfg, errors.New("PRESENCE_TTL must be > 0")
	}
	if cfg.Webhook.QueueSize < 1 {
		return cfg, errors.New("WEBHOOK_QUEUE_SIZE must be >= 1")
	}
	if cfg.Webhook.MaxRetries < 0 {
		return cfg, errors.New("WEBHOOK_MAX_RETRIES must be >= 0")
	}
	if cfg.Webhook.RetryBase <= 0 || cfg.Webhook.Timeout <= 0 {
		return cfg, errors.New("webhook durations must be positive")
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.Secret == "" {
		return cfg, errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}
	if cfg.Notify.Delay <= 0 {
		return cfg, errors.New("NOTIFY_DELAY must be > 0")
	}
	if cfg.Notify.QueueSize < 1 {
		return cfg, errors.New("NOTIFY_QUEUE_SIZE must be >= 1")
	}
	if cfg.Notify.MaxRetries < 0 {
		return cfg, errors.New("NOTIFY_MAX_RETRIES must be >= 0")
	}
	if cfg.Archive.After <= 0 {
		return cfg, errors.New("ARCHIVE_AFTER must be > 0")
	}
	if strings.TrimSpace(cfg.Archive.Schedule) == "" {
		return cfg, errors.New("ARCHIVE_SCHEDULE must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// WebhookEnabled reports whether outbound webhook delivery is configured.
func (c Config) WebhookEnabled() bool {
	return c.Webhook.URL != "" && c.Webhook.Secret != ""
}

// ---- helpers (no external deps) ----

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

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
