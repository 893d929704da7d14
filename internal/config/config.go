// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, queueing/worker knobs, and
// observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "promptengine-admin")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// EngineConfig holds the attempt-processing engine's own knobs, separate
// from the admin HTTP server's settings below.
type EngineConfig struct {
	QueueMaxLength         int           // QUEUE_MAX_LENGTH
	WorkerConcurrency      int           // WORKER_CONCURRENCY
	MaxInflightPerUser     int           // MAX_INFLIGHT_PER_USER
	LLMTimeoutSeconds      int           // LLM_TIMEOUT_SECONDS
	DefaultMaxOutputTokens int           // DEFAULT_MAX_OUTPUT_TOKENS
	DrainDeadline          time.Duration // DRAIN_DEADLINE

	ActivityConfigPath  string // ACTIVITY_CONFIG_PATH
	LevelsConfigPath    string // LEVELS_CONFIG_PATH
	RewardsConfigPath   string // REWARDS_CONFIG_PATH
	ReloadSignalEnabled bool   // CONFIG_RELOAD_SIGNAL (SIGHUP reloads content config)

	LLMBaseURL string // LLM_BASE_URL
	LLMAPIKey  string // LLM_API_KEY
	LLMModel   string // LLM_MODEL

	TelegramBotToken string // TELEGRAM_BOT_TOKEN
}

// Config holds all configuration values for the application.
type Config struct {
	// Server (admin HTTP surface)
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
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver string // sqlite|postgres
	DBPath   string // sqlite file path, when DBDriver=sqlite
	DBDsn    string // postgres DSN, when DBDriver=postgres

	// Rate limiting (admin HTTP surface)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig

	// Engine
	Engine EngineConfig
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

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/admin")),

		// Storage
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:   getenv("DB_PATH", "promptengine.db"),
		DBDsn:    getenv("DB_DSN", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "promptengine-admin"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},

		// Engine
		Engine: EngineConfig{
			QueueMaxLength:         getint("QUEUE_MAX_LENGTH", 500),
			WorkerConcurrency:      getint("WORKER_CONCURRENCY", 4),
			MaxInflightPerUser:     getint("MAX_INFLIGHT_PER_USER", 1),
			LLMTimeoutSeconds:      getint("LLM_TIMEOUT_SECONDS", 30),
			DefaultMaxOutputTokens: getint("DEFAULT_MAX_OUTPUT_TOKENS", 512),
			DrainDeadline:          getdur("DRAIN_DEADLINE", 20*time.Second),

			ActivityConfigPath: getenv("ACTIVITY_CONFIG_PATH", "configs/activity.json"),
			LevelsConfigPath:   getenv("LEVELS_CONFIG_PATH", "configs/levels.json"),
			RewardsConfigPath:  getenv("REWARDS_CONFIG_PATH", "configs/rewards.json"),
			ReloadSignalEnabled: getbool("CONFIG_RELOAD_SIGNAL", true),

			LLMBaseURL: getenv("LLM_BASE_URL", "https://api.openai.com"),
			LLMAPIKey:  getenv("LLM_API_KEY", ""),
			LLMModel:   getenv("LLM_MODEL", "gpt-4o-mini"),

			TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
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
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		cfg.DBDriver = "sqlite"
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
	if cfg.DBDriver == "sqlite" && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty when DB_DRIVER=sqlite")
	}
	if cfg.DBDriver == "postgres" && strings.TrimSpace(cfg.DBDsn) == "" {
		return cfg, errors.New("DB_DSN must not be empty when DB_DRIVER=postgres")
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
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if cfg.Engine.QueueMaxLength < 1 {
		return cfg, errors.New("QUEUE_MAX_LENGTH must be >= 1")
	}
	if cfg.Engine.WorkerConcurrency < 1 {
		return cfg, errors.New("WORKER_CONCURRENCY must be >= 1")
	}
	if cfg.Engine.MaxInflightPerUser < 1 {
		return cfg, errors.New("MAX_INFLIGHT_PER_USER must be >= 1")
	}
	if cfg.Engine.LLMTimeoutSeconds < 1 {
		return cfg, errors.New("LLM_TIMEOUT_SECONDS must be >= 1")
	}
	if cfg.Engine.DefaultMaxOutputTokens < 1 {
		return cfg, errors.New("DEFAULT_MAX_OUTPUT_TOKENS must be >= 1")
	}
	if cfg.Engine.DrainDeadline <= 0 {
		return cfg, errors.New("DRAIN_DEADLINE must be > 0")
	}
	if strings.TrimSpace(cfg.Engine.ActivityConfigPath) == "" ||
		strings.TrimSpace(cfg.Engine.LevelsConfigPath) == "" ||
		strings.TrimSpace(cfg.Engine.RewardsConfigPath) == "" {
		return cfg, errors.New("ACTIVITY_CONFIG_PATH, LEVELS_CONFIG_PATH, and REWARDS_CONFIG_PATH must not be empty")
	}

	return cfg, nil
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
