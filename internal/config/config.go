package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName        string
	AppEnv         string
	AppURL         string
	Port           string
	CurrencyLocale string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret  string
	JWTExpiry  time.Duration
	CronSecret string // Optional: guards batch notification routes when set

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Web push (optional, push channel is disabled without keys)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Notifications
	NotifyWorkers   int
	NotifyQueueSize int

	// Auto-contribution trigger (optional, 0 disables the in-process ticker)
	AutoContributeInterval time.Duration

	// AI chat (optional, OpenAI-compatible chat completions endpoint)
	LLMAPIURL  string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Observability (optional)
	SentryDSN string

	// Report archive (S3-compatible: MinIO, AWS S3, Cloudflare R2, etc.; optional)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services
	S3PathStyle bool   // Required by MinIO and some S3-compatible services
	S3LinkTTL   time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:        envString("APP_NAME", "WealthWizard"),
		AppEnv:         envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:         envRequired("APP_URL"), // Required: base URL for links in emails and push payloads
		Port:           envString("PORT", "5000"),
		CurrencyLocale: envString("CURRENCY_LOCALE", "en-IN"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/finance.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"),

		// Security
		JWTSecret:  envRequired("JWT_SECRET"),
		JWTExpiry:  envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days
		CronSecret: envString("CRON_SECRET", ""),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Web push
		VAPIDPublicKey:  envString("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: envString("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    envString("VAPID_SUBJECT", "mailto:hello@example.com"),

		// Notifications
		NotifyWorkers:   envInt("NOTIFY_WORKERS", 2),
		NotifyQueueSize: envInt("NOTIFY_QUEUE_SIZE", 256),

		AutoContributeInterval: envDuration("AUTO_CONTRIBUTE_INTERVAL", 0),

		// AI chat
		LLMAPIURL:  envString("LLM_API_URL", ""),
		LLMAPIKey:  envString("LLM_API_KEY", ""),
		LLMModel:   envString("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout: envDuration("LLM_TIMEOUT", 20*time.Second),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Report archive
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("REPORT_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
		S3PathStyle: envBool("S3_PATH_STYLE", os.Getenv("S3_ENDPOINT") != ""),
		S3LinkTTL:   envDuration("S3_LINK_TTL", 168*time.Hour), // 7 days
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows some services (like email) to use fallback modes for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires a JWT_SECRET of at least 32 characters")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// ReportArchiveEnabled reports whether rendered reports are archived to S3.
func (c *Config) ReportArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// LLMEnabled reports whether the chat endpoint can call a model.
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIURL != "" && c.LLMAPIKey != ""
}
