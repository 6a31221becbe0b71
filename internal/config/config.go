package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Config struct {
	// Fiindo API
	APIBaseURL string
	APIToken   string

	// HTTP
	HTTPTimeout   time.Duration
	HTTPRetries   int
	HTTPBackoff   time.Duration
	HTTPRateLimit float64

	// Database
	DatabaseURL string

	// Pipeline
	Workers    int
	Industries []string
	Schedule   string
	RunTimeout time.Duration

	// Quality gate, zero disables
	MaxFailureRatio float64
	MinTickers      int

	// Observability
	LogLevel        string
	WebhookURL      string
	NotifyName      string
	MetricsTextfile string

	// Results API (schedule mode only)
	APIPort    int
	APIKey     string
	CORSOrigin string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := envDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	backoff, err := envDuration("HTTP_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	runTimeout, err := envDuration("ETL_RUN_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBaseURL: envStr("FIINDO_API_BASE", "https://api.test.fiindo.com"),
		APIToken:   envStr("FIINDO_AUTH", ""),

		HTTPTimeout:   timeout,
		HTTPRetries:   envInt("HTTP_RETRIES", 3),
		HTTPBackoff:   backoff,
		HTTPRateLimit: envFloat("HTTP_RATE_LIMIT", 0),

		DatabaseURL: envStr("DATABASE_URL", "sqlite://fiindo_etl.db"),

		Workers:    envInt("ETL_WORKERS", 8),
		Industries: envList("ETL_INDUSTRIES"),
		Schedule:   envStr("ETL_SCHEDULE", ""),
		RunTimeout: runTimeout,

		MaxFailureRatio: envFloat("ETL_MAX_FAILURE_RATIO", 0),
		MinTickers:      envInt("ETL_MIN_TICKERS", 0),

		LogLevel:        envStr("LOG_LEVEL", "info"),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		NotifyName:      envStr("NOTIFY_NAME", "FiindoETL"),
		MetricsTextfile: envStr("METRICS_TEXTFILE", ""),

		APIPort:    envInt("API_PORT", 0),
		APIKey:     envStr("API_KEY", ""),
		CORSOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.APIToken == "" {
		errs = append(errs, "FIINDO_AUTH is required")
	}
	if c.APIBaseURL == "" {
		errs = append(errs, "FIINDO_API_BASE is required")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Sprintf("ETL_WORKERS must be >= 1 (got %d)", c.Workers))
	}
	if c.HTTPRetries < 0 {
		errs = append(errs, fmt.Sprintf("HTTP_RETRIES must be >= 0 (got %d)", c.HTTPRetries))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "HTTP_TIMEOUT must be positive")
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ETL_RUN_TIMEOUT must be positive (got %s)", c.RunTimeout))
	}
	if c.HTTPRateLimit < 0 {
		errs = append(errs, "HTTP_RATE_LIMIT must be >= 0")
	}
	if c.MaxFailureRatio < 0 || c.MaxFailureRatio > 1 {
		errs = append(errs, fmt.Sprintf("ETL_MAX_FAILURE_RATIO must be between 0 and 1 (got %g)", c.MaxFailureRatio))
	}
	if c.MinTickers < 0 {
		errs = append(errs, fmt.Sprintf("ETL_MIN_TICKERS must be >= 0 (got %d)", c.MinTickers))
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Sprintf("API_PORT must be between 0 and 65535 (got %d)", c.APIPort))
	}
	if c.Schedule != "" {
		if _, err := ScheduleParser.Parse(c.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("ETL_SCHEDULE %q is invalid: %v", c.Schedule, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ScheduleParser accepts standard five-field specs, an optional leading
// seconds field and descriptors such as @hourly.
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (c *Config) Print(logger *zap.Logger) {
	industries := "all"
	if len(c.Industries) > 0 {
		industries = strings.Join(c.Industries, ", ")
	}
	schedule := c.Schedule
	if schedule == "" {
		schedule = "once"
	}

	logger.Info("configuration",
		zap.String("api_base", c.APIBaseURL),
		zap.String("api_token", mask(c.APIToken)),
		zap.String("database", redactURL(c.DatabaseURL)),
		zap.Int("workers", c.Workers),
		zap.String("industries", industries),
		zap.Duration("http_timeout", c.HTTPTimeout),
		zap.Int("http_retries", c.HTTPRetries),
		zap.Float64("http_rate_limit", c.HTTPRateLimit),
		zap.String("schedule", schedule),
		zap.Float64("max_failure_ratio", c.MaxFailureRatio),
		zap.Int("min_tickers", c.MinTickers),
		zap.Bool("webhook", c.WebhookURL != ""),
		zap.String("metrics_textfile", c.MetricsTextfile),
		zap.Int("api_port", c.APIPort),
		zap.String("api_key", mask(c.APIKey)),
	)
	if c.HTTPRateLimit == 0 {
		logger.Warn("HTTP_RATE_LIMIT not set, API requests are only bounded by ETL_WORKERS")
	}
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go durations ("750ms") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + "****" + secret[len(secret)-2:]
}

func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "****" + raw[at:]
}
