package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server ports
	APIPort     int
	SMTPPort    int
	SMTPEnabled bool

	// SMTPHostname is announced in the SMTP greeting
	SMTPHostname string

	// Storage
	AttachmentStoragePath string

	// Logging
	LogLevel string

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int

	// Classification
	ClassifierURL         string
	ClassifierAPIKey      string
	ClassifierTimeout     time.Duration
	ClassifierMaxAttempts int
	ClassifierBaseDelay   time.Duration
	ClassifierMaxDelay    time.Duration
	ClassifierWorkers     int
	ClassifierQueueSize   int

	// Ingestion
	BatchMaxConcurrent int
	BatchPause         time.Duration
	DuplicatePolicy    string

	// Team cache
	RedisURL     string
	TeamCacheTTL time.Duration
}

var defaults = map[string]any{
	"api_port":                8080,
	"smtp_port":               2525,
	"smtp_enabled":            true,
	"smtp_hostname":           "mail.inbox.local",
	"attachment_storage_path": "./attachments",
	"log_level":               "info",
	"app_env":                 "development",
	"rate_limit_requests":     10.0,
	"rate_limit_burst":        20,
	"classifier_timeout":      "10s",
	"classifier_max_attempts": 3,
	"classifier_base_delay":   "500ms",
	"classifier_max_delay":    "5s",
	"classifier_workers":      2,
	"classifier_queue_size":   100,
	"batch_max_concurrent":    5,
	"batch_pause":             "100ms",
	"duplicate_policy":        "idempotent",
	"team_cache_ttl":          "5m",
}

var keys = []string{
	"database_url", "api_key", "allowed_origins", "classifier_url",
	"classifier_api_key", "redis_url", "config_file",
}

// Load reads configuration from environment variables, optionally layered
// over the YAML or JSON file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = v.GetString("database_url")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	var errs []error
	cfg.APIPort = intValue(v, "api_port", &errs)
	cfg.SMTPPort = intValue(v, "smtp_port", &errs)
	cfg.SMTPEnabled = boolValue(v, "smtp_enabled", &errs)
	cfg.SMTPHostname = v.GetString("smtp_hostname")
	cfg.AttachmentStoragePath = v.GetString("attachment_storage_path")
	cfg.LogLevel = v.GetString("log_level")

	cfg.APIKey = v.GetString("api_key")
	cfg.AllowedOrigins = v.GetString("allowed_origins")
	cfg.AppEnv = v.GetString("app_env")

	cfg.RateLimitRequests = floatValue(v, "rate_limit_requests", &errs)
	cfg.RateLimitBurst = intValue(v, "rate_limit_burst", &errs)

	cfg.ClassifierURL = v.GetString("classifier_url")
	cfg.ClassifierAPIKey = v.GetString("classifier_api_key")
	cfg.ClassifierTimeout = durationValue(v, "classifier_timeout", &errs)
	cfg.ClassifierMaxAttempts = intValue(v, "classifier_max_attempts", &errs)
	cfg.ClassifierBaseDelay = durationValue(v, "classifier_base_delay", &errs)
	cfg.ClassifierMaxDelay = durationValue(v, "classifier_max_delay", &errs)
	cfg.ClassifierWorkers = intValue(v, "classifier_workers", &errs)
	cfg.ClassifierQueueSize = intValue(v, "classifier_queue_size", &errs)

	cfg.BatchMaxConcurrent = intValue(v, "batch_max_concurrent", &errs)
	cfg.BatchPause = durationValue(v, "batch_pause", &errs)
	cfg.DuplicatePolicy = strings.ToLower(strings.TrimSpace(v.GetString("duplicate_policy")))

	cfg.RedisURL = v.GetString("redis_url")
	cfg.TeamCacheTTL = durationValue(v, "team_cache_ttl", &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func envName(key string) string {
	return strings.ToUpper(key)
}

func intValue(v *viper.Viper, key string, errs *[]error) int {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid integer: %w", envName(key), err))
	}
	return n
}

func floatValue(v *viper.Viper, key string, errs *[]error) float64 {
	f, err := cast.ToFloat64E(v.Get(key))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid number: %w", envName(key), err))
	}
	return f
}

func boolValue(v *viper.Viper, key string, errs *[]error) bool {
	b, err := cast.ToBoolE(v.Get(key))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid boolean: %w", envName(key), err))
	}
	return b
}

func durationValue(v *viper.Viper, key string, errs *[]error) time.Duration {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid duration: %w", envName(key), err))
	}
	return d
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTPPort must be between 1 and 65535")
	}
	if c.AttachmentStoragePath == "" {
		return fmt.Errorf("AttachmentStoragePath cannot be empty")
	}
	if c.DuplicatePolicy != "idempotent" && c.DuplicatePolicy != "reject" {
		return fmt.Errorf("DUPLICATE_POLICY must be idempotent or reject, got %q", c.DuplicatePolicy)
	}
	if c.ClassifierMaxAttempts < 1 {
		return fmt.Errorf("CLASSIFIER_MAX_ATTEMPTS must be at least 1")
	}
	if c.ClassifierWorkers < 1 || c.ClassifierQueueSize < 1 {
		return fmt.Errorf("CLASSIFIER_WORKERS and CLASSIFIER_QUEUE_SIZE must be positive")
	}
	if c.BatchMaxConcurrent < 1 {
		return fmt.Errorf("BATCH_MAX_CONCURRENT must be at least 1")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ClassifierEnabled reports whether a classification endpoint is configured
func (c *Config) ClassifierEnabled() bool {
	return c.ClassifierURL != ""
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Bool("smtp_enabled", c.SMTPEnabled),
		slog.String("storage_path", c.AttachmentStoragePath),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.Bool("classifier_enabled", c.ClassifierEnabled()),
		slog.Bool("classifier_api_key_set", c.ClassifierAPIKey != ""),
		slog.Int("classifier_workers", c.ClassifierWorkers),
		slog.String("duplicate_policy", c.DuplicatePolicy),
		slog.Bool("redis_cache", c.RedisURL != ""),
		slog.Duration("team_cache_ttl", c.TeamCacheTTL),
	)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
