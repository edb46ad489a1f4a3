// Package config loads the server configuration once at startup from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the fully resolved configuration. Secrets are held here and
// passed to constructors; nothing else reads the environment.
type Config struct {
	APIKey         string
	OpenAIBaseURL  string
	OpenAIOrg      string
	SSMAPIKeyParam string

	OutputDir   string
	SaveDefault bool

	Port               int
	AuthToken          string
	RateLimitPerMinute int
	RateLimitBurst     int
	RequestTimeout     time.Duration
	DownloadTimeout    time.Duration

	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupMaxFiles  int
	CleanupInterval  time.Duration
	CleanupDryRun    bool

	ArchiveBucket string
	ArchivePrefix string

	MetricsEMF bool
	LogLevel   string
	LogJSON    bool
}

// Load reads the given dotenv files (default ".env"), then the environment.
// Missing dotenv files are ignored and real environment variables win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIOrg:      os.Getenv("OPENAI_ORG"),
		SSMAPIKeyParam: os.Getenv("SSM_API_KEY_PARAM"),

		OutputDir:   getEnv("DALLE_OUTPUT_DIR", "./generated-images"),
		SaveDefault: getEnvBool("DALLE_SAVE_DEFAULT", false),

		Port:               getEnvInt("PORT", 3000),
		AuthToken:          os.Getenv("AUTH_TOKEN"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 3),
		RequestTimeout:     time.Second * time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 120)),
		DownloadTimeout:    time.Second * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 30)),

		CleanupEnabled:   getEnvBool("CLEANUP_ENABLED", true),
		CleanupRetention: 24 * time.Hour * time.Duration(getEnvInt("CLEANUP_RETENTION_DAYS", 7)),
		CleanupMaxFiles:  getEnvInt("CLEANUP_MAX_FILES", 0),
		CleanupInterval:  time.Hour * time.Duration(getEnvInt("CLEANUP_INTERVAL_HOURS", 24)),
		CleanupDryRun:    getEnvBool("CLEANUP_DRY_RUN", false),

		ArchiveBucket: os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchivePrefix: getEnv("ARCHIVE_S3_PREFIX", "dalle"),

		MetricsEMF: getEnvBool("METRICS_EMF", false),
		LogLevel:   strings.ToLower(getEnv("DALLE_LOG_LEVEL", "info")),
		LogJSON:    strings.EqualFold(os.Getenv("DALLE_LOG_FORMAT"), "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("DALLE_OUTPUT_DIR must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute))
	}
	if c.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT_SECONDS must be positive"))
	}
	if c.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("DOWNLOAD_TIMEOUT_SECONDS must be positive"))
	}
	if c.CleanupRetention <= 0 {
		errs = append(errs, errors.New("CLEANUP_RETENTION_DAYS must be positive"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL_HOURS must be positive"))
	}
	if c.CleanupMaxFiles < 0 {
		errs = append(errs, fmt.Errorf("CLEANUP_MAX_FILES must not be negative, got %d", c.CleanupMaxFiles))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("DALLE_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// AuthEnabled reports whether HTTP routes require a bearer token.
func (c *Config) AuthEnabled() bool { return c.AuthToken != "" }

// ArchiveEnabled reports whether saved images are copied to S3.
func (c *Config) ArchiveEnabled() bool { return c.ArchiveBucket != "" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", fallback).Msg("Ignoring non-integer environment value")
		return fallback
	}
	return i
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", fallback).Msg("Ignoring non-boolean environment value")
		return fallback
	}
	return b
}
