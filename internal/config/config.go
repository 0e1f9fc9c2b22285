package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string
	CatalogPath    string

	// Calendar policy for streaks and weekly counts
	WeekStart   time.Weekday
	Location    *time.Location
	TrendWindow time.Duration

	LogMode        string
	MetricsEnabled bool

	// Write requests allowed per client per minute (0 disables limiting)
	RateLimitPerMinute int

	// Reward notification email (disabled when SESFromEmail is empty)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:     getEnv("PORT", "8080"),
		DatabaseType:   strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:   getEnv("DB_PATH", "./brightsteps.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		CatalogPath:    getEnv("CATALOG_PATH", "./catalog/catalog.yaml"),
		LogMode:        getEnv("LOG_MODE", "dev"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:   getEnv("SES_FROM_EMAIL", ""),
		SESFromName:    getEnv("SES_FROM_NAME", "BrightSteps"),
		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
	}

	var err error
	if cfg.WeekStart, err = parseWeekday(getEnv("WEEK_START", "sunday")); err != nil {
		return nil, err
	}
	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	days, err := getEnvInt("TREND_WINDOW_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if days < 1 {
		return nil, fmt.Errorf("TREND_WINDOW_DAYS must be at least 1, got %d", days)
	}
	cfg.TrendWindow = time.Duration(days) * 24 * time.Hour

	if cfg.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", cfg.RateLimitPerMinute)
	}

	switch cfg.DatabaseType {
	case "sqlite", "sqlite3", "postgres", "postgresql", "mysql":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_TYPE: %s", cfg.DatabaseType)
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "sqlite3" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for %s", cfg.DatabaseType)
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) || strings.EqualFold(d.String()[:3], name) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid WEEK_START: %q", name)
}
