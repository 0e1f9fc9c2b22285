package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_TYPE", "WEEK_START", "TIMEZONE", "TREND_WINDOW_DAYS", "METRICS_ENABLED", "RATE_LIMIT_PER_MINUTE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.WeekStart != time.Sunday {
		t.Errorf("WeekStart = %v, want Sunday", cfg.WeekStart)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
	if cfg.TrendWindow != 7*24*time.Hour {
		t.Errorf("TrendWindow = %v, want 168h", cfg.TrendWindow)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled should default to true")
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want 60", cfg.RateLimitPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEEK_START", "Mon")
	t.Setenv("TIMEZONE", "Europe/London")
	t.Setenv("TREND_WINDOW_DAYS", "14")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeekStart != time.Monday {
		t.Errorf("WeekStart = %v, want Monday", cfg.WeekStart)
	}
	if cfg.Location.String() != "Europe/London" {
		t.Errorf("Location = %v", cfg.Location)
	}
	if cfg.TrendWindow != 14*24*time.Hour {
		t.Errorf("TrendWindow = %v", cfg.TrendWindow)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be false")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"weekday", "WEEK_START", "someday"},
		{"timezone", "TIMEZONE", "Mars/Olympus"},
		{"window", "TREND_WINDOW_DAYS", "0"},
		{"window not a number", "TREND_WINDOW_DAYS", "week"},
		{"negative rate limit", "RATE_LIMIT_PER_MINUTE", "-1"},
		{"database type", "DATABASE_TYPE", "oracle"},
		{"postgres without url", "DATABASE_TYPE", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}
