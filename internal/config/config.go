package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"who-is-live/internal/logger"
)

// Config holds all application configuration loaded from environment variables
type Config struct {
	// Database configuration
	DatabasePath string

	// Platform API keys
	YouTubeAPIKey  string
	TwitchClientID string
	TwitchSecret   string

	// Refresh pipeline
	RosterPath       string
	RefreshInterval  time.Duration
	AdapterTimeout   time.Duration
	RequestTimeout   time.Duration
	FetchConcurrency int

	// Server configuration
	ServerPort     string
	AllowedOrigins []string
	MetricsEnabled bool
	LogLevel       string
}

// Load reads configuration from environment variables and returns a Config instance
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./data/who-is-live.db"),

		// Platform API keys (optional - adapters degrade without them)
		YouTubeAPIKey:  os.Getenv("YOUTUBE_API_KEY"),
		TwitchClientID: os.Getenv("TWITCH_CLIENT_ID"),
		TwitchSecret:   os.Getenv("TWITCH_SECRET"),

		RosterPath: getEnvOrDefault("ROSTER_PATH", "streamers.yaml"),

		ServerPort:     getEnvOrDefault("SERVER_PORT", "3000"),
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RefreshInterval, err = parseDuration("REFRESH_INTERVAL", "2m"); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = parseDuration("ADAPTER_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	concurrency, err := strconv.Atoi(getEnvOrDefault("FETCH_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_CONCURRENCY format: %w", err)
	}
	cfg.FetchConcurrency = concurrency

	metricsEnabled, err := strconv.ParseBool(getEnvOrDefault("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid METRICS_ENABLED format: %w", err)
	}
	cfg.MetricsEnabled = metricsEnabled

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration values are present and valid
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH cannot be empty")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval)
	}
	if c.AdapterTimeout <= 0 {
		return fmt.Errorf("ADAPTER_TIMEOUT must be positive, got %s", c.AdapterTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.FetchConcurrency)
	}

	return nil
}

// TwitchEnabled reports whether Twitch credentials are configured
func (c *Config) TwitchEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchSecret != ""
}

// LogConfiguration logs all loaded configuration values, excluding secrets
func (c *Config) LogConfiguration(log *logger.Logger) {
	log.Info("configuration loaded", map[string]interface{}{
		"database_path":     c.DatabasePath,
		"roster_path":       c.RosterPath,
		"server_port":       c.ServerPort,
		"allowed_origins":   strings.Join(c.AllowedOrigins, ","),
		"refresh_interval":  c.RefreshInterval.String(),
		"adapter_timeout":   c.AdapterTimeout.String(),
		"request_timeout":   c.RequestTimeout.String(),
		"fetch_concurrency": c.FetchConcurrency,
		"metrics_enabled":   c.MetricsEnabled,
		"youtube_api_key":   maskSecret(c.YouTubeAPIKey),
		"twitch_client_id":  maskSecret(c.TwitchClientID),
	})

	// Log warnings for missing optional API keys
	if c.YouTubeAPIKey == "" {
		log.Warn("YOUTUBE_API_KEY not set - YouTube status falls back to page extraction", nil)
	}
	if !c.TwitchEnabled() {
		log.Warn("TWITCH_CLIENT_ID or TWITCH_SECRET not set - Twitch streamers will not be checked", nil)
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}

// splitList splits a comma-separated value, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// maskSecret masks a secret string for logging, showing only first 4 characters
func maskSecret(secret string) string {
	if secret == "" {
		return "[not set]"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
