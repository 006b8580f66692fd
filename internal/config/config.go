package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Backend BackendConfig
	Query   QueryConfig
	Server  ServerConfig
	Log     LogConfig
}

// BackendConfig holds change-history backend connection settings.
type BackendConfig struct {
	URL     string
	Token   string //nolint:gosec // G117: backend credential config
	Timeout time.Duration
}

// QueryConfig holds the initial fetch parameters and the refresh cadence.
type QueryConfig struct {
	WindowHours     int
	ScopeDomain     string
	SummaryDays     int
	RankingLimit    int
	RefreshInterval time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults suit local development against a backend on localhost;
// production deployments set the backend URL and token explicitly.
func Load() (*Config, error) {
	backendTimeout, err := getEnvDuration("STACKTRAIL_BACKEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	windowHours, err := getEnvInt("STACKTRAIL_WINDOW_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	summaryDays, err := getEnvInt("STACKTRAIL_SUMMARY_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rankingLimit, err := getEnvInt("STACKTRAIL_RANKING_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshInterval, err := getEnvDuration("STACKTRAIL_REFRESH_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("STACKTRAIL_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("STACKTRAIL_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("STACKTRAIL_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Backend: BackendConfig{
			URL:     getEnv("STACKTRAIL_BACKEND_URL", "http://localhost:9090"),
			Token:   getEnv("STACKTRAIL_BACKEND_TOKEN", ""),
			Timeout: backendTimeout,
		},
		Query: QueryConfig{
			WindowHours:     windowHours,
			ScopeDomain:     getEnv("STACKTRAIL_SCOPE_DOMAIN", ""),
			SummaryDays:     summaryDays,
			RankingLimit:    rankingLimit,
			RefreshInterval: refreshInterval,
		},
		Server: ServerConfig{
			Addr:         getEnv("STACKTRAIL_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Log: LogConfig{
			Level:  getEnv("STACKTRAIL_LOG_LEVEL", "info"),
			Format: getEnv("STACKTRAIL_LOG_FORMAT", "json"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("STACKTRAIL_BACKEND_URL %q does not parse: %w", c.Backend.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STACKTRAIL_BACKEND_URL %q must include scheme and host", c.Backend.URL)
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("STACKTRAIL_BACKEND_TIMEOUT must be positive, got %s", c.Backend.Timeout)
	}

	// Bounds checks on fetch parameters.
	if c.Query.WindowHours < 1 {
		return fmt.Errorf("STACKTRAIL_WINDOW_HOURS must be >= 1, got %d", c.Query.WindowHours)
	}
	if c.Query.SummaryDays < 1 {
		return fmt.Errorf("STACKTRAIL_SUMMARY_DAYS must be >= 1, got %d", c.Query.SummaryDays)
	}
	if c.Query.RankingLimit < 1 {
		return fmt.Errorf("STACKTRAIL_RANKING_LIMIT must be >= 1, got %d", c.Query.RankingLimit)
	}
	if c.Query.RefreshInterval < time.Second {
		return fmt.Errorf("STACKTRAIL_REFRESH_INTERVAL must be >= 1s, got %s", c.Query.RefreshInterval)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("STACKTRAIL_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("STACKTRAIL_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("STACKTRAIL_LOG_LEVEL %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return errors.New(`STACKTRAIL_LOG_FORMAT must be "json" or "console"`)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
