package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSecretLength = 32

var DefaultPages = []string{
	"ORDERS_DELIVERY_DASHBOARD.html",
	"MERCHANT_PERFORMANCE_DASHBOARD.html",
	"ORDERING_BEHAVIOR_DASHBOARD.html",
	"SEASONALITY_DASHBOARD.html",
}

// Config holds the dashboard server configuration.
type Config struct {
	Port string
	Env  string // "prod" enables Secure cookies and HSTS

	SlackClientID     string
	SlackClientSecret string
	SlackCallbackURL  string

	SessionSecret string // signs session cookies and JWT identities
	SessionStore  string // memory, sqlite or redis
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	IdentityCodec string // jwt or json

	DashboardDir   string
	DashboardPages []string

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel        string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with defaults and
// validates it.
func Load() (*Config, error) {
	config := &Config{
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("ENV", "dev"),
		SlackClientID:     getEnv("SLACK_CLIENT_ID", ""),
		SlackClientSecret: getEnv("SLACK_CLIENT_SECRET", ""),
		SlackCallbackURL:  getEnv("SLACK_CALLBACK_URL", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionStore:      getEnv("SESSION_STORE", "memory"),
		SQLitePath:        getEnv("SQLITE_PATH", "sessions.db"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		IdentityCodec:     getEnv("IDENTITY_CODEC", "jwt"),
		DashboardDir:      getEnv("DASHBOARD_DIR", "public"),
		DashboardPages:    DefaultPages,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if config.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if config.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 15); err != nil {
		return nil, err
	}
	if config.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 50); err != nil {
		return nil, err
	}
	if config.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if pages := getEnv("DASHBOARD_PAGES", ""); pages != "" {
		config.DashboardPages = splitList(pages)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SlackClientID == "" || c.SlackClientSecret == "" || c.SlackCallbackURL == "" {
		return fmt.Errorf("SLACK_CLIENT_ID, SLACK_CLIENT_SECRET and SLACK_CALLBACK_URL are required")
	}
	if len(c.SessionSecret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength)
	}
	switch c.SessionStore {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty for the sqlite session store")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty for the redis session store")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of memory, sqlite, redis; got %q", c.SessionStore)
	}
	if c.IdentityCodec != "jwt" && c.IdentityCodec != "json" {
		return fmt.Errorf("IDENTITY_CODEC must be jwt or json; got %q", c.IdentityCodec)
	}
	if len(c.DashboardPages) == 0 {
		return fmt.Errorf("DASHBOARD_PAGES cannot be empty")
	}
	for _, page := range c.DashboardPages {
		if strings.ContainsAny(page, "/\\") || strings.HasPrefix(page, ".") || !strings.HasSuffix(page, ".html") {
			return fmt.Errorf("dashboard page %q must be a plain .html file name", page)
		}
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST cannot be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

// getEnv retrieves an environment variable or returns a fallback value.
// KEY_FILE, when set, names a file holding the value.
func getEnv(key, fallback string) string {
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
