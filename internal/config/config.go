// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	MenuFile    string
	Location    string
	Latitude    float64
	Longitude   float64
	Weather     bool
	AdminToken  string
	CreatorName string

	RateLimit       RateLimitConfig
	Session         SessionConfig
	Timeout         TimeoutConfig
	Breaker         BreakerConfig
	Gemini          GeminiConfig
	History         HistoryConfig
	ConversationLog ConversationLogConfig
}

// RateLimitConfig holds per-user ceilings and the per-IP webhook guard.
type RateLimitConfig struct {
	PerMinute int
	PerHour   int
	PerDay    int
	PerIP     int // requests per minute per client IP, 0 disables
}

// SessionConfig controls in-memory conversation state.
type SessionConfig struct {
	TTL        time.Duration
	MaxHistory int
}

// TimeoutConfig holds the request deadline and per-call budgets.
type TimeoutConfig struct {
	Request     time.Duration
	Classify    time.Duration
	Compose     time.Duration
	Weather     time.Duration
	WeatherTTL  time.Duration
	HealthCheck time.Duration
}

// BreakerConfig controls the remote generator cooldown schedule.
type BreakerConfig struct {
	BackoffFloor time.Duration
	BackoffMax   time.Duration
}

// GeminiConfig configures the remote text generator.
type GeminiConfig struct {
	APIKeys []string
	Model   string
}

// Enabled reports whether at least one API key is configured.
func (g GeminiConfig) Enabled() bool {
	return len(g.APIKeys) > 0
}

// HistoryConfig controls the long-term history log.
type HistoryConfig struct {
	RecentDays     int
	Retention      time.Duration
	MaintenanceTTL time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/lunch.db"),
		MenuFile:    getEnv("MENU_FILE", ""),
		Location:    getEnv("LOCATION", "Seoul"),
		Latitude:    getEnvFloat("LATITUDE", 37.5665),
		Longitude:   getEnvFloat("LONGITUDE", 126.9780),
		Weather:     getEnvBool("WEATHER_ENABLED", true),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
		CreatorName: getEnv("CREATOR_NAME", ""),
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
			PerHour:   getEnvInt("RATE_LIMIT_PER_HOUR", 50),
			PerDay:    getEnvInt("RATE_LIMIT_PER_DAY", 200),
			PerIP:     getEnvInt("RATE_LIMIT_PER_IP", 120),
		},
		Session: SessionConfig{
			TTL:        getEnvDuration("SESSION_TTL", 30*time.Minute),
			MaxHistory: getEnvInt("SESSION_MAX_HISTORY", 10),
		},
		Timeout: TimeoutConfig{
			Request:     getEnvDuration("REQUEST_DEADLINE", 4300*time.Millisecond),
			Classify:    getEnvDuration("CLASSIFY_TIMEOUT", 1800*time.Millisecond),
			Compose:     getEnvDuration("COMPOSE_TIMEOUT", 2*time.Second),
			Weather:     getEnvDuration("WEATHER_TIMEOUT", 1500*time.Millisecond),
			WeatherTTL:  getEnvDuration("WEATHER_TTL", 10*time.Minute),
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Breaker: BreakerConfig{
			BackoffFloor: getEnvDuration("BREAKER_BACKOFF_FLOOR", 30*time.Second),
			BackoffMax:   getEnvDuration("BREAKER_BACKOFF_MAX", 10*time.Minute),
		},
		Gemini: GeminiConfig{
			APIKeys: apiKeys(),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		History: HistoryConfig{
			RecentDays:     getEnvInt("HISTORY_RECENT_DAYS", 2),
			Retention:      getEnvDuration("HISTORY_RETENTION", 90*24*time.Hour),
			MaintenanceTTL: getEnvDuration("MAINTENANCE_INTERVAL", 10*time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.PerHour <= 0 || c.RateLimit.PerDay <= 0 {
		return fmt.Errorf("rate limit ceilings must be > 0")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.MaxHistory <= 0 {
		return fmt.Errorf("SESSION_MAX_HISTORY must be > 0")
	}
	if c.Timeout.Request <= 0 {
		return fmt.Errorf("REQUEST_DEADLINE must be > 0")
	}
	if c.Timeout.Classify >= c.Timeout.Request {
		return fmt.Errorf("CLASSIFY_TIMEOUT must be shorter than REQUEST_DEADLINE")
	}
	if c.Breaker.BackoffFloor <= 0 || c.Breaker.BackoffMax < c.Breaker.BackoffFloor {
		return fmt.Errorf("BREAKER_BACKOFF_MAX must be >= BREAKER_BACKOFF_FLOOR > 0")
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("LATITUDE/LONGITUDE out of range")
	}
	if c.History.MaintenanceTTL <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must be > 0")
	}
	if c.History.RecentDays < 0 {
		return fmt.Errorf("HISTORY_RECENT_DAYS must be >= 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// apiKeys collects GEMINI_API_KEYS (comma separated) and the single
// GEMINI_API_KEY, dropping blanks and duplicates.
func apiKeys() []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}
	for _, k := range strings.Split(getEnv("GEMINI_API_KEYS", ""), ",") {
		add(k)
	}
	add(getEnv("GEMINI_API_KEY", ""))
	return keys
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
