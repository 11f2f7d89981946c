package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Routing engine
	RulesFile      string
	Location       *time.Location
	WaitFloor      time.Duration
	SLThreshold    time.Duration
	DefaultMaxWait time.Duration
	SweepInterval  time.Duration
	SnapshotPeriod time.Duration
	DailyReset     string

	RateLimitPerMinute int
	OTLPEndpoint       string
	OTLPInsecure       bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RulesFile:      getEnv("ROUTER_RULES_FILE", ""),
		DailyReset:     getEnv("ROUTER_DAILY_RESET", "0 0 * * *"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:   getEnv("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	loc, err := time.LoadLocation(getEnv("ROUTER_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid ROUTER_TIMEZONE: %w", err)
	}
	config.Location = loc

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"ROUTER_WAIT_FLOOR", "15s", &config.WaitFloor},
		{"ROUTER_SL_THRESHOLD", "60s", &config.SLThreshold},
		{"ROUTER_DEFAULT_MAX_WAIT", "300s", &config.DefaultMaxWait},
		{"ROUTER_SWEEP_INTERVAL", "1s", &config.SweepInterval},
		{"ROUTER_SNAPSHOT_INTERVAL", "2s", &config.SnapshotPeriod},
	}
	for _, d := range durations {
		v, err := parseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	rate, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "600"))
	if err != nil || rate < 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %q", getEnv("RATE_LIMIT_PER_MINUTE", ""))
	}
	config.RateLimitPerMinute = rate

	return config, nil
}

// parseDuration accepts Go durations ("90s", "2m") or plain seconds ("90")
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
