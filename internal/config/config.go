package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for studyhub
type Config struct {
	Server    ServerConfig
	KV        KVConfig
	Redis     RedisConfig
	Data      DataConfig
	Flush     FlushConfig
	Progress  ProgressConfig
	Quiz      QuizConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	SecureCookies  bool
}

// KVConfig selects and configures the progress key-value backend
type KVConfig struct {
	Backend       string
	SQLitePath    string
	DSN           string
	MigrationsDir string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// DataConfig points at the catalog and quiz documents and the directory
// the resource files are served from
type DataConfig struct {
	SiteDir       string
	CatalogSource string
	QuizSource    string
	FetchTimeout  time.Duration
	MaxBytes      int64
}

// FlushConfig holds flush worker configuration
type FlushConfig struct {
	Interval time.Duration
}

// ProgressConfig controls how long idle learner state stays in memory
type ProgressConfig struct {
	IdleTTL time.Duration
}

// QuizConfig holds quiz session configuration
type QuizConfig struct {
	SessionTTL time.Duration
}

// RateLimitConfig limits write requests per client IP
type RateLimitConfig struct {
	PerMinute int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level slog.Level
}

var backends = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"redis":    true,
	"postgres": true,
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
			SecureCookies:  getEnvAsBool("SECURE_COOKIES", false),
		},
		KV: KVConfig{
			Backend:       getEnv("KV_BACKEND", "sqlite"),
			SQLitePath:    getEnv("SQLITE_PATH", "./data/studyhub.db"),
			DSN:           getEnv("DATABASE_DSN", ""),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Data: DataConfig{
			SiteDir:       getEnv("SITE_DIR", "."),
			CatalogSource: getEnv("CATALOG_SOURCE", "./data/resources.json"),
			QuizSource:    getEnv("QUIZ_SOURCE", "./data/quiz.json"),
			FetchTimeout:  getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
			MaxBytes:      int64(getEnvAsInt("MAX_DOCUMENT_BYTES", 10<<20)),
		},
		Flush: FlushConfig{
			Interval: getEnvAsDuration("FLUSH_INTERVAL", 30*time.Second),
		},
		Progress: ProgressConfig{
			IdleTTL: getEnvAsDuration("PROGRESS_IDLE_TTL", 30*time.Minute),
		},
		Quiz: QuizConfig{
			SessionTTL: getEnvAsDuration("QUIZ_SESSION_TTL", 30*time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Log: LogConfig{
			Level: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if !backends[c.KV.Backend] {
		return fmt.Errorf("unknown kv backend: %q", c.KV.Backend)
	}

	switch c.KV.Backend {
	case "sqlite":
		if c.KV.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if c.KV.DSN == "" {
			return fmt.Errorf("database DSN is required")
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	}

	if c.Data.CatalogSource == "" {
		return fmt.Errorf("catalog source is required")
	}
	if c.Data.QuizSource == "" {
		return fmt.Errorf("quiz source is required")
	}

	if c.Data.MaxBytes <= 0 {
		return fmt.Errorf("invalid max document bytes: %d", c.Data.MaxBytes)
	}

	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("invalid rate limit: %d", c.RateLimit.PerMinute)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value, exists := os.LookupEnv(key); exists {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
