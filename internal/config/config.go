package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type DiscoveryConfig struct {
	Enabled  bool
	Instance string
}

type Config struct {
	HTTPPort         int
	DatabasePath     string
	LogLevel         string
	VideoURL         string
	IncidentID       string
	PlaybackTick     time.Duration
	TelegramBotToken string
	Redis            RedisConfig
	Discovery        DiscoveryConfig
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	return &Config{
		HTTPPort:         getEnvAsInt("HTTP_PORT", 8080),
		DatabasePath:     getEnv("DATABASE_PATH", "incident_review.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		VideoURL:         getEnv("VIDEO_URL", ""),
		IncidentID:       getEnv("INCIDENT_ID", "TES-2024-0123"),
		PlaybackTick:     getEnvAsDuration("PLAYBACK_TICK", 250*time.Millisecond),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "incident_review"),
			TTL:      getEnvAsDuration("REDIS_TTL", 10*time.Minute),
		},
		Discovery: DiscoveryConfig{
			Enabled:  getEnvAsBool("DISCOVERY_ENABLED", false),
			Instance: getEnv("DISCOVERY_INSTANCE", ""),
		},
	}
}

// LogLevel maps a level name to a slog level, defaulting to info.
func LogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
