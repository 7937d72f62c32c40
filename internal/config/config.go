package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Presence PresenceConfig
	Message  MessageConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type PresenceConfig struct {
	SweepInterval  time.Duration
	StaleThreshold time.Duration
	TypingTTL      time.Duration
	AwayTimeout    time.Duration
}

type MessageConfig struct {
	EditWindow time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "vahub"),
			Password: getEnv("DB_PASSWORD", "vahub"),
			Name:     getEnv("DB_NAME", "vahub_messaging"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret"),
		},
		Presence: PresenceConfig{
			SweepInterval:  getEnvAsDuration("PRESENCE_SWEEP_INTERVAL", 5*time.Minute),
			StaleThreshold: getEnvAsDuration("PRESENCE_STALE_THRESHOLD", 10*time.Minute),
			TypingTTL:      getEnvAsDuration("TYPING_TTL", 3*time.Second),
			AwayTimeout:    getEnvAsDuration("PRESENCE_AWAY_TIMEOUT", 5*time.Minute),
		},
		Message: MessageConfig{
			EditWindow: getEnvAsDuration("MESSAGE_EDIT_WINDOW", 15*time.Minute),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
