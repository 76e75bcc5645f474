package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppName      string // Service name used in logs and TOTP issuer (default: castellan)
	DatabaseFile string // Path to SQLite database file (default: ./castellan.db)

	AuthCodeTTL time.Duration // Lifetime of single-use authentication codes (default: 5m)
	SessionTTL  time.Duration // Lifetime of sessions; 0 means no expiry until revoked

	SocialGatewaySecret string // Shared HMAC key with the social gateway; empty disables social login

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Host                 string        // HTTP bind address; empty binds all interfaces
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		AppName:              getEnvOrDefault("APP_NAME", "castellan"),
		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "castellan.db"),
		AuthCodeTTL:          getEnvDurationOrDefault("AUTH_CODE_TTL", 5*time.Minute),
		SessionTTL:           getEnvDurationOrDefault("SESSION_TTL", 0),
		SocialGatewaySecret:  os.Getenv("SOCIAL_GATEWAY_SECRET"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Host:                 os.Getenv("HOST"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
