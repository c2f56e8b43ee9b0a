package server

import (
	"os"
	"strconv"
	"time"
)

// Config is the registryd runtime configuration, environment-only.
type Config struct {
	Port        string
	Environment string

	// RelayAdminURL is the media relay's HTTP API used to create and destroy
	// relay rooms alongside registry records.
	RelayAdminURL string

	// RedisAddr enables the Redis-backed store when set; empty keeps rooms
	// in process memory.
	RedisAddr     string
	RedisPassword string

	// RoomTTL is how long a room survives without a host heartbeat.
	RoomTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		RelayAdminURL: getEnv("RELAY_ADMIN_URL", "http://localhost:8088/janus"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RoomTTL:       getEnvDuration("ROOM_TTL_SECONDS", 60*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
