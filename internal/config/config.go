// Package config loads runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of both the reference server and the
// terminal client.
type Config struct {
	// ServerAddr is the reference server's listen address.
	ServerAddr string
	// RedisAddr enables the cross-instance fan-out bridge when set.
	RedisAddr string

	// APIBaseURL is where the client submits messages and fetches history.
	APIBaseURL string
	// WSURL is the client's push-channel endpoint.
	WSURL string

	// SubmitTimeout bounds each submission and history request.
	SubmitTimeout time.Duration
	// BackoffBase and BackoffMax shape the reconnect delays.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxReconnects bounds reconnect attempts after a transport loss.
	MaxReconnects int

	Debug bool
}

// Load reads all env vars and builds the config.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr:    getEnv("LINKUP_ADDR", ":8080"),
		RedisAddr:     getEnv("LINKUP_REDIS_ADDR", ""),
		APIBaseURL:    getEnv("LINKUP_API_URL", "http://localhost:8080"),
		WSURL:         getEnv("LINKUP_WS_URL", "ws://localhost:8080/ws"),
		SubmitTimeout: getDuration("LINKUP_SUBMIT_TIMEOUT", 10*time.Second),
		BackoffBase:   getDuration("LINKUP_BACKOFF_BASE", 500*time.Millisecond),
		BackoffMax:    getDuration("LINKUP_BACKOFF_MAX", 8*time.Second),
		MaxReconnects: getInt("LINKUP_MAX_RECONNECTS", 5),
		Debug:         getBool("LINKUP_DEBUG", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
