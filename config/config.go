package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Data source
	DataBaseURL string

	// Instruments to keep up to date (comma-separated, e.g. "EURUSD,GBPUSD")
	Instruments string

	// First month of history to acquire, "YYYY-MM"
	StartMonth string

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
	APIAddr       string
}

// Load reads configuration from environment variables with sensible
// defaults, preloading a .env file when one exists.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		// Required by the updater; the gateway runs without it.
		DataBaseURL: getEnv("FXDATA_BASE_URL", ""),

		Instruments: getEnv("FXDATA_INSTRUMENTS", "EURUSD"),
		StartMonth:  getEnv("FXDATA_START_MONTH", "2023-01"),

		SQLitePath:    getEnv("SQLITE_PATH", "data/fxdata.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
	}
}

// ParseInstruments splits the configured instrument list.
func (c *Config) ParseInstruments() []string {
	parts := strings.Split(c.Instruments, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p))
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
