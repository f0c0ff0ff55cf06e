package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Presentation API (local only)
	Port     string
	BindAddr string

	// Logging
	LogLevel  string
	LogPretty bool
	LogFile   string

	// City Store
	CityStoreType string // "sqlite" or "mysql"
	SQLitePath    string // database file for the sqlite backend
	MySQLDSN      string // Data Source Name for the mysql backend
	SeedPath      string // CSV used to seed an empty City Store

	// Favorite Store
	FavoriteStoreType string // "memory" or "redis"
	FavoritesKey      string // key holding the favorite id set

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// How long live subscriptions stay warm after the last observer leaves
	// Zero releases them as soon as nobody observes
	SubscriptionIdle time.Duration

	// Write throttling per client, in writes per second (0 disables)
	WriteRateLimit float64
}

// Load reads configuration from environment variables with defaults
// A .env file in the working directory is applied first when present
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	return &Config{
		Port:     getEnv("PORT", "3000"),
		BindAddr: getEnv("BIND_ADDR", "127.0.0.1"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		LogFile:   getEnv("LOG_FILE", ""),

		CityStoreType: strings.ToLower(getEnv("CITY_STORE_TYPE", "sqlite")),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/cities.db"),
		MySQLDSN:      getEnv("MYSQL_DSN", ""),
		SeedPath:      getEnv("SEED_PATH", "./data/cities.csv"),

		FavoriteStoreType: strings.ToLower(getEnv("FAVORITE_STORE_TYPE", "memory")),
		FavoritesKey:      getEnv("FAVORITES_KEY", "favorite_cities"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		SubscriptionIdle: time.Duration(getEnvAsInt("SUBSCRIPTION_IDLE_MS", 5000)) * time.Millisecond,

		WriteRateLimit: getEnvAsFloat("WRITE_RATE_LIMIT", 20),
	}
}

// ListenAddr is the address the presentation API binds to
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAs parses an environment variable with parse
// Returns default if not set or unparsable
func getEnvAs[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	value, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	return getEnvAs(key, defaultValue, strconv.Atoi)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return getEnvAs(key, defaultValue, strconv.ParseBool)
}

// getEnvAsFloat also rejects negative values
func getEnvAsFloat(key string, defaultValue float64) float64 {
	return getEnvAs(key, defaultValue, func(s string) (float64, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil && v < 0 {
			err = strconv.ErrRange
		}
		return v, err
	})
}
