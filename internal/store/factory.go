package store

import (
	"fmt"
	"strings"
)

// CityStoreConfig selects and configures a City Store backend
type CityStoreConfig struct {
	Type       string // "sqlite" or "mysql"
	SQLitePath string
	MySQLDSN   string
}

// FavoriteStoreConfig selects and configures a Favorite Store backend
type FavoriteStoreConfig struct {
	Type string // "memory" or "redis"
	Key  string

	// Redis-specific config
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewCityStore creates a City Store based on the configuration
func NewCityStore(cfg CityStoreConfig, opts Options) (*SQLCityStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "sqlite", "":
		return NewSQLiteCityStore(cfg.SQLitePath, opts)

	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("mysql city store requires a DSN")
		}
		return NewMySQLCityStore(cfg.MySQLDSN, opts)

	default:
		return nil, fmt.Errorf("%w: city store %q (supported: 'sqlite', 'mysql')", ErrUnknownBackend, cfg.Type)
	}
}

// NewFavoriteStore creates a Favorite Store based on the configuration
func NewFavoriteStore(cfg FavoriteStoreConfig, opts Options) (FavoriteStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "memory", "":
		return NewMemoryFavoriteStore(opts), nil

	case "redis":
		s, err := NewRedisFavoriteStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Key, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis favorite store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: favorite store %q (supported: 'memory', 'redis')", ErrUnknownBackend, cfg.Type)
	}
}
