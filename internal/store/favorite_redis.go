package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evyataryagoni/cityapp/internal/live"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/evyataryagoni/cityapp/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultFavoritesKey is the Redis key holding the favorite set
const DefaultFavoritesKey = "favorite_cities"

// toggleScript flips set membership in one atomic step on the server
// Returns 1 when the member was added, 0 when it was removed
var toggleScript = redis.NewScript(`
	local key = KEYS[1]
	local member = ARGV[1]

	if redis.call('SISMEMBER', key, member) == 1 then
		redis.call('SREM', key, member)
		return 0
	end

	redis.call('SADD', key, member)
	return 1
`)

// RedisFavoriteStore implements FavoriteStore using a Redis SET
//
// Redis Key Format: a single key (default "favorite_cities")
// Members: city ids as decimal strings, e.g. "42"
type RedisFavoriteStore struct {
	client  *redis.Client
	key     string
	writeMu sync.Mutex
	feed    *live.Feed[models.FavoriteSet]
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewRedisFavoriteStore connects to Redis
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number
//   - key: key holding the set (empty uses DefaultFavoritesKey)
//   - opts: shared store options
func NewRedisFavoriteStore(addr, password string, db int, key string, opts Options) (*RedisFavoriteStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if key == "" {
		key = DefaultFavoritesKey
	}

	opts = opts.withDefaults()
	s := &RedisFavoriteStore{
		client:  client,
		key:     key,
		metrics: opts.Metrics,
		logger:  opts.Logger.WithComponent("FavoriteStore"),
	}
	s.feed = live.NewFeed(s.load, opts.IdleTimeout)
	return s, nil
}

func (s *RedisFavoriteStore) load(ctx context.Context) (models.FavoriteSet, error) {
	start := time.Now()
	members, err := s.client.SMembers(ctx, s.key).Result()
	observe(s.metrics, "redis", "load_favorites", start, err)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read favorites")
		return nil, fmt.Errorf("Redis query failed: %w", err)
	}
	return models.NewFavoriteSet(members...), nil
}

// ObserveFavorites implements FavoriteStore
func (s *RedisFavoriteStore) ObserveFavorites(ctx context.Context) (*live.Subscription[models.FavoriteSet], error) {
	sub, err := s.feed.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	trackSubscribers(s.metrics, "favorites", s.feed, sub)
	return sub, nil
}

// ToggleFavorite implements FavoriteStore
// Uses a Lua script so concurrent toggles of the same id cannot lose an update
func (s *RedisFavoriteStore) ToggleFavorite(ctx context.Context, cityID int64) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	added, err := toggleScript.Run(ctx, s.client, []string{s.key}, models.FavoriteKey(cityID)).Int()
	observe(s.metrics, "redis", "toggle_favorite", start, err)
	if err != nil {
		s.logger.Error().Err(err).Int64("city_id", cityID).Msg("Failed to toggle favorite")
		return false, fmt.Errorf("failed to toggle favorite %d: %w", cityID, err)
	}

	favorite := added == 1
	s.logger.Debug().Int64("city_id", cityID).Bool("favorite", favorite).Msg("Favorite toggled")

	if err := s.feed.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Live favorite feed failed after toggle")
	}
	return favorite, nil
}

// Close ends all subscriptions and closes the Redis connection
func (s *RedisFavoriteStore) Close() error {
	if s.feed != nil {
		s.feed.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
