package store

import (
	"context"
	"sync"

	"github.com/evyataryagoni/cityapp/internal/live"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/evyataryagoni/cityapp/internal/models"
)

// MemoryFavoriteStore keeps the favorite set in process memory
// Nothing survives a restart; use RedisFavoriteStore for durability
type MemoryFavoriteStore struct {
	writeMu sync.Mutex // serializes toggle+refresh

	mu  sync.Mutex // guards set
	set models.FavoriteSet

	feed    *live.Feed[models.FavoriteSet]
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewMemoryFavoriteStore creates an empty in-memory favorite store
func NewMemoryFavoriteStore(opts Options) *MemoryFavoriteStore {
	opts = opts.withDefaults()
	s := &MemoryFavoriteStore{
		set:     models.NewFavoriteSet(),
		metrics: opts.Metrics,
		logger:  opts.Logger.WithComponent("FavoriteStore"),
	}
	s.feed = live.NewFeed(s.load, opts.IdleTimeout)
	return s
}

func (s *MemoryFavoriteStore) load(ctx context.Context) (models.FavoriteSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone(), nil
}

// ObserveFavorites implements FavoriteStore
func (s *MemoryFavoriteStore) ObserveFavorites(ctx context.Context) (*live.Subscription[models.FavoriteSet], error) {
	sub, err := s.feed.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	trackSubscribers(s.metrics, "favorites", s.feed, sub)
	return sub, nil
}

// ToggleFavorite implements FavoriteStore
func (s *MemoryFavoriteStore) ToggleFavorite(ctx context.Context, cityID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key := models.FavoriteKey(cityID)
	s.mu.Lock()
	_, present := s.set[key]
	if present {
		delete(s.set, key)
	} else {
		s.set[key] = struct{}{}
	}
	s.mu.Unlock()

	s.logger.Debug().Int64("city_id", cityID).Bool("favorite", !present).Msg("Favorite toggled")

	// The in-memory loader cannot fail
	_ = s.feed.Refresh(ctx)
	return !present, nil
}

// Close ends all subscriptions
func (s *MemoryFavoriteStore) Close() error {
	s.feed.Close()
	return nil
}
