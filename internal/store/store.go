package store

import (
	"context"
	"errors"
	"time"

	"github.com/evyataryagoni/cityapp/internal/live"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/evyataryagoni/cityapp/internal/models"
)

// ErrUnknownBackend is returned by the factories for an unsupported store type
var ErrUnknownBackend = errors.New("unknown store backend")

// CityStore is durable storage for City records
// Implementations: SQLCityStore (sqlite, mysql) and MockCityStore for tests
type CityStore interface {
	// ObserveAll subscribes to the full list of cities, re-emitted after every write
	ObserveAll(ctx context.Context) (*live.Subscription[[]models.City], error)

	// GetByID returns (nil, nil) when no record matches
	GetByID(ctx context.Context, id int64) (*models.City, error)

	// Insert stores a new city and returns its id
	// A non-zero id that already exists replaces that record entirely
	Insert(ctx context.Context, city models.City) (int64, error)

	// Update replaces the record with city.ID; no-op when absent
	Update(ctx context.Context, city models.City) error

	// Delete removes the record with city.ID; no-op when absent
	Delete(ctx context.Context, city models.City) error

	// Close releases connections and ends all subscriptions
	Close() error
}

// FavoriteStore is durable storage for the set of favorited city ids
type FavoriteStore interface {
	// ObserveFavorites subscribes to the favorite set, re-emitted after every toggle
	ObserveFavorites(ctx context.Context) (*live.Subscription[models.FavoriteSet], error)

	// ToggleFavorite flips membership of the id atomically
	// Returns whether the id is a member after the toggle
	ToggleFavorite(ctx context.Context, cityID int64) (bool, error)

	// Close releases connections and ends all subscriptions
	Close() error
}

// Options carries the collaborators shared by every store backend
type Options struct {
	IdleTimeout time.Duration    // keep-warm period for live subscriptions; zero or less releases at once
	Metrics     *metrics.Metrics // optional
	Logger      *logger.Logger   // optional
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.NewDefault()
	}
	return o
}

// observe records the outcome and latency of one datastore operation
func observe(m *metrics.Metrics, datastore, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatastoreOperationsTotal.WithLabelValues(datastore, operation, status).Inc()
	m.DatastoreOperationDuration.WithLabelValues(datastore, operation).Observe(time.Since(start).Seconds())
}

// trackSubscribers keeps the live_subscribers gauge in step with a feed
func trackSubscribers[T any](m *metrics.Metrics, sequence string, feed *live.Feed[T], sub *live.Subscription[T]) {
	if m == nil {
		return
	}
	gauge := m.LiveSubscribers.WithLabelValues(sequence)
	gauge.Set(float64(feed.Subscribers()))
	go func() {
		<-sub.Done()
		gauge.Set(float64(feed.Subscribers()))
	}()
}
