package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/evyataryagoni/cityapp/internal/live"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/evyataryagoni/cityapp/internal/models"
	"github.com/evyataryagoni/cityapp/internal/store"
)

var (
	// ErrAlreadyStarted is returned by Start on a running or closed coordinator
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrStopped is returned by commands once the coordinator no longer follows the stores
	ErrStopped = errors.New("coordinator stopped")

	errUpstreamClosed = errors.New("store subscription closed")
)

// Coordinator combines both stores with the filter state into the derived view
// This is the service layer - it sits between handlers and stores
//
// Responsibilities:
//   - Hold the transient filter/sort state
//   - Follow both stores' live sequences and recompute on every change
//   - Pass commands through to the owning store
//   - Publish the derived view to observers
type Coordinator struct {
	cities    store.CityStore     // Owns City records
	favorites store.FavoriteStore // Owns the favorite set
	metrics   *metrics.Metrics    // Metrics collector
	logger    *logger.Logger      // Structured logger

	// mu guards the inputs and the last computed view
	mu            sync.Mutex
	filter        models.FilterState
	allCities     []models.City
	favoriteSet   models.FavoriteSet
	haveCities    bool
	haveFavorites bool
	view          models.DerivedView
	failure       error // set once the view stops following the stores

	derived *live.Feed[models.DerivedView]

	lifecycle sync.Mutex
	started   bool
	cancel    context.CancelFunc
	syncCh    chan chan struct{}
	done      chan struct{}
}

// NewCoordinator creates a coordinator over the two stores
//
// Parameters:
//   - cities: the City Store
//   - favorites: the Favorite Store
//   - opts: the options the stores were built with; IdleTimeout is the
//     keep-warm period of the derived view, Metrics and Logger may be nil
//
// Nothing is observed until Start is called.
func NewCoordinator(cities store.CityStore, favorites store.FavoriteStore, opts store.Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}
	c := &Coordinator{
		cities:    cities,
		favorites: favorites,
		metrics:   opts.Metrics,
		logger:    log.WithComponent("Coordinator"),
		filter:    models.DefaultFilterState(),
	}
	c.derived = live.NewFeed(c.current, opts.IdleTimeout)
	return c
}

// Start subscribes to both stores and begins recomputing
// It returns once the first view has been computed. Cancelling ctx stops
// the coordinator the same way Close does: view subscriptions end with
// ErrStopped and later commands are rejected.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	citySub, err := c.cities.ObserveAll(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to observe cities: %w", err)
	}
	favSub, err := c.favorites.ObserveFavorites(runCtx)
	if err != nil {
		citySub.Close()
		cancel()
		return fmt.Errorf("failed to observe favorites: %w", err)
	}

	// Both subscriptions replay their current value on attach
	if cities, ok := <-citySub.Updates(); ok {
		c.applyCities(cities)
	}
	if set, ok := <-favSub.Updates(); ok {
		c.applyFavorites(set)
	}

	c.started = true
	c.cancel = cancel
	c.syncCh = make(chan chan struct{})
	c.done = make(chan struct{})

	go c.run(runCtx, citySub, favSub)

	c.logger.Info().Msg("Coordinator started")
	return nil
}

// run follows both live sequences until the context ends or one of them stops
func (c *Coordinator) run(ctx context.Context, citySub *live.Subscription[[]models.City], favSub *live.Subscription[models.FavoriteSet]) {
	defer close(c.done)
	defer citySub.Close()
	defer favSub.Close()
	defer c.halt(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case cities, ok := <-citySub.Updates():
			if !c.handleCities(citySub, cities, ok) {
				return
			}
		case set, ok := <-favSub.Updates():
			if !c.handleFavorites(favSub, set, ok) {
				return
			}
		case ack := <-c.syncCh:
			alive := c.drain(citySub, favSub)
			close(ack)
			if !alive {
				return
			}
		}
	}
}

// drain applies every emission already buffered on either subscription
// Writes deliver their emission before returning, so after a write this
// leaves the view reflecting it
func (c *Coordinator) drain(citySub *live.Subscription[[]models.City], favSub *live.Subscription[models.FavoriteSet]) bool {
	for {
		select {
		case cities, ok := <-citySub.Updates():
			if !c.handleCities(citySub, cities, ok) {
				return false
			}
		case set, ok := <-favSub.Updates():
			if !c.handleFavorites(favSub, set, ok) {
				return false
			}
		default:
			return true
		}
	}
}

func (c *Coordinator) handleCities(sub *live.Subscription[[]models.City], cities []models.City, ok bool) bool {
	if !ok {
		c.upstreamEnded("cities", sub.Err())
		return false
	}
	c.applyCities(cities)
	return true
}

func (c *Coordinator) handleFavorites(sub *live.Subscription[models.FavoriteSet], set models.FavoriteSet, ok bool) bool {
	if !ok {
		c.upstreamEnded("favorites", sub.Err())
		return false
	}
	c.applyFavorites(set)
	return true
}

func (c *Coordinator) upstreamEnded(sequence string, err error) {
	if err == nil {
		c.logger.Debug().Str("sequence", sequence).Msg("Upstream subscription closed")
		return
	}

	c.logger.Error().Err(err).Str("sequence", sequence).Msg("Upstream live sequence failed")

	failure := fmt.Errorf("%w: %s sequence failed: %w", ErrStopped, sequence, err)
	c.mu.Lock()
	c.failure = failure
	c.mu.Unlock()

	c.derived.Fail(failure)
}

// halt records why the run loop ended and ends every view subscription
// An upstream failure already reported is kept as the reason.
func (c *Coordinator) halt(ctx context.Context) {
	reason := context.Cause(ctx)
	if reason == nil {
		reason = errUpstreamClosed
	}

	c.mu.Lock()
	if c.failure != nil {
		c.mu.Unlock()
		return
	}
	failure := fmt.Errorf("%w: %w", ErrStopped, reason)
	c.failure = failure
	c.mu.Unlock()

	c.logger.Info().Err(reason).Msg("Coordinator stopped following the stores")
	c.derived.Fail(failure)
}

// stopped returns the reason commands are rejected, or nil while running
func (c *Coordinator) stopped() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

func (c *Coordinator) applyCities(cities []models.City) {
	c.mu.Lock()
	c.allCities = cities
	c.haveCities = true
	ready := c.recomputeLocked()
	c.mu.Unlock()

	if ready {
		c.publish()
	}
}

func (c *Coordinator) applyFavorites(set models.FavoriteSet) {
	c.mu.Lock()
	c.favoriteSet = set
	c.haveFavorites = true
	ready := c.recomputeLocked()
	c.mu.Unlock()

	if ready {
		c.publish()
	}
}

// recomputeLocked must be called with c.mu held
// Returns false while either store has not reported yet
func (c *Coordinator) recomputeLocked() bool {
	if !c.haveCities || !c.haveFavorites {
		return false
	}

	c.view = Derive(c.allCities, c.favoriteSet, c.filter)

	if c.metrics != nil {
		c.metrics.ViewRecomputations.Inc()
		c.metrics.ViewCities.Set(float64(len(c.view.Cities)))
	}
	return true
}

func (c *Coordinator) publish() {
	// The loader reads the latest view, so concurrent publishers converge
	if err := c.derived.Refresh(context.Background()); err != nil {
		c.logger.Debug().Err(err).Msg("Derived view not published")
	}
}

// current is the loader of the derived feed
func (c *Coordinator) current(ctx context.Context) (models.DerivedView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failure != nil {
		return models.DerivedView{}, c.failure
	}
	return c.viewLocked(), nil
}

func (c *Coordinator) viewLocked() models.DerivedView {
	if !c.haveCities || !c.haveFavorites {
		return emptyView(c.filter)
	}
	return c.view
}

// View returns the latest derived view
func (c *Coordinator) View() models.DerivedView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Filter returns the current filter and sort selection
func (c *Coordinator) Filter() models.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Subscribe returns a live subscription to the derived view
// The current view is delivered immediately.
func (c *Coordinator) Subscribe(ctx context.Context) (*live.Subscription[models.DerivedView], error) {
	sub, err := c.derived.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		gauge := c.metrics.LiveSubscribers.WithLabelValues("derived_view")
		gauge.Set(float64(c.derived.Subscribers()))
		go func() {
			<-sub.Done()
			gauge.Set(float64(c.derived.Subscribers()))
		}()
	}
	return sub, nil
}

// SetSearchQuery replaces the name filter
func (c *Coordinator) SetSearchQuery(text string) error {
	return c.updateFilter("set_search_query", func(f *models.FilterState) {
		f.SearchQuery = text
	})
}

// SetMinPopulation replaces the population threshold
// Negative values are clamped to 0
func (c *Coordinator) SetMinPopulation(n int) error {
	n = c.clampMinPopulation(n)
	return c.updateFilter("set_min_population", func(f *models.FilterState) {
		f.MinPopulation = n
	})
}

func (c *Coordinator) clampMinPopulation(n int) int {
	if n < 0 {
		c.logger.Debug().Int("min_population", n).Msg("Clamping negative minimum population")
		return 0
	}
	return n
}

// SetSortOption replaces the sort order
// An unknown option is rejected and leaves the state unchanged
func (c *Coordinator) SetSortOption(option models.SortOption) error {
	if !option.Valid() {
		c.command("set_sort_option", models.ErrInvalidSortOption)
		return fmt.Errorf("%w: %q", models.ErrInvalidSortOption, option)
	}
	return c.updateFilter("set_sort_option", func(f *models.FilterState) {
		f.SortBy = option
	})
}

// SetFilters changes every field set in patch as one step
// Observers never see a partly applied patch. An unknown sort option
// rejects the whole patch.
func (c *Coordinator) SetFilters(patch models.FilterPatch) error {
	if patch.SortBy != nil && !patch.SortBy.Valid() {
		c.command("set_filters", models.ErrInvalidSortOption)
		return fmt.Errorf("%w: %q", models.ErrInvalidSortOption, *patch.SortBy)
	}
	if patch.MinPopulation != nil {
		n := c.clampMinPopulation(*patch.MinPopulation)
		patch.MinPopulation = &n
	}
	return c.updateFilter("set_filters", func(f *models.FilterState) {
		*f = patch.Apply(*f)
	})
}

// ResetFilters restores the empty query, zero threshold and name order
func (c *Coordinator) ResetFilters() error {
	return c.updateFilter("reset_filters", func(f *models.FilterState) {
		*f = models.DefaultFilterState()
	})
}

func (c *Coordinator) updateFilter(command string, change func(*models.FilterState)) error {
	c.mu.Lock()
	if err := c.failure; err != nil {
		c.mu.Unlock()
		c.command(command, err)
		return err
	}
	next := c.filter
	change(&next)
	if next == c.filter {
		c.mu.Unlock()
		c.command(command, nil)
		return nil
	}
	c.filter = next
	ready := c.recomputeLocked()
	c.mu.Unlock()

	c.command(command, nil)
	c.logger.Debug().
		Str("query", next.SearchQuery).
		Int("min_population", next.MinPopulation).
		Str("sort", string(next.SortBy)).
		Msg("Filter changed")

	if ready {
		c.publish()
	}
	return nil
}

// AddCity stores a new city and returns its assigned id
// Name and country are stored as given; validation belongs to the caller.
func (c *Coordinator) AddCity(ctx context.Context, name string, population int, country string) (int64, error) {
	if err := c.stopped(); err != nil {
		c.command("add_city", err)
		return 0, fmt.Errorf("failed to add city: %w", err)
	}

	id, err := c.cities.Insert(ctx, models.City{
		Name:       name,
		Population: population,
		Country:    country,
	})
	c.command("add_city", err)
	if err != nil {
		c.logger.Error().Err(err).Str("name", name).Msg("Failed to add city")
		return 0, fmt.Errorf("failed to add city: %w", err)
	}

	c.logger.Info().Int64("city_id", id).Str("name", name).Msg("City added")
	c.settle(ctx)
	return id, nil
}

// UpdateCity replaces the stored city with the same id
// Updating an id that no longer exists does nothing.
func (c *Coordinator) UpdateCity(ctx context.Context, city models.City) error {
	if err := c.stopped(); err != nil {
		c.command("update_city", err)
		return fmt.Errorf("failed to update city %d: %w", city.ID, err)
	}

	log := c.logger.WithCityID(city.ID)
	err := c.cities.Update(ctx, city)
	c.command("update_city", err)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update city")
		return fmt.Errorf("failed to update city %d: %w", city.ID, err)
	}

	log.Info().Msg("City updated")
	c.settle(ctx)
	return nil
}

// DeleteCity removes the stored city with the same id
// Deleting twice is harmless.
func (c *Coordinator) DeleteCity(ctx context.Context, city models.City) error {
	if err := c.stopped(); err != nil {
		c.command("delete_city", err)
		return fmt.Errorf("failed to delete city %d: %w", city.ID, err)
	}

	log := c.logger.WithCityID(city.ID)
	err := c.cities.Delete(ctx, city)
	c.command("delete_city", err)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete city")
		return fmt.Errorf("failed to delete city %d: %w", city.ID, err)
	}

	log.Info().Msg("City deleted")
	c.settle(ctx)
	return nil
}

// ToggleFavorite flips the favorite flag of a city
// Returns whether the city is a favorite after this toggle
func (c *Coordinator) ToggleFavorite(ctx context.Context, cityID int64) (bool, error) {
	if err := c.stopped(); err != nil {
		c.command("toggle_favorite", err)
		return false, fmt.Errorf("failed to toggle favorite %d: %w", cityID, err)
	}

	favorite, err := c.favorites.ToggleFavorite(ctx, cityID)
	c.command("toggle_favorite", err)
	if err != nil {
		c.logger.Error().Err(err).Int64("city_id", cityID).Msg("Failed to toggle favorite")
		return false, fmt.Errorf("failed to toggle favorite %d: %w", cityID, err)
	}

	c.settle(ctx)
	return favorite, nil
}

// GetCityByID reads a city straight from the store
// Returns (nil, nil) when no city has that id. Lookups keep working after
// the coordinator stopped since they never go through the view.
func (c *Coordinator) GetCityByID(ctx context.Context, id int64) (*models.City, error) {
	city, err := c.cities.GetByID(ctx, id)
	if err != nil {
		c.command("get_city", err)
		return nil, fmt.Errorf("failed to get city %d: %w", id, err)
	}
	c.command("get_city", nil)

	if city == nil {
		c.logger.Debug().Int64("city_id", id).Msg("City not found")
	}
	return city, nil
}

// settle waits until the recompute loop has consumed every emission
// already delivered by the stores, so a later View reflects the write
func (c *Coordinator) settle(ctx context.Context) {
	c.lifecycle.Lock()
	syncCh, done := c.syncCh, c.done
	c.lifecycle.Unlock()

	if syncCh == nil {
		return
	}

	ack := make(chan struct{})
	select {
	case syncCh <- ack:
	case <-done:
		return
	case <-ctx.Done():
		return
	}

	select {
	case <-ack:
	case <-done:
	case <-ctx.Done():
	}
}

func (c *Coordinator) command(name string, err error) {
	if c.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.metrics.CommandsTotal.WithLabelValues(name, result).Inc()
}

// Close detaches from both stores and ends every view subscription
// Later commands return ErrStopped. The stores themselves stay open;
// their owner closes them.
func (c *Coordinator) Close() error {
	c.lifecycle.Lock()
	c.started = true
	cancel, done := c.cancel, c.done
	c.lifecycle.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.mu.Lock()
	if c.failure == nil {
		c.failure = ErrStopped
	}
	c.mu.Unlock()
	c.derived.Close()

	c.logger.Info().Msg("Coordinator closed")
	return nil
}
