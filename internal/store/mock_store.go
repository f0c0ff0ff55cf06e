package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/evyataryagoni/cityapp/internal/live"
	"github.com/evyataryagoni/cityapp/internal/models"
)

// MockCityStore is an in-memory test double for the CityStore interface
// It keeps real upsert/no-op semantics, records calls and can inject errors
type MockCityStore struct {
	mu     sync.Mutex
	data   map[int64]models.City
	nextID int64
	feed   *live.Feed[[]models.City]

	// Track method calls for verification in tests
	InsertCalls  []models.City
	UpdateCalls  []models.City
	DeleteCalls  []models.City
	GetByIDCalls []int64
	CloseCalled  bool

	// Control behavior for error scenarios
	ObserveError error
	GetByIDError error
	InsertError  error
	UpdateError  error
	DeleteError  error
	CloseError   error
}

// NewMockCityStore creates a mock store holding the given cities
// Cities without an id get one assigned in order
func NewMockCityStore(cities ...models.City) *MockCityStore {
	m := &MockCityStore{data: make(map[int64]models.City)}
	for _, c := range cities {
		if c.ID == 0 {
			m.nextID++
			c.ID = m.nextID
		} else if c.ID > m.nextID {
			m.nextID = c.ID
		}
		m.data[c.ID] = c
	}
	m.feed = live.NewFeed(m.snapshot, time.Minute)
	return m
}

// SampleCities is the fixture used across tests: Paris, Lyon, Nice with ids 1..3
func SampleCities() []models.City {
	return []models.City{
		{ID: 1, Name: "Paris", Population: 2000000, Country: "France"},
		{ID: 2, Name: "Lyon", Population: 500000, Country: "France"},
		{ID: 3, Name: "Nice", Population: 340000, Country: "France"},
	}
}

func (m *MockCityStore) snapshot(ctx context.Context) ([]models.City, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cities := make([]models.City, 0, len(m.data))
	for _, c := range m.data {
		cities = append(cities, c)
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].ID < cities[j].ID })
	return cities, nil
}

// ObserveAll implements the CityStore interface
func (m *MockCityStore) ObserveAll(ctx context.Context) (*live.Subscription[[]models.City], error) {
	if m.ObserveError != nil {
		return nil, m.ObserveError
	}
	return m.feed.Subscribe(ctx)
}

// GetByID implements the CityStore interface
func (m *MockCityStore) GetByID(ctx context.Context, id int64) (*models.City, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetByIDCalls = append(m.GetByIDCalls, id)
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}

	city, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &city, nil
}

// Insert implements the CityStore interface
func (m *MockCityStore) Insert(ctx context.Context, city models.City) (int64, error) {
	m.mu.Lock()
	m.InsertCalls = append(m.InsertCalls, city)
	if m.InsertError != nil {
		m.mu.Unlock()
		return 0, m.InsertError
	}
	if city.ID == 0 {
		m.nextID++
		city.ID = m.nextID
	} else if city.ID > m.nextID {
		m.nextID = city.ID
	}
	m.data[city.ID] = city
	m.mu.Unlock()

	m.feed.Refresh(ctx)
	return city.ID, nil
}

// Update implements the CityStore interface
func (m *MockCityStore) Update(ctx context.Context, city models.City) error {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, city)
	if m.UpdateError != nil {
		m.mu.Unlock()
		return m.UpdateError
	}
	_, ok := m.data[city.ID]
	if ok {
		m.data[city.ID] = city
	}
	m.mu.Unlock()

	if ok {
		m.feed.Refresh(ctx)
	}
	return nil
}

// Delete implements the CityStore interface
func (m *MockCityStore) Delete(ctx context.Context, city models.City) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, city)
	if m.DeleteError != nil {
		m.mu.Unlock()
		return m.DeleteError
	}
	_, ok := m.data[city.ID]
	delete(m.data, city.ID)
	m.mu.Unlock()

	if ok {
		m.feed.Refresh(ctx)
	}
	return nil
}

// Count implements SeedTarget
func (m *MockCityStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}

// FailFeed simulates a terminal storage failure on the live sequence
func (m *MockCityStore) FailFeed(err error) {
	m.feed.Fail(err)
}

// Subscribers returns how many observers are attached
func (m *MockCityStore) Subscribers() int {
	return m.feed.Subscribers()
}

// Close implements the CityStore interface
func (m *MockCityStore) Close() error {
	m.mu.Lock()
	m.CloseCalled = true
	m.mu.Unlock()
	m.feed.Close()
	return m.CloseError
}
