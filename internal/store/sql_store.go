package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/evyataryagoni/cityapp/internal/live"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/evyataryagoni/cityapp/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// CityRecord is the GORM model for the cities table
type CityRecord struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name       string `gorm:"column:name;not null"`
	Population int    `gorm:"column:population;not null"`
	Country    string `gorm:"column:country;not null"`
}

// TableName specifies the table name for GORM
// By default, GORM would pluralize to "city_records"
func (CityRecord) TableName() string {
	return "cities"
}

func toRecord(c models.City) CityRecord {
	return CityRecord{
		ID:         c.ID,
		Name:       c.Name,
		Population: c.Population,
		Country:    c.Country,
	}
}

func (r CityRecord) toCity() models.City {
	return models.City{
		ID:         r.ID,
		Name:       r.Name,
		Population: r.Population,
		Country:    r.Country,
	}
}

// SQLCityStore implements CityStore on top of GORM
// Works with the local SQLite file (default) or a MySQL server
//
// Writes are serialized by writeMu. Each one commits in GORM's default
// transaction and then refreshes the live feed before returning, so the
// next emission always includes the write.
type SQLCityStore struct {
	db      *gorm.DB
	backend string
	writeMu sync.Mutex
	feed    *live.Feed[[]models.City]
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
}

// NewSQLiteCityStore opens (or creates) the SQLite database file at path
// SQLite allows a single writer, so the pool is limited to one connection
func NewSQLiteCityStore(path string, opts Options) (*SQLCityStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return openSQLCityStore(db, "sqlite", opts)
}

// NewMySQLCityStore connects to MySQL
//
// Parameters:
//   - dsn: Data Source Name, e.g. user:password@tcp(localhost:3306)/cities?parseTime=true
//   - opts: shared store options
func NewMySQLCityStore(dsn string, opts Options) (*SQLCityStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	return openSQLCityStore(db, "mysql", opts)
}

// openSQLCityStore brings the schema up to date and builds the store
func openSQLCityStore(db *gorm.DB, backend string, opts Options) (*SQLCityStore, error) {
	if err := ensureCitySchema(db); err != nil {
		return nil, err
	}
	return newSQLCityStore(db, backend, opts), nil
}

// newSQLCityStore builds the store around an already prepared connection
func newSQLCityStore(db *gorm.DB, backend string, opts Options) *SQLCityStore {
	opts = opts.withDefaults()
	s := &SQLCityStore{
		db:      db,
		backend: backend,
		metrics: opts.Metrics,
		logger:  opts.Logger.WithComponent("CityStore"),
	}
	s.feed = live.NewFeed(s.loadAll, opts.IdleTimeout)
	return s
}

// loadAll reads every city ordered by id so emissions are deterministic
func (s *SQLCityStore) loadAll(ctx context.Context) ([]models.City, error) {
	start := time.Now()
	var records []CityRecord
	err := s.db.WithContext(ctx).Order("id").Find(&records).Error
	observe(s.metrics, s.backend, "load_all", start, err)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load cities")
		return nil, fmt.Errorf("failed to load cities: %w", err)
	}

	cities := make([]models.City, len(records))
	for i, r := range records {
		cities[i] = r.toCity()
	}
	return cities, nil
}

// ObserveAll implements CityStore
func (s *SQLCityStore) ObserveAll(ctx context.Context) (*live.Subscription[[]models.City], error) {
	sub, err := s.feed.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	trackSubscribers(s.metrics, "cities", s.feed, sub)
	return sub, nil
}

// GetByID implements CityStore
// GORM query: SELECT * FROM cities WHERE id = ? ORDER BY id LIMIT 1
func (s *SQLCityStore) GetByID(ctx context.Context, id int64) (*models.City, error) {
	start := time.Now()
	var record CityRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observe(s.metrics, s.backend, "get_by_id", start, nil)
		s.logger.Debug().Int64("city_id", id).Msg("City not found")
		return nil, nil
	}
	observe(s.metrics, s.backend, "get_by_id", start, err)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	city := record.toCity()
	return &city, nil
}

// Insert implements CityStore
// A zero id lets the database assign one; a non-zero id is an upsert
func (s *SQLCityStore) Insert(ctx context.Context, city models.City) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	record := toRecord(city)
	tx := s.db.WithContext(ctx)
	if record.ID != 0 {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		})
	}
	err := tx.Create(&record).Error
	observe(s.metrics, s.backend, "insert", start, err)
	if err != nil {
		s.logger.Error().Err(err).Str("name", city.Name).Msg("Failed to insert city")
		return 0, fmt.Errorf("failed to insert city: %w", err)
	}

	s.logger.Debug().Int64("city_id", record.ID).Str("name", record.Name).Msg("City inserted")
	s.refresh(ctx)
	return record.ID, nil
}

// Update implements CityStore
func (s *SQLCityStore) Update(ctx context.Context, city models.City) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	result := s.db.WithContext(ctx).
		Model(&CityRecord{}).
		Where("id = ?", city.ID).
		Updates(map[string]any{
			"name":       city.Name,
			"population": city.Population,
			"country":    city.Country,
		})
	observe(s.metrics, s.backend, "update", start, result.Error)
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Int64("city_id", city.ID).Msg("Failed to update city")
		return fmt.Errorf("failed to update city %d: %w", city.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug().Int64("city_id", city.ID).Msg("Update matched no city")
		return nil
	}

	s.refresh(ctx)
	return nil
}

// Delete implements CityStore
func (s *SQLCityStore) Delete(ctx context.Context, city models.City) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	result := s.db.WithContext(ctx).Where("id = ?", city.ID).Delete(&CityRecord{})
	observe(s.metrics, s.backend, "delete", start, result.Error)
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Int64("city_id", city.ID).Msg("Failed to delete city")
		return fmt.Errorf("failed to delete city %d: %w", city.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug().Int64("city_id", city.ID).Msg("Delete matched no city")
		return nil
	}

	s.refresh(ctx)
	return nil
}

// Count returns the number of stored cities
func (s *SQLCityStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&CityRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cities: %w", err)
	}
	return n, nil
}

// refresh republishes the city list after a committed write
// A failure here has already been delivered to observers by the feed
func (s *SQLCityStore) refresh(ctx context.Context) {
	if err := s.feed.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Live city feed failed after write")
	}
}

// Close ends all subscriptions and closes the database connection
func (s *SQLCityStore) Close() error {
	if s.feed != nil {
		s.feed.Close()
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
