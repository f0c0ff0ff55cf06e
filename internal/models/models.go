package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// City is a single city record owned by the City Store
// ID is assigned by the store on creation; zero means "not stored yet"
type City struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Population int    `json:"population"`
	Country    string `json:"country"`
}

// FavoriteKey returns the string form used to store this city in a FavoriteSet
func (c City) FavoriteKey() string {
	return FavoriteKey(c.ID)
}

// FavoriteKey converts a city id into its favorite-set member form
func FavoriteKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// FavoriteSet is the set of favorited city ids, stored as strings
// Entries are not checked against existing cities; stale ids are inert
type FavoriteSet map[string]struct{}

// NewFavoriteSet builds a set from its members
func NewFavoriteSet(keys ...string) FavoriteSet {
	set := make(FavoriteSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether the raw key is a member
func (s FavoriteSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Contains reports whether the city id is a member
func (s FavoriteSet) Contains(id int64) bool {
	return s.Has(FavoriteKey(id))
}

// Keys returns the members in ascending order
func (s FavoriteSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy
func (s FavoriteSet) Clone() FavoriteSet {
	out := make(FavoriteSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// SortOption selects the secondary ordering of the derived view
type SortOption string

const (
	// SortByName orders cities by name, ascending
	SortByName SortOption = "name"
	// SortByPopulation orders cities by population, descending
	SortByPopulation SortOption = "population"
)

// ErrInvalidSortOption is returned when a sort option string is not recognised
var ErrInvalidSortOption = errors.New("invalid sort option")

// ParseSortOption converts user input into a SortOption (case-insensitive)
func ParseSortOption(s string) (SortOption, error) {
	switch SortOption(strings.ToLower(strings.TrimSpace(s))) {
	case SortByName:
		return SortByName, nil
	case SortByPopulation:
		return SortByPopulation, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: 'name', 'population')", ErrInvalidSortOption, s)
	}
}

// Valid reports whether the option is one of the known values
func (o SortOption) Valid() bool {
	return o == SortByName || o == SortByPopulation
}

// FilterState is the transient, non-persisted filter and sort selection
type FilterState struct {
	SearchQuery   string     `json:"search_query"`
	MinPopulation int        `json:"min_population"`
	SortBy        SortOption `json:"sort_by"`
}

// DefaultFilterState is the state at startup and after a reset
func DefaultFilterState() FilterState {
	return FilterState{
		SearchQuery:   "",
		MinPopulation: 0,
		SortBy:        SortByName,
	}
}

// FilterPatch names the filter fields to change; nil fields are kept
type FilterPatch struct {
	SearchQuery   *string
	MinPopulation *int
	SortBy        *SortOption
}

// Apply returns f with the patched fields replaced
func (p FilterPatch) Apply(f FilterState) FilterState {
	if p.SearchQuery != nil {
		f.SearchQuery = *p.SearchQuery
	}
	if p.MinPopulation != nil {
		f.MinPopulation = *p.MinPopulation
	}
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
	}
	return f
}

// CityView is one row of the derived view
type CityView struct {
	City
	Favorite bool `json:"favorite"`
}

// DerivedView is what the presentation layer renders: filtered, sorted,
// favorites first, together with the inputs it was computed from
type DerivedView struct {
	Cities    []CityView  `json:"cities"`
	Favorites FavoriteSet `json:"-"`
	Filter    FilterState `json:"filter"`
}

// Names returns the city names in view order
func (v DerivedView) Names() []string {
	names := make([]string, len(v.Cities))
	for i, c := range v.Cities {
		names[i] = c.Name
	}
	return names
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}
