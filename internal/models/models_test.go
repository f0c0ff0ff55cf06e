package models

import (
	"errors"
	"reflect"
	"testing"
)

// TestParseSortOption tests parsing of user supplied sort options
func TestParseSortOption(t *testing.T) {
	tests := []struct {
		input    string
		expected SortOption
		wantErr  bool
	}{
		{"name", SortByName, false},
		{"population", SortByPopulation, false},
		{" Population ", SortByPopulation, false},
		{"NAME", SortByName, false},
		{"country", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSortOption(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSortOption) {
					t.Errorf("expected ErrInvalidSortOption, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if !got.Valid() {
				t.Errorf("expected %q to be valid", got)
			}
		})
	}

	if SortOption("size").Valid() {
		t.Error("unknown option should not be valid")
	}
}

// TestFavoriteSet tests membership, ordering and copying
func TestFavoriteSet(t *testing.T) {
	set := NewFavoriteSet("10", "2", "7")

	if !set.Contains(2) || !set.Has("10") {
		t.Error("expected members to be found")
	}
	if set.Contains(3) {
		t.Error("unexpected member 3")
	}

	if keys := set.Keys(); !reflect.DeepEqual(keys, []string{"10", "2", "7"}) {
		t.Errorf("expected sorted keys, got %v", keys)
	}

	clone := set.Clone()
	delete(clone, "2")
	if !set.Contains(2) {
		t.Error("clone should not share storage with the original")
	}
}

// TestFavoriteKey tests the id to member conversion
func TestFavoriteKey(t *testing.T) {
	city := City{ID: 42}
	if city.FavoriteKey() != "42" || FavoriteKey(42) != "42" {
		t.Errorf("expected '42', got %q", city.FavoriteKey())
	}
}

// TestDefaultFilterState tests the startup filter
func TestDefaultFilterState(t *testing.T) {
	f := DefaultFilterState()
	if f.SearchQuery != "" || f.MinPopulation != 0 || f.SortBy != SortByName {
		t.Errorf("unexpected default filter: %+v", f)
	}
}

// TestDerivedView_Names tests that names follow view order
func TestDerivedView_Names(t *testing.T) {
	view := DerivedView{Cities: []CityView{
		{City: City{Name: "Nice"}},
		{City: City{Name: "Lyon"}, Favorite: true},
	}}
	if got := view.Names(); !reflect.DeepEqual(got, []string{"Nice", "Lyon"}) {
		t.Errorf("unexpected names: %v", got)
	}
}

// TestFilterPatch_Apply tests that only set fields change
func TestFilterPatch_Apply(t *testing.T) {
	query := "ly"
	minPop := 1000
	sortBy := SortByPopulation

	tests := []struct {
		name     string
		patch    FilterPatch
		expected FilterState
	}{
		{"empty patch", FilterPatch{}, DefaultFilterState()},
		{"query only", FilterPatch{SearchQuery: &query}, FilterState{SearchQuery: "ly", SortBy: SortByName}},
		{
			"all fields",
			FilterPatch{SearchQuery: &query, MinPopulation: &minPop, SortBy: &sortBy},
			FilterState{SearchQuery: "ly", MinPopulation: 1000, SortBy: SortByPopulation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.patch.Apply(DefaultFilterState()); got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
