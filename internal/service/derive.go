package service

import (
	"sort"
	"strings"

	"github.com/evyataryagoni/cityapp/internal/models"
	"golang.org/x/text/cases"
)

// Derive computes the view shown to the user from the five inputs
//
// Steps, in this exact order:
//  1. Keep cities whose name contains the query (case-insensitive) and whose
//     population is at least MinPopulation
//  2. Sort by the active option; ties keep their input order
//  3. Move favorites to the front, keeping the step-2 order on both sides
//
// Derive never mutates its arguments.
func Derive(cities []models.City, favorites models.FavoriteSet, filter models.FilterState) models.DerivedView {
	// A Caser carries state, so each call gets its own
	fold := cases.Fold()
	query := fold.String(filter.SearchQuery)

	filtered := make([]models.City, 0, len(cities))
	for _, c := range cities {
		if c.Population < filter.MinPopulation {
			continue
		}
		if query != "" && !strings.Contains(fold.String(c.Name), query) {
			continue
		}
		filtered = append(filtered, c)
	}

	switch filter.SortBy {
	case models.SortByPopulation:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Population > filtered[j].Population
		})
	default:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Name < filtered[j].Name
		})
	}

	view := make([]models.CityView, 0, len(filtered))
	for _, c := range filtered {
		if favorites.Contains(c.ID) {
			view = append(view, models.CityView{City: c, Favorite: true})
		}
	}
	for _, c := range filtered {
		if !favorites.Contains(c.ID) {
			view = append(view, models.CityView{City: c})
		}
	}

	return models.DerivedView{
		Cities:    view,
		Favorites: favorites,
		Filter:    filter,
	}
}

// emptyView is published before both stores have reported their contents
func emptyView(filter models.FilterState) models.DerivedView {
	return models.DerivedView{
		Cities:    []models.CityView{},
		Favorites: models.NewFavoriteSet(),
		Filter:    filter,
	}
}
