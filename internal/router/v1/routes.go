package v1

import (
	"github.com/evyataryagoni/cityapp/internal/handler"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes configures all v1 API routes
// This function is called by the main router to setup /v1/* endpoints
//
// Parameters:
//   - cityHandler: the city list handler
//
// Returns:
//   - chi.Router: configured v1 router
func SetupRoutes(cityHandler *handler.CityHandler) chi.Router {
	r := chi.NewRouter()

	r.Route("/cities", func(r chi.Router) {
		// GET /v1/cities - the derived view
		r.Get("/", cityHandler.ListCities)
		r.Post("/", cityHandler.CreateCity)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cityHandler.GetCity)
			r.Put("/", cityHandler.UpdateCity)
			r.Delete("/", cityHandler.DeleteCity)
			r.Post("/favorite", cityHandler.ToggleFavorite)
		})
	})

	// PUT /v1/filters?q=<text>&min_population=<n>&sort=<name|population>
	r.Put("/filters", cityHandler.SetFilters)
	r.Delete("/filters", cityHandler.ResetFilters)

	r.Get("/countries", cityHandler.ListCountries)

	return r
}
