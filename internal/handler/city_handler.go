package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/evyataryagoni/cityapp/internal/countries"
	"github.com/evyataryagoni/cityapp/internal/models"
	"github.com/evyataryagoni/cityapp/internal/service"
	"github.com/go-chi/chi/v5"
)

// CityHandler handles HTTP requests for the city list
// This is the handler layer - it deals with HTTP concerns only
//
// Responsibilities:
//   - Parse HTTP requests (path, query, JSON body)
//   - Validate user input before it reaches the coordinator
//   - Call coordinator methods
//   - Format HTTP responses (JSON) with appropriate status codes
type CityHandler struct {
	coordinator *service.Coordinator
	validate    *validatorSet
}

// NewCityHandler creates a new city handler around the coordinator
func NewCityHandler(coordinator *service.Coordinator) *CityHandler {
	return &CityHandler{
		coordinator: coordinator,
		validate:    newValidator(),
	}
}

// FavoriteResponse is returned after toggling a favorite
type FavoriteResponse struct {
	CityID   int64 `json:"city_id"`
	Favorite bool  `json:"favorite"`
}

// ListCities handles GET /v1/cities
// Returns the current derived view: filtered, sorted, favorites first
func (h *CityHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.coordinator.View())
}

// GetCity handles GET /v1/cities/{id}
func (h *CityHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cityID(w, r)
	if !ok {
		return
	}

	city, err := h.coordinator.GetCityByID(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if city == nil {
		h.respondError(w, http.StatusNotFound, "City not found")
		return
	}

	h.respondJSON(w, http.StatusOK, city)
}

// CreateCity handles POST /v1/cities
// Body: {"name": "Lyon", "population": 500000, "country": "France"}
func (h *CityHandler) CreateCity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCity(w, r)
	if !ok {
		return
	}

	city := req.toCity(0)
	id, err := h.coordinator.AddCity(r.Context(), city.Name, city.Population, city.Country)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}

	city.ID = id
	h.respondJSON(w, http.StatusCreated, city)
}

// UpdateCity handles PUT /v1/cities/{id}
// An id that does not exist is reported as 404 rather than created
func (h *CityHandler) UpdateCity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cityID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeCity(w, r)
	if !ok {
		return
	}

	existing, err := h.coordinator.GetCityByID(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing == nil {
		h.respondError(w, http.StatusNotFound, "City not found")
		return
	}

	city := req.toCity(id)
	if err := h.coordinator.UpdateCity(r.Context(), city); err != nil {
		h.respondCommandError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, city)
}

// DeleteCity handles DELETE /v1/cities/{id}
// Deleting a missing city still succeeds
func (h *CityHandler) DeleteCity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cityID(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.DeleteCity(r.Context(), models.City{ID: id}); err != nil {
		h.respondCommandError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite handles POST /v1/cities/{id}/favorite
func (h *CityHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cityID(w, r)
	if !ok {
		return
	}

	favorite, err := h.coordinator.ToggleFavorite(r.Context(), id)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, FavoriteResponse{CityID: id, Favorite: favorite})
}

// SetFilters handles PUT /v1/filters?q=<text>&min_population=<n>&sort=<name|population>
// Only the parameters present in the query are changed, all in one step
func (h *CityHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var patch models.FilterPatch
	if query.Has("sort") {
		opt, err := models.ParseSortOption(query.Get("sort"))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid 'sort' query parameter (supported: 'name', 'population')")
			return
		}
		patch.SortBy = &opt
	}
	if query.Has("q") {
		q := query.Get("q")
		patch.SearchQuery = &q
	}
	if query.Has("min_population") {
		n := parseMinPopulation(query.Get("min_population"))
		patch.MinPopulation = &n
	}

	if err := h.coordinator.SetFilters(patch); err != nil {
		h.respondCommandError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.coordinator.View())
}

// ResetFilters handles DELETE /v1/filters
func (h *CityHandler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.ResetFilters(); err != nil {
		h.respondCommandError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.coordinator.View())
}

// ListCountries handles GET /v1/countries
func (h *CityHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, countries.All())
}

// parseMinPopulation maps unparsable input to 0
// Negative numbers pass through; the coordinator clamps them
func parseMinPopulation(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// cityID reads the {id} path parameter, answering 400 when it is not a number
func (h *CityHandler) cityID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid city id")
		return 0, false
	}
	return id, true
}

// decodeCity parses and validates a city body, answering 400 on failure
func (h *CityHandler) decodeCity(w http.ResponseWriter, r *http.Request) (*CityRequest, bool) {
	var req CityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}

	if msg := h.validate.check(&req); msg != "" {
		h.respondError(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return &req, true
}

// respondJSON writes a JSON response with the given status code
func (h *CityHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If encoding fails, we can't change the status code since headers are already sent
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondCommandError maps a failed coordinator command to a status code
func (h *CityHandler) respondCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrStopped):
		h.respondError(w, http.StatusServiceUnavailable, "City list is not running")
	case errors.Is(err, models.ErrInvalidSortOption):
		h.respondError(w, http.StatusBadRequest, "Invalid 'sort' query parameter (supported: 'name', 'population')")
	default:
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondError writes an error response with consistent formatting
func (h *CityHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}
