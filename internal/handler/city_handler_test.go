package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/models"
	"github.com/evyataryagoni/cityapp/internal/service"
	"github.com/evyataryagoni/cityapp/internal/store"
	"github.com/go-chi/chi/v5"
)

// setupHandler builds a handler over the sample cities and routes it like v1 does
func setupHandler(t *testing.T) (http.Handler, *store.MockCityStore) {
	t.Helper()
	cities := store.NewMockCityStore(store.SampleCities()...)
	favorites := store.NewMemoryFavoriteStore(store.Options{Logger: logger.Nop()})

	coordinator := service.NewCoordinator(cities, favorites, store.Options{Logger: logger.Nop()})
	if err := coordinator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() {
		coordinator.Close()
		favorites.Close()
		cities.Close()
	})

	h := NewCityHandler(coordinator)
	r := chi.NewRouter()
	r.Get("/v1/cities", h.ListCities)
	r.Post("/v1/cities", h.CreateCity)
	r.Get("/v1/cities/{id}", h.GetCity)
	r.Put("/v1/cities/{id}", h.UpdateCity)
	r.Delete("/v1/cities/{id}", h.DeleteCity)
	r.Post("/v1/cities/{id}/favorite", h.ToggleFavorite)
	r.Put("/v1/filters", h.SetFilters)
	r.Delete("/v1/filters", h.ResetFilters)
	r.Get("/v1/countries", h.ListCountries)
	return r, cities
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.DerivedView {
	t.Helper()
	var view models.DerivedView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	return view
}

// TestCityHandler_ListCities tests the derived view response
func TestCityHandler_ListCities(t *testing.T) {
	h, _ := setupHandler(t)

	rec := do(t, h, http.MethodGet, "/v1/cities", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	view := decodeView(t, rec)
	if got := view.Names(); !reflect.DeepEqual(got, []string{"Lyon", "Nice", "Paris"}) {
		t.Errorf("expected [Lyon Nice Paris], got %v", got)
	}
	if view.Filter.SortBy != models.SortByName {
		t.Errorf("expected sort 'name', got %s", view.Filter.SortBy)
	}
}

// TestCityHandler_GetCity tests point lookups
func TestCityHandler_GetCity(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedName   string
	}{
		{"existing city", "/v1/cities/1", http.StatusOK, "Paris"},
		{"missing city", "/v1/cities/99", http.StatusNotFound, ""},
		{"non-numeric id", "/v1/cities/paris", http.StatusBadRequest, ""},
		{"zero id", "/v1/cities/0", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupHandler(t)

			rec := do(t, h, http.MethodGet, tt.path, "")

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedName == "" {
				return
			}
			var city models.City
			json.NewDecoder(rec.Body).Decode(&city)
			if city.Name != tt.expectedName {
				t.Errorf("expected %s, got %s", tt.expectedName, city.Name)
			}
		})
	}
}

// TestCityHandler_GetCity_StoreError tests the 500 path
func TestCityHandler_GetCity_StoreError(t *testing.T) {
	h, cities := setupHandler(t)
	cities.GetByIDError = errors.New("connection lost")

	rec := do(t, h, http.MethodGet, "/v1/cities/1", "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var errResp models.ErrorResponse
	json.NewDecoder(rec.Body).Decode(&errResp)
	if errResp.Error != "Internal server error" {
		t.Errorf("unexpected error message: %s", errResp.Error)
	}
}

// TestCityHandler_CreateCity tests adding cities through the API
func TestCityHandler_CreateCity(t *testing.T) {
	tests := []struct {
		name               string
		body               string
		expectedStatus     int
		expectedPopulation int
	}{
		{"valid city", `{"name":"Lille","population":230000,"country":"France"}`, http.StatusCreated, 230000},
		{"population as string", `{"name":"Lille","population":"230000","country":"France"}`, http.StatusCreated, 230000},
		{"unparsable population", `{"name":"Lille","population":"lots","country":"France"}`, http.StatusCreated, 0},
		{"fractional population", `{"name":"Lille","population":2.5,"country":"France"}`, http.StatusCreated, 0},
		{"missing population", `{"name":"Lille","country":"France"}`, http.StatusCreated, 0},
		{"negative population", `{"name":"Lille","population":-1,"country":"France"}`, http.StatusBadRequest, 0},
		{"missing name", `{"population":1,"country":"France"}`, http.StatusBadRequest, 0},
		{"blank name", `{"name":"   ","population":1,"country":"France"}`, http.StatusBadRequest, 0},
		{"missing country", `{"name":"Lille","population":1}`, http.StatusBadRequest, 0},
		{"unknown country", `{"name":"Lille","population":1,"country":"Atlantis"}`, http.StatusBadRequest, 0},
		{"malformed JSON", `{"name":`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, cities := setupHandler(t)

			rec := do(t, h, http.MethodPost, "/v1/cities", tt.body)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			if tt.expectedStatus != http.StatusCreated {
				if len(cities.InsertCalls) != 0 {
					t.Errorf("expected no insert for invalid input, got %d", len(cities.InsertCalls))
				}
				return
			}

			var city models.City
			json.NewDecoder(rec.Body).Decode(&city)
			if city.ID == 0 {
				t.Error("expected assigned id in response")
			}
			if city.Population != tt.expectedPopulation {
				t.Errorf("expected population %d, got %d", tt.expectedPopulation, city.Population)
			}
		})
	}
}

// TestCityHandler_CreateCity_TrimsInput tests that surrounding whitespace is not stored
func TestCityHandler_CreateCity_TrimsInput(t *testing.T) {
	h, cities := setupHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/cities", `{"name":"  Lille ","population":1,"country":" France "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	stored := cities.InsertCalls[0]
	if stored.Name != "Lille" || stored.Country != "France" {
		t.Errorf("expected trimmed name and country, got %q / %q", stored.Name, stored.Country)
	}
}

// TestCityHandler_CreateCity_VisibleInList tests read-your-write through the list
func TestCityHandler_CreateCity_VisibleInList(t *testing.T) {
	h, _ := setupHandler(t)

	do(t, h, http.MethodPost, "/v1/cities", `{"name":"Annecy","population":130000,"country":"France"}`)
	view := decodeView(t, do(t, h, http.MethodGet, "/v1/cities", ""))

	if got := view.Names(); !reflect.DeepEqual(got, []string{"Annecy", "Lyon", "Nice", "Paris"}) {
		t.Errorf("expected Annecy first, got %v", got)
	}
}

// TestCityHandler_CreateCity_ValidationMessage tests the error body
func TestCityHandler_CreateCity_ValidationMessage(t *testing.T) {
	h, _ := setupHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/cities", `{"name":"","population":-3,"country":"Atlantis"}`)

	var errResp models.ErrorResponse
	json.NewDecoder(rec.Body).Decode(&errResp)

	for _, want := range []string{"'name' is required", "'population' must not be negative", "'country' must be one of the listed countries"} {
		if !strings.Contains(errResp.Error, want) {
			t.Errorf("expected %q in %q", want, errResp.Error)
		}
	}
}

// TestCityHandler_UpdateCity tests editing an existing city
func TestCityHandler_UpdateCity(t *testing.T) {
	h, cities := setupHandler(t)

	rec := do(t, h, http.MethodPut, "/v1/cities/3", `{"name":"Nice","population":345000,"country":"France"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(cities.UpdateCalls) != 1 || cities.UpdateCalls[0].ID != 3 {
		t.Errorf("expected one update of id 3, got %+v", cities.UpdateCalls)
	}

	rec = do(t, h, http.MethodPut, "/v1/cities/42", `{"name":"Ghost","population":1,"country":"France"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for missing city, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/v1/cities/3", `{"name":"","population":1,"country":"France"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for blank name, got %d", rec.Code)
	}
}

// TestCityHandler_DeleteCity tests idempotent deletes
func TestCityHandler_DeleteCity(t *testing.T) {
	h, _ := setupHandler(t)

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodDelete, "/v1/cities/2", "")
		if rec.Code != http.StatusNoContent {
			t.Errorf("delete %d: expected status 204, got %d", i+1, rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/cities/2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected deleted city to be gone, got %d", rec.Code)
	}
}

// TestCityHandler_DeleteCity_StoreError tests the 500 path
func TestCityHandler_DeleteCity_StoreError(t *testing.T) {
	h, cities := setupHandler(t)
	cities.DeleteError = errors.New("disk full")

	rec := do(t, h, http.MethodDelete, "/v1/cities/2", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

// TestCityHandler_ToggleFavorite tests the favorite flag round trip
func TestCityHandler_ToggleFavorite(t *testing.T) {
	h, _ := setupHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/cities/3/favorite", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
	var resp FavoriteResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.CityID != 3 || !resp.Favorite {
		t.Errorf("expected city 3 favorited, got %+v", resp)
	}

	view := decodeView(t, do(t, h, http.MethodGet, "/v1/cities", ""))
	if got := view.Names(); !reflect.DeepEqual(got, []string{"Nice", "Lyon", "Paris"}) {
		t.Errorf("expected [Nice Lyon Paris], got %v", got)
	}
	if !view.Cities[0].Favorite {
		t.Error("expected favorite flag in list")
	}

	rec = do(t, h, http.MethodPost, "/v1/cities/3/favorite", "")
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Favorite {
		t.Error("expected second toggle to clear the favorite")
	}
}

// TestCityHandler_SetFilters tests query-driven filter changes
func TestCityHandler_SetFilters(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expected       []string
	}{
		{"min population", "?min_population=400000", http.StatusOK, []string{"Lyon", "Paris"}},
		{"population sort", "?sort=population", http.StatusOK, []string{"Paris", "Lyon", "Nice"}},
		{"combined", "?min_population=400000&sort=POPULATION", http.StatusOK, []string{"Paris", "Lyon"}},
		{"search", "?q=NI", http.StatusOK, []string{"Nice"}},
		{"unparsable min population", "?min_population=abc", http.StatusOK, []string{"Lyon", "Nice", "Paris"}},
		{"negative min population", "?min_population=-50", http.StatusOK, []string{"Lyon", "Nice", "Paris"}},
		{"unknown sort", "?sort=country&q=zzz", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupHandler(t)

			rec := do(t, h, http.MethodPut, "/v1/filters"+tt.query, "")
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expected == nil {
				// A rejected request leaves the view unchanged
				view := decodeView(t, do(t, h, http.MethodGet, "/v1/cities", ""))
				if view.Filter != models.DefaultFilterState() {
					t.Errorf("expected untouched filter, got %+v", view.Filter)
				}
				return
			}

			view := decodeView(t, rec)
			if got := view.Names(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
			if view.Filter.MinPopulation < 0 {
				t.Errorf("expected clamped min population, got %d", view.Filter.MinPopulation)
			}
		})
	}
}

// TestCityHandler_StoppedCoordinator tests that commands answer 503 once the view stopped
func TestCityHandler_StoppedCoordinator(t *testing.T) {
	cities := store.NewMockCityStore(store.SampleCities()...)
	favorites := store.NewMemoryFavoriteStore(store.Options{Logger: logger.Nop()})
	defer favorites.Close()

	coordinator := service.NewCoordinator(cities, favorites, store.Options{Logger: logger.Nop()})
	if err := coordinator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	coordinator.Close()

	h := NewCityHandler(coordinator)
	r := chi.NewRouter()
	r.Post("/v1/cities", h.CreateCity)
	r.Get("/v1/cities/{id}", h.GetCity)
	r.Post("/v1/cities/{id}/favorite", h.ToggleFavorite)
	r.Put("/v1/filters", h.SetFilters)

	tests := []struct {
		name           string
		method         string
		target         string
		body           string
		expectedStatus int
	}{
		{"create", http.MethodPost, "/v1/cities", `{"name":"Lille","population":230000,"country":"France"}`, http.StatusServiceUnavailable},
		{"favorite", http.MethodPost, "/v1/cities/1/favorite", "", http.StatusServiceUnavailable},
		{"filters", http.MethodPut, "/v1/filters?q=ly", "", http.StatusServiceUnavailable},
		{"lookup still served", http.MethodGet, "/v1/cities/1", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, tt.method, tt.target, tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}

	if len(cities.InsertCalls) != 0 {
		t.Errorf("expected no insert to reach the store, got %d", len(cities.InsertCalls))
	}
}

// TestCityHandler_ResetFilters tests restoring defaults
func TestCityHandler_ResetFilters(t *testing.T) {
	h, _ := setupHandler(t)
	initial := decodeView(t, do(t, h, http.MethodGet, "/v1/cities", ""))

	do(t, h, http.MethodPut, "/v1/filters?q=ly&min_population=1&sort=population", "")
	rec := do(t, h, http.MethodDelete, "/v1/filters", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	view := decodeView(t, rec)
	if !reflect.DeepEqual(view, initial) {
		t.Errorf("expected %+v, got %+v", initial, view)
	}
}

// TestCityHandler_ListCountries tests the reference list endpoint
func TestCityHandler_ListCountries(t *testing.T) {
	h, _ := setupHandler(t)

	rec := do(t, h, http.MethodGet, "/v1/countries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var list []string
	json.NewDecoder(rec.Body).Decode(&list)
	found := false
	for _, c := range list {
		if c == "France" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected France in %d countries", len(list))
	}
}
