package router

import (
	"net/http"

	"github.com/evyataryagoni/cityapp/internal/handler"
	"github.com/evyataryagoni/cityapp/internal/limiter"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	custommiddleware "github.com/evyataryagoni/cityapp/internal/middleware"
	v1 "github.com/evyataryagoni/cityapp/internal/router/v1"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the Chi router with all middleware and routes
//
// Parameters:
//   - cityHandler: the city list handler
//   - writeLimiter: throttles mutating requests (nil disables)
//   - m: metrics collector (nil disables HTTP metrics)
//   - gatherer: source for the /metrics endpoint
//   - log: structured logger
//
// Returns:
//   - chi.Router: configured router ready to use
func SetupRouter(cityHandler *handler.CityHandler, writeLimiter limiter.Limiter, m *metrics.Metrics, gatherer prometheus.Gatherer, log *logger.Logger) chi.Router {
	r := chi.NewRouter()

	// Order matters! RequestID first so every later layer can log it
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(custommiddleware.WriteLimitMiddleware(writeLimiter))
	r.Use(custommiddleware.MetricsMiddleware(m))

	r.Mount("/v1", v1.SetupRoutes(cityHandler))

	// Health check endpoint
	r.Get("/health", healthCheckHandler)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// healthCheckHandler returns 200 OK while the process is serving
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
