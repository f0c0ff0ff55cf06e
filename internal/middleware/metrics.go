package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsMiddleware records HTTP metrics for each request
// Requests are labelled by route pattern (e.g. /v1/cities/{id}) so ids
// do not create new series
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			statusLabel := strconv.Itoa(status)
			endpoint := routePattern(r)

			m.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, statusLabel).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, endpoint, statusLabel).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(r.Method, endpoint, statusLabel).Observe(float64(ww.BytesWritten()))
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched" for 404s
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}
