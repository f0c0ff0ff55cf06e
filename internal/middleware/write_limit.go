package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/evyataryagoni/cityapp/internal/limiter"
	"github.com/evyataryagoni/cityapp/internal/models"
)

// WriteLimitMiddleware throttles mutating requests per client (returns 429 when exceeded)
// Reads are never limited. A nil limiter disables throttling.
func WriteLimitMiddleware(lim limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if lim == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if !lim.Allow(clientKey(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.ErrorResponse{
					Error: "Too many changes. Please slow down.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// clientKey identifies the caller by host, ignoring the ephemeral port
// chi's RealIP middleware has already applied X-Real-IP / X-Forwarded-For
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
