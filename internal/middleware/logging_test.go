package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// TestLoggingMiddleware tests the completion log line and its level
func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		expectedLevel string
	}{
		{"success", http.StatusOK, "info"},
		{"client error", http.StatusBadRequest, "warn"},
		{"server error", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWriter(&buf)

			handler := middleware.RequestID(LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cities", nil))

			var entry map[string]interface{}
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var e map[string]interface{}
				if err := json.Unmarshal([]byte(line), &e); err != nil {
					t.Fatalf("invalid log line %q: %v", line, err)
				}
				if e["message"] == "Request completed" {
					entry = e
				}
			}

			if entry == nil {
				t.Fatalf("no completion line in %q", buf.String())
			}
			if entry["level"] != tt.expectedLevel {
				t.Errorf("expected level %s, got %v", tt.expectedLevel, entry["level"])
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("expected status %d, got %v", tt.status, entry["status"])
			}
			if id, _ := entry["request_id"].(string); id == "" {
				t.Error("expected request_id in log line")
			}
		})
	}
}
