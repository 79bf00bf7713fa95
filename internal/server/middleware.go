package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// corsMiddleware allows the browser caregiver app to call the API from any
// origin and answers preflight requests before routing.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status code for metrics labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with per-route Prometheus metrics. The route
// pattern is passed explicitly to keep label cardinality bounded.
func (s *Server) instrument(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next(w, r)
			return
		}

		s.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, pattern).Inc()
		defer s.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, pattern).Dec()

		timer := prometheus.NewTimer(s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, httpStatusLabel(rec.status)).Inc()
	}
}

func httpStatusLabel(status int) string {
	switch status {
	case http.StatusOK:
		return "200"
	case http.StatusBadRequest:
		return "400"
	case http.StatusNotFound:
		return "404"
	case http.StatusConflict:
		return "409"
	case http.StatusInternalServerError:
		return "500"
	default:
		return "other"
	}
}
