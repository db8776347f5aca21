package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"foodfinder/handlers"
)

const (
	rejectRateLimit = "rate_limit"
	rejectPanic     = "panic"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodfinder_http_requests_total",
		Help: "API requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	// Image search waits on the classifier, so the buckets reach its timeout.
	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodfinder_http_request_duration_seconds",
		Help:    "API request latency by route.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"route"})

	apiInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodfinder_http_requests_in_flight",
		Help: "API requests currently being served.",
	})

	apiRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodfinder_http_rejections_total",
		Help: "API requests answered by middleware instead of a handler.",
	}, []string{"reason"})
)

// routeLabel prefers the mux pattern so restaurant ids stay out of labels.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

// observe counts and times the request, then logs it at debug level.
func (s *Server) observe(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiInFlight.Inc()
		defer apiInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routeLabel(r)
		apiRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code())).Inc()
		apiLatency.WithLabelValues(route).Observe(elapsed.Seconds())

		slog.Debug("api request",
			"requestID", handlers.RequestIDFromContext(r.Context()),
			"route", route,
			"path", r.URL.Path,
			"status", rec.code(),
			"bytes", rec.bytes,
			"elapsed", elapsed.String(),
		)
	}
}
