package server

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"foodfinder/handlers"
)

const requestIDHeader = "X-Request-Id"

// api applies the middleware every /api route shares. The request id comes
// first so everything after it can log and report it.
func (s *Server) api(h http.HandlerFunc) http.HandlerFunc {
	return s.requestID(s.observe(s.recoverPanics(s.throttle(h))))
}

// requestID reuses a client id only when it is a well-formed UUID.
func (s *Server) requestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(handlers.WithRequestID(r.Context(), id)))
	}
}

// throttle answers 429 once the shared token bucket is empty.
func (s *Server) throttle(next http.HandlerFunc) http.HandlerFunc {
	retryAfter := strconv.Itoa(retryAfterSeconds(s.config.Server.RateLimit))
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		apiRejections.WithLabelValues(rejectRateLimit).Inc()
		w.Header().Set("Retry-After", retryAfter)
		handlers.WriteError(w, r, http.StatusTooManyRequests, "Rate limit exceeded", nil)
	}
}

// retryAfterSeconds is the time for one token to refill, at least a second.
func retryAfterSeconds(perSecond float64) int {
	if perSecond <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/perSecond)))
}

// recoverPanics turns a handler panic into a 500 with the request id.
func (s *Server) recoverPanics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			apiRejections.WithLabelValues(rejectPanic).Inc()
			slog.Error("handler panicked",
				"requestID", handlers.RequestIDFromContext(r.Context()),
				"route", routeLabel(r),
				"panic", fmt.Sprint(rec),
			)
			handlers.WriteError(w, r, http.StatusInternalServerError, "Internal server error", nil)
		}()
		next.ServeHTTP(w, r)
	}
}
