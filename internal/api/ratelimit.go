package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// newSubmitLimiter returns nil (no limit) for a non-positive rate.
func newSubmitLimiter(r float64, burst int) *rate.Limiter {
	if r <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r), burst)
}

// submitRateLimit rejects submissions beyond the configured rate with 429.
// The limit is shared by all clients.
func (s *Server) submitRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			countSubmission("", outcomeRateLimited)
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, "submission rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
