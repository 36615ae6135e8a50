package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"moviecatalog/internal/httpx"
)

// RequestRateLimiter throttles raw request volume per client IP in memory.
// It sits in front of the persistent lockout and only absorbs floods; the
// lockout is what enforces the failure threshold.
func RequestRateLimiter(maxHits int, window time.Duration) func(http.Handler) http.Handler {
	if maxHits <= 0 {
		maxHits = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		maxHits,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeRateLimited, "too many requests, try again later")
		}),
	)
}
