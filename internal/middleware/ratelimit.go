package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// RateLimit limits requests per tenant, or per client IP before authentication.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if tenantID := GetTenantID(r.Context()); tenantID != "" {
				return "tenant:" + tenantID, nil
			}
			return "ip:" + r.RemoteAddr, nil
		}),
		httprate.WithLimitHandler(limitExceeded(windowLength)),
	)
}

// UserRateLimit limits conversation turns per user. Turns run the classifier and
// the answer model, so the key includes the conversation to keep one busy session
// from starving the user's others.
func UserRateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(turnKey),
		httprate.WithLimitHandler(limitExceeded(windowLength)),
	)
}

func turnKey(r *http.Request) (string, error) {
	key := "ip:" + r.RemoteAddr
	if userID := GetUserID(r.Context()); userID != "" {
		key = "user:" + GetTenantID(r.Context()) + ":" + userID
	}
	if id := chi.URLParam(r, "id"); id != "" {
		key += ":conversation:" + id
	}
	return key, nil
}

func limitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(max(int(window.Seconds()), 1))
	body := []byte(`{"error":"rate limit exceeded","retry_after":` + retryAfter + `}`)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", retryAfter)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write(body)
	}
}
