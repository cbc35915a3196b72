// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	WindowSize   time.Duration
	// KeyFunc defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit limits requests with httprate's sliding window counter.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, try again later")
		}),
	)
}

// ControlRateLimit limits state-changing control routes to perMinute
// requests per client IP. A limit of zero disables limiting.
func ControlRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimit(RateLimitConfig{RequestLimit: perMinute, WindowSize: time.Minute})
}
