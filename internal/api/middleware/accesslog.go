// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/log"
)

// AccessLog writes one structured line per request. Streams are logged when
// they end, so their duration is the connection lifetime.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrap(w)
		next.ServeHTTP(sw, r)

		logger := log.WithComponentFromContext(r.Context(), "http")
		var ev *zerolog.Event
		switch {
		case sw.status >= 500:
			ev = logger.Error()
		case r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics":
			ev = logger.Debug()
		default:
			ev = logger.Info()
		}
		if traceID, spanID := ExtractTraceContext(r); traceID != "" {
			ev = ev.Str("trace_id", traceID).Str("span_id", spanID)
		}
		ev.Str(log.FieldMethod, r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("http request")
	})
}
