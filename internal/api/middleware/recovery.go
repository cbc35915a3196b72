// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/ManuGH/ytpoint/internal/log"
)

// Recoverer turns a handler panic into a logged 500 instead of a crash.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			buf := make([]byte, 8192)
			n := runtime.Stack(buf, false)

			path := r.URL.Path
			if !utf8.ValidString(path) {
				path = strings.ToValidUTF8(path, "")
			}

			logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
			logger.Error().
				Str(log.FieldEvent, "panic.recovered").
				Str(log.FieldMethod, r.Method).
				Str("path", path).
				Str("remote_addr", r.RemoteAddr).
				Interface("panic_value", rec).
				Str("stack_trace", string(buf[:n])).
				Msg("panic recovered in HTTP handler")

			writeJSONError(w, http.StatusInternalServerError, "internal", "an unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}
