// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
)

// CSRFProtection rejects state-changing browser requests from foreign
// origins. Requests carrying neither Origin nor Referer are treated as
// non-browser clients (curl, stream tooling) and pass.
func CSRFProtection(origins Origins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if origin := requestOrigin(r); origin != "" && !origins.Allowed(origin, r) {
				writeJSONError(w, http.StatusForbidden, "forbidden", "cross-origin request not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
