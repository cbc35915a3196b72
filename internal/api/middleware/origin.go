// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// Origins is an allow-list of browser origins. "*" allows every origin.
// An empty list allows only same-origin requests.
type Origins struct {
	all     bool
	allowed map[string]bool
}

// NewOrigins builds an allow-list from configured origins.
func NewOrigins(origins []string) Origins {
	o := Origins{allowed: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
		if origin == "*" {
			o.all = true
			continue
		}
		if origin != "" {
			o.allowed[strings.ToLower(origin)] = true
		}
	}
	return o
}

// Allowed reports whether origin may talk to r's host.
func (o Origins) Allowed(origin string, r *http.Request) bool {
	origin = strings.TrimSuffix(origin, "/")
	if o.all || o.allowed[strings.ToLower(origin)] {
		return true
	}
	return isSameOrigin(origin, r)
}

// CheckOrigin adapts the list to websocket.Upgrader.CheckOrigin. Requests
// without an Origin header come from non-browser clients and pass.
func (o Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allowed(origin, r)
}

func isSameOrigin(origin string, r *http.Request) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// requestOrigin returns the Origin header, falling back to the Referer's origin.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
