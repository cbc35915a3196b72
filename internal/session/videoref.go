// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

const videoIDLen = 11

// ParseVideoRef extracts a video id from a bare id or a watch, live, shorts
// or short-link URL.
func ParseVideoRef(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty video reference", ErrInvalidInput)
	}
	if isVideoID(s) {
		return s, nil
	}

	raw := s
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q is neither a video id nor a URL", ErrInvalidInput, s)
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: invalid host in %q", ErrInvalidInput, s)
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")

	var id string
	switch {
	case host == "youtu.be":
		id = firstSegment(u.Path)
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		id = u.Query().Get("v")
		if id == "" {
			segs := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(segs) == 2 && (segs[0] == "live" || segs[0] == "shorts" || segs[0] == "embed") {
				id = segs[1]
			}
		}
	default:
		return "", fmt.Errorf("%w: unsupported host %q", ErrInvalidInput, host)
	}

	if !isVideoID(id) {
		return "", fmt.Errorf("%w: no video id in %q", ErrInvalidInput, s)
	}
	return id, nil
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

func isVideoID(s string) bool {
	if len(s) != videoIDLen {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
