// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	_ "embed"
	"net/http"
)

//go:embed ui/overlay.html
var overlayHTML []byte

// handleOverlay serves the bundled overlay page for streaming software.
func (s *Server) handleOverlay(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(overlayHTML)
}
