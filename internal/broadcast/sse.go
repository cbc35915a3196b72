// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package broadcast

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/log"
)

// DefaultKeepAlive is the interval between SSE comments and WebSocket pings.
const DefaultKeepAlive = 15 * time.Second

// SSEHandler streams hub events as Server-Sent Events. The current snapshot
// is sent on connect; there is no replay of missed events.
type SSEHandler struct {
	hub       *Hub
	keepAlive time.Duration
}

// NewSSEHandler returns an SSE endpoint for hub.
func NewSSEHandler(hub *Hub, keepAlive time.Duration) *SSEHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &SSEHandler{hub: hub, keepAlive: keepAlive}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe("sse")
	defer sub.Close()

	logger := log.WithComponentFromContext(r.Context(), "sse")
	logger.Debug().Str(log.FieldSubscriberID, sub.ID).Msg("SSE client connected")
	defer logger.Debug().Str(log.FieldSubscriberID, sub.ID).Msg("SSE client disconnected")

	w.WriteHeader(http.StatusOK)
	if snap, ok := h.hub.Latest(); ok {
		data, err := json.Marshal(snap)
		if err == nil {
			if err := writeSSE(w, Event{Type: TypePoints, Data: data}); err != nil {
				return
			}
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, ev Event) error {
	if ev.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
	return err
}
