// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package broadcast

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ManuGH/ytpoint/internal/log"
)

const (
	wsWriteWait      = 5 * time.Second
	wsMaxMessageSize = 1024
)

// WSHandler streams hub events over WebSocket as JSON text frames. Clients
// are not expected to send anything; inbound messages are discarded.
type WSHandler struct {
	hub       *Hub
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

// NewWSHandler returns a WebSocket endpoint for hub. checkOrigin decides
// whether an upgrade request may proceed; nil accepts every origin.
func NewWSHandler(hub *Hub, keepAlive time.Duration, checkOrigin func(r *http.Request) bool) *WSHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &WSHandler{
		hub:       hub,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin == nil || checkOrigin(r)
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "ws")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.hub.Subscribe("ws")
	defer sub.Close()
	logger.Debug().Str(log.FieldSubscriberID, sub.ID).Msg("websocket client connected")

	// read pump: handles control frames and notices disconnects
	gone := make(chan struct{})
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.keepAlive))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.keepAlive))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if snap, ok := h.hub.Latest(); ok {
		data, err := json.Marshal(snap)
		if err == nil && h.write(conn, Event{Type: TypePoints, Data: data}) != nil {
			return
		}
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := h.write(conn, ev); err != nil {
				logger.Debug().Err(err).Str(log.FieldSubscriberID, sub.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, ev Event) error {
	b, err := ev.Frame()
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
