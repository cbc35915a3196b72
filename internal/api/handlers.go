// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ManuGH/ytpoint/internal/journal"
	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/session"
)

const defaultTipsLimit = 50

type startRequest struct {
	Video string `json:"video"`
}

type manualRequest struct {
	Amount int64 `json:"amount"`
}

type tipsResponse struct {
	Tips []journal.Entry `json:"tips"`
}

// handleState returns the lifecycle state and the last published snapshot.
// With ?since=<seq> it first waits, up to StateWait, for a snapshot newer
// than seq; on timeout the current state is returned unchanged.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: since must be a snapshot sequence number", session.ErrInvalidInput))
			return
		}
		s.waitNewer(r.Context(), since)
	}

	view := s.deps.Controller.View()
	if snap, ok := s.deps.Hub.Latest(); ok {
		view.Snapshot = snap
	}
	writeJSON(w, http.StatusOK, view)
}

// waitNewer returns once the latest snapshot is newer than since, the wait
// times out or the client goes away.
func (s *Server) waitNewer(ctx context.Context, since uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StateWait)
	defer cancel()
	for snap := range s.deps.Hub.Watch(ctx) {
		if snap.Seq > since {
			return
		}
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Video == "" {
		writeError(w, r, fmt.Errorf("%w: video is required", session.ErrInvalidInput))
		return
	}

	info, err := s.deps.Controller.Start(r.Context(), req.Video)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldSessionID, info.ID).
		Str(log.FieldVideoID, info.VideoID).
		Msg("session started via api")
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Controller.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.deps.Controller.AddManual(r.Context(), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Reset(r.Context()))
}

// handleTips lists the most recent journaled tips, newest first.
func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	limit := defaultTipsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", session.ErrInvalidInput))
			return
		}
		limit = min(n, journal.MaxRecent)
	}
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusOK, tipsResponse{Tips: []journal.Entry{}})
		return
	}
	entries, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, tipsResponse{Tips: entries})
}
