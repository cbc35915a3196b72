// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/session"
	"github.com/ManuGH/ytpoint/internal/worker"
	"github.com/ManuGH/ytpoint/internal/worker/rpc"
)

// maxBodyBytes bounds control request bodies.
const maxBodyBytes = 4 << 10

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Error: code, Detail: detail})
}

// classify maps domain errors to a status and a stable error code.
func classify(err error) (int, string) {
	var remote *rpc.RemoteError
	switch {
	case errors.Is(err, session.ErrNotLive):
		return http.StatusBadRequest, "not_live"
	case errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, session.ErrAlreadyActive):
		return http.StatusConflict, "already_active"
	case errors.Is(err, session.ErrNotActive):
		return http.StatusConflict, "not_active"
	case errors.Is(err, rpc.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, worker.ErrWorkerUnavailable), errors.Is(err, rpc.ErrWorkerGone):
		return http.StatusBadGateway, "worker_unavailable"
	case errors.As(err, &remote):
		return http.StatusBadGateway, "worker_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	logger := log.WithComponentFromContext(r.Context(), "api")
	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).Str("code", code).Int("status", status).Msg("request failed")
	writeErrorCode(w, status, code, err.Error())
}

// decodeBody reads a bounded JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: body: %v", session.ErrInvalidInput, err)
	}
	return nil
}
