// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package journal keeps an append-only record of received tips.
//
// The journal is informational: failures are logged by callers and never
// affect the point score.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// MaxRecent caps Recent's limit.
const MaxRecent = 500

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one recorded tip.
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	TipID      string    `json:"tip_id"`
	Author     string    `json:"author"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Message    string    `json:"message"`
	Timestamp  int64     `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// Journal stores tips and lists the most recent ones.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Open creates the configured journal. An empty backend selects memory.
func Open(cfg Config) (Journal, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(MaxRecent * 2), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("journal: sqlite backend requires a path")
		}
		return OpenSQLite(cfg.Path, DefaultSQLiteConfig())
	case BackendBadger:
		if cfg.Path == "" {
			return nil, fmt.Errorf("journal: badger backend requires a path")
		}
		return OpenBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("journal: unknown backend %q", cfg.Backend)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}
