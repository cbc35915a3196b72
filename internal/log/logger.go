// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides the process-wide structured logger.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry
}

var (
	mu         sync.RWMutex
	base       zerolog.Logger
	configured bool
)

// Configure (re)initialises the global zerolog logger. The daemon calls it
// once with safe defaults and again after the configuration is loaded.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}

	service := cfg.Service
	if service == "" {
		service = os.Getenv("LOG_SERVICE")
		if service == "" {
			service = "ytpoint"
		}
	}
	version := cfg.Version
	if version == "" {
		version = os.Getenv("VERSION")
	}

	l := zerolog.New(writer).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()

	mu.Lock()
	base = l
	configured = true
	mu.Unlock()
}

func logger() zerolog.Logger {
	mu.RLock()
	if configured {
		l := base
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Configure(Config{})
	return logger()
}

// L returns a pointer to a copy of the base logger, convenient for chained calls.
func L() *zerolog.Logger {
	l := logger()
	return &l
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}
