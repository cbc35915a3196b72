// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// Validate reports every problem in cfg at once. All errors wrap ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			add("logLevel", "unknown level %q", cfg.LogLevel)
		}
	}

	if err := cfg.Points.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: points: %w", ErrInvalidConfig, err))
	}

	if cfg.Polling.Interval <= 0 {
		add("polling.interval", "must be positive")
	}

	if strings.TrimSpace(cfg.Worker.Bin) == "" {
		add("worker.bin", "must not be empty")
	}
	if cfg.Worker.CallTimeout <= 0 {
		add("worker.callTimeout", "must be positive")
	}
	if cfg.Worker.KillGrace <= 0 {
		add("worker.killGrace", "must be positive")
	}

	if err := validateListen(cfg.Server.ListenAddr); err != nil {
		add("server.listenAddr", "%v", err)
	}
	if cfg.Server.MetricsAddr != "" {
		if err := validateListen(cfg.Server.MetricsAddr); err != nil {
			add("server.metricsAddr", "%v", err)
		}
		if cfg.Server.MetricsAddr == cfg.Server.ListenAddr {
			add("server.metricsAddr", "must differ from listenAddr")
		}
	}
	if cfg.Server.RateLimit < 0 {
		add("server.rateLimit", "must not be negative")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		add("server.shutdownTimeout", "must be positive")
	}

	if cfg.Broadcast.Buffer < 1 {
		add("broadcast.buffer", "must be at least 1")
	}
	if cfg.Broadcast.KeepAlive <= 0 {
		add("broadcast.keepAlive", "must be positive")
	}

	switch cfg.Journal.Backend {
	case JournalMemory:
	case JournalSQLite, JournalBadger:
		if cfg.Journal.Path == "" {
			add("journal.path", "required for backend %q", cfg.Journal.Backend)
		}
	default:
		add("journal.backend", "unknown backend %q", cfg.Journal.Backend)
	}

	if cfg.Redis.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Redis.Addr); err != nil {
			add("redis.addr", "%v", err)
		}
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter", "must be grpc or http, got %q", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint", "required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate", "must be within [0, 1]")
	}

	return errors.Join(errs...)
}

func validateListen(addr string) error {
	if addr == "" {
		return errors.New("must not be empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return errors.New("missing port")
	}
	return nil
}
