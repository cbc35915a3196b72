// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command ytpointd tracks engagement points for a YouTube live stream and
// serves them to overlays.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/ytpoint/internal/config"
	"github.com/ManuGH/ytpoint/internal/daemon"
	"github.com/ManuGH/ytpoint/internal/health"
	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
	}
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("ytpointd", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", config.ParseString(config.EnvPrefix+"CONFIG", ""), "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	}

	// safe defaults until the config is loaded
	log.Configure(log.Config{Level: "info", Service: "ytpointd", Version: version.Version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "config.load_failed").Str("config_path", path).Msg("failed to load configuration")
		return 1
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: version.Version})
	logger = log.WithComponent("daemon")
	if path != "" {
		logger.Info().Str(log.FieldEvent, "config.loaded").Str("source", "file").Str("path", path).Msg("loaded configuration from file")
	} else {
		logger.Info().Str(log.FieldEvent, "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.check_failed").Msg("startup checks failed, verify configuration and permissions")
		return 1
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.ListenAddr).
		Str("worker", cfg.Worker.Bin).
		Str("journal", cfg.Journal.Backend).
		Bool("redis", cfg.Redis.Addr != "").
		Msg("starting ytpointd")

	holder := config.NewHolder(cfg, loader)
	if err := daemon.Run(ctx, holder, version.Version); err != nil {
		logger.Error().Err(err).Msg("daemon exited with error")
		return 1
	}
	logger.Info().Msg("daemon stopped")
	return 0
}
