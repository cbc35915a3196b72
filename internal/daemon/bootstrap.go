// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the runtime together and owns its lifecycle.
package daemon

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/api"
	"github.com/ManuGH/ytpoint/internal/broadcast"
	"github.com/ManuGH/ytpoint/internal/config"
	"github.com/ManuGH/ytpoint/internal/health"
	"github.com/ManuGH/ytpoint/internal/journal"
	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/mirror"
	"github.com/ManuGH/ytpoint/internal/points"
	"github.com/ManuGH/ytpoint/internal/session"
	"github.com/ManuGH/ytpoint/internal/telemetry"
	"github.com/ManuGH/ytpoint/internal/worker"
)

// Runtime is a fully wired daemon.
type Runtime struct {
	App        *App
	Manager    Manager
	Controller *session.Controller
	Hub        *broadcast.Hub
}

// SessionConfig maps the application config onto the controller's.
func SessionConfig(cfg config.AppConfig) session.Config {
	return session.Config{
		Rates:        cfg.Points,
		PollInterval: cfg.Polling.Interval,
		Worker: worker.Config{
			Bin:         cfg.Worker.Bin,
			Args:        cfg.Worker.Args,
			Env:         cfg.Worker.Env,
			CallTimeout: cfg.Worker.CallTimeout,
			KillGrace:   cfg.Worker.KillGrace,
		},
		Cookies: cfg.Worker.Cookies,
	}
}

// Bootstrap builds every component from holder's current config. Resources
// opened before a failure are released before returning the error. opts are
// passed to the session controller.
func Bootstrap(ctx context.Context, holder *config.Holder, version string, opts ...session.Option) (*Runtime, error) {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	var cleanup []func()
	fail := func(err error) (*Runtime, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}
	cleanup = append(cleanup, func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) })

	j, err := journal.Open(journal.Config{Backend: cfg.Journal.Backend, Path: cfg.Journal.Path})
	if err != nil {
		return fail(fmt.Errorf("journal: %w", err))
	}
	cleanup = append(cleanup, func() { _ = j.Close() })

	store, err := points.NewStore(cfg.Points)
	if err != nil {
		return fail(fmt.Errorf("points: %w", err))
	}
	hub := broadcast.NewHub(cfg.Broadcast.Buffer)
	cleanup = append(cleanup, hub.Close)

	ctl, err := session.NewController(SessionConfig(cfg), store, hub, append([]session.Option{session.WithJournal(j)}, opts...)...)
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}

	// Redis is optional: an unreachable server disables the mirror.
	var mir *mirror.Mirror
	if cfg.Redis.Addr != "" {
		mir, err = mirror.New(ctx, mirror.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis mirror disabled")
			mir = nil
		} else {
			cleanup = append(cleanup, func() { _ = mir.Close() })
		}
	}

	hm := health.NewManager(version)
	registerChecks(hm, cfg, ctl, j, mir)

	apiSrv, err := api.New(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		KeepAlive:      cfg.Broadcast.KeepAlive,
		TracingService: tracingService(cfg),
		MountMetrics:   cfg.Server.MetricsAddr == "",
	}, api.Deps{Controller: ctl, Hub: hub, Journal: j, Health: hm})
	if err != nil {
		return fail(err)
	}

	deps := Deps{Logger: logger, APIHandler: apiSrv.Handler()}
	if cfg.Server.MetricsAddr != "" {
		deps.MetricsHandler = api.NewMetricsHandler()
	}
	mgr, err := NewManager(cfg.Server, deps)
	if err != nil {
		return fail(err)
	}

	// LIFO: controller, hub (ends streams and the mirror loop), mirror, journal, telemetry.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("journal", func(context.Context) error { return j.Close() })
	if mir != nil {
		mgr.RegisterShutdownHook("mirror", func(context.Context) error { return mir.Close() })
	}
	mgr.RegisterShutdownHook("hub", func(context.Context) error { hub.Close(); return nil })
	mgr.RegisterShutdownHook("session", ctl.Close)

	holder.OnReload(func(next config.AppConfig) {
		if lvl, err := zerolog.ParseLevel(next.LogLevel); err == nil && next.LogLevel != "" {
			zerolog.SetGlobalLevel(lvl)
		}
		if err := ctl.SetConfig(SessionConfig(next)); err != nil {
			logger.Warn().Err(err).Msg("reloaded session config rejected")
			return
		}
		logger.Info().Msg("session config updated, applies to the next session")
	})

	app := NewApp(logger, mgr, holder)
	if mir != nil {
		app.AddTask("mirror", func(ctx context.Context) error { return mir.Run(ctx, hub) })
	}

	return &Runtime{App: app, Manager: mgr, Controller: ctl, Hub: hub}, nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.LogService
}

type pinger interface {
	Ping(ctx context.Context) error
}

func registerChecks(hm *health.Manager, cfg config.AppConfig, ctl *session.Controller, j journal.Journal, mir *mirror.Mirror) {
	hm.RegisterChecker(health.NewCheckerFunc("session", func(context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusHealthy, Message: string(ctl.State())}
	}))

	bin := cfg.Worker.Bin
	hm.RegisterChecker(health.NewCheckerFunc("worker_binary", func(context.Context) health.CheckResult {
		if _, err := exec.LookPath(bin); err != nil {
			return health.CheckResult{Status: health.StatusDegraded, Error: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	}))

	if p, ok := j.(pinger); ok {
		hm.RegisterChecker(health.NewPingChecker("journal", false, p.Ping))
	}
	if mir != nil {
		hm.RegisterChecker(health.NewPingChecker("redis", true, mir.Ping))
	}
}

// Run bootstraps and runs the daemon until ctx is cancelled.
func Run(ctx context.Context, holder *config.Holder, version string) error {
	if holder == nil {
		return ErrNoHolder
	}
	rt, err := Bootstrap(ctx, holder, version)
	if err != nil {
		return err
	}
	return rt.App.Run(ctx)
}
