// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/ytpoint/internal/config"
	"github.com/ManuGH/ytpoint/internal/log"
)

type task struct {
	name string
	run  func(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (config watcher, reload signal,
// background consumers) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	tasks        []task
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. holder may be nil.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		holder:       holder,
		reloadSignal: syscall.SIGHUP,
	}
}

// AddTask runs fn alongside the servers. Its error is logged, never fatal.
func (a *App) AddTask(name string, fn func(ctx context.Context) error) {
	a.tasks = append(a.tasks, task{name: name, run: fn})
}

// Run starts all owned background subsystems and blocks until ctx is cancelled
// or the manager fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		g.Go(func() error {
			if err := a.holder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_failed").Msg("config watcher stopped")
			}
			return nil
		})
	}

	if a.holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, a.reloadSignal)
			defer signal.Stop(hup)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.holder.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	for _, t := range a.tasks {
		g.Go(func() error {
			if err := t.run(ctx); err != nil {
				a.logger.Warn().Err(err).Str("task", t.name).Msg("background task stopped")
			}
			return nil
		})
	}

	// the other goroutines exit once the servers are down
	g.Go(func() error {
		defer cancel()
		return a.manager.Start(ctx)
	})

	return g.Wait()
}
