// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the current configuration and reloads it when the file
// changes. A reload that fails to load or validate keeps the old config.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []func(AppConfig)
}

// NewHolder creates a holder with an already loaded initial config.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload, in
// registration order, on the reloading goroutine.
func (h *Holder) OnReload(fn func(AppConfig)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the configuration and swaps it in atomically.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("new configuration rejected, keeping current")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)

	h.listenersMu.RLock()
	listeners := append([]func(AppConfig){}, h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(next)
	}

	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch reloads on file changes until ctx is done. Without a config file it
// returns immediately. The directory is watched so atomic replaces are seen.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str(log.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str("path", abs).Msg("watching config file")

	defer func() { _ = watcher.Close() }()

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
			} else {
				debounce.Reset(reloadDebounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			_ = h.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Str(log.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

func (h *Holder) logChanges(prev, next AppConfig) {
	if prev.Points != next.Points {
		h.logger.Info().
			Interface("old", prev.Points).
			Interface("new", next.Points).
			Msg("config changed: points (applies to the next session)")
	}
	if prev.Polling.Interval != next.Polling.Interval {
		h.logger.Info().
			Dur("old", prev.Polling.Interval).
			Dur("new", next.Polling.Interval).
			Msg("config changed: polling.interval")
	}
	if prev.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", prev.LogLevel).Str("new", next.LogLevel).Msg("config changed: logLevel")
	}
	if prev.Server.ListenAddr != next.Server.ListenAddr || prev.Journal != next.Journal || prev.Redis != next.Redis {
		h.logger.Warn().Msg("listener, journal and redis changes require a restart")
	}
}
