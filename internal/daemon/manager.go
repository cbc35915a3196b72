// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/config"
	"github.com/ManuGH/ytpoint/internal/log"
)

const maxHeaderBytes = 1 << 20

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start starts all configured servers and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down all servers
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)

	// Addr returns the bound API address once Start has listened.
	Addr() string
}

type manager struct {
	serverCfg config.ServerConfig
	deps      Deps

	apiServer     *http.Server
	metricsServer *http.Server
	apiAddr       string
	// cancels request contexts so long-lived streams end on shutdown
	cancelStreams context.CancelFunc

	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given configuration and dependencies.
func NewManager(serverCfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		serverCfg:     serverCfg,
		deps:          deps,
		logger:        deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
		shutdownHooks: make([]namedHook, 0),
	}, nil
}

// Start binds the listeners and blocks until ctx is cancelled or a server fails.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.serverCfg.ListenAddr).
		Str("metrics_listen", m.serverCfg.MetricsAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("starting daemon manager")

	errChan := make(chan error, 2)

	if m.deps.MetricsHandler != nil && m.serverCfg.MetricsAddr != "" {
		srv := &http.Server{
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		}
		if _, err := m.serve(srv, m.serverCfg.MetricsAddr, "metrics", errChan); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		m.mu.Lock()
		m.metricsServer = srv
		m.mu.Unlock()
	}

	baseCtx, cancelStreams := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.cancelStreams = cancelStreams
	m.mu.Unlock()

	// WriteTimeout stays as configured; zero keeps SSE and WebSocket streams open.
	apiSrv := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	addr, err := m.serve(apiSrv, m.serverCfg.ListenAddr, "api", errChan)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout())
		defer cancel()
		_ = m.Shutdown(shutdownCtx)
		return fmt.Errorf("start API server: %w", err)
	}
	m.mu.Lock()
	m.apiServer = apiSrv
	m.apiAddr = addr
	m.mu.Unlock()

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("server error, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout())
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout())
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

// serve binds addr synchronously, so address conflicts fail Start, then serves in the background.
func (m *manager) serve(srv *http.Server, addr, name string, errChan chan<- error) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	bound := ln.Addr().String()
	m.logger.Info().Str("addr", bound).Str("server", name).Msg("server listening")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Str(log.FieldEvent, name+".server.failed").Msg("server failed")
			errChan <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
	return bound, nil
}

func (m *manager) shutdownTimeout() time.Duration {
	if m.serverCfg.ShutdownTimeout > 0 {
		return m.serverCfg.ShutdownTimeout
	}
	return 15 * time.Second
}

func (m *manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiAddr
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	apiServer, metricsServer := m.apiServer, m.metricsServer
	cancelStreams := m.cancelStreams
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout())
	defer cancel()

	var errs []error

	if cancelStreams != nil {
		cancelStreams()
	}
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			_ = apiServer.Close()
			if !errors.Is(err, context.DeadlineExceeded) {
				errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
			}
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
		} else {
			m.logger.Debug().
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook completed")
		}
	}

	if len(errs) > 0 {
		m.logger.Error().Int("error_count", len(errs)).Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
	m.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}
