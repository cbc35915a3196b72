// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package worker supervises the external data-collection process and exposes
// its RPC methods as typed calls.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/procgroup"
	"github.com/ManuGH/ytpoint/internal/worker/rpc"
)

const (
	defaultBin       = "ytpoint-worker"
	defaultKillGrace = 3 * time.Second
	stderrRingSize   = 256
)

// Config describes how to launch the worker.
type Config struct {
	Bin  string
	Args []string
	// Env is appended to the daemon's environment.
	Env         []string
	CallTimeout time.Duration
	KillGrace   time.Duration
}

type state int

const (
	stateNew state = iota
	stateRunning
	stateStopping
	stateStopped
)

// process is a running worker as seen by the supervisor.
type process struct {
	pid       int
	stdin     io.WriteCloser
	stdout    io.Reader
	stderr    io.Reader
	wait      func() error
	terminate func(exited <-chan struct{}) error
}

type spawnFunc func(ctx context.Context) (*process, error)

// Supervisor owns one worker process: it spawns it, streams its output into
// the router, serializes request writes and terminates it on Stop. A
// Supervisor is single-use; request ids are unique for its lifetime.
type Supervisor struct {
	cfg    Config
	corr   *rpc.Correlator
	router *rpc.Router
	client *Client
	ring   *LineRing
	spawn  spawnFunc

	logger zerolog.Logger

	mu       sync.Mutex
	state    state
	proc     *process
	exitErr  error
	exited   chan struct{}
	stopDone chan struct{}

	wmu sync.Mutex
}

// NewSupervisor prepares a worker supervisor. Nothing is spawned until Start.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.Bin == "" {
		cfg.Bin = defaultBin
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	s := &Supervisor{
		cfg:      cfg,
		ring:     NewLineRing(stderrRingSize),
		exited:   make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	s.logger = log.Derive(func(c *zerolog.Context) {
		*c = c.Str(log.FieldComponent, "worker").Str("bin", cfg.Bin)
	})
	s.corr = rpc.NewCorrelator(s, cfg.CallTimeout)
	s.router = rpc.NewRouter(s.corr)
	s.client = NewClient(s.corr)
	s.spawn = s.spawnExec
	return s
}

// Router returns the router; register push listeners on it before Start.
func (s *Supervisor) Router() *rpc.Router { return s.router }

// Client returns the typed method wrapper.
func (s *Supervisor) Client() *Client { return s.client }

// Done is closed once the worker process has exited and its output is drained.
func (s *Supervisor) Done() <-chan struct{} { return s.exited }

// Err returns why the worker exited, or nil while it runs or after a requested stop.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// Start spawns the worker and begins reading its output.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateNew {
		return ErrAlreadyStarted
	}
	s.logger = log.WithComponentFromContext(ctx, "worker")

	p, err := s.spawn(ctx)
	if err != nil {
		metrics.IncWorkerStart("error")
		s.state = stateStopped
		s.exitErr = err
		close(s.exited)
		close(s.stopDone)
		s.corr.FailAll(rpc.ErrWorkerGone)
		return err
	}
	metrics.IncWorkerStart("ok")
	s.proc = p
	s.state = stateRunning
	s.logger.Info().Int(log.FieldPID, p.pid).Str("bin", s.cfg.Bin).Msg("worker started")

	go s.monitor(p)
	return nil
}

func (s *Supervisor) spawnExec(_ context.Context) (*process, error) {
	// Not CommandContext: the process lifetime is owned by Stop, not by the
	// context of whoever started it.
	cmd := exec.Command(s.cfg.Bin, s.cfg.Args...) // #nosec G204 -- operator-configured binary
	procgroup.Set(cmd)
	cmd.Env = append(os.Environ(), s.cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrWorkerUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrWorkerUnavailable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrWorkerUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: spawn %s: %v", ErrWorkerUnavailable, s.cfg.Bin, err)
	}

	grace := s.cfg.KillGrace
	return &process{
		pid:    cmd.Process.Pid,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		wait:   cmd.Wait,
		terminate: func(exited <-chan struct{}) error {
			return procgroup.Terminate(cmd, exited, grace, grace)
		},
	}, nil
}

// monitor drains both output streams, reaps the process and releases every
// pending call once the worker is gone.
func (s *Supervisor) monitor(p *process) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readStdout(p.stdout)
	}()
	go func() {
		defer wg.Done()
		s.readStderr(p.stderr)
	}()
	wg.Wait()

	// pipes must be fully read before Wait
	waitErr := p.wait()

	s.mu.Lock()
	requested := s.state == stateStopping || s.state == stateStopped
	if !requested {
		if waitErr != nil {
			s.exitErr = fmt.Errorf("%w: worker exited: %v", ErrWorkerUnavailable, waitErr)
		} else {
			s.exitErr = fmt.Errorf("%w: worker exited", ErrWorkerUnavailable)
		}
	}
	s.mu.Unlock()

	switch {
	case requested:
		metrics.IncWorkerExit("stopped")
		s.logger.Info().Int(log.FieldPID, p.pid).Msg("worker stopped")
	case waitErr != nil:
		metrics.IncWorkerExit("crashed")
		s.logger.Error().Err(waitErr).Int(log.FieldPID, p.pid).Strs("stderr", s.ring.LastN(20)).Msg("worker crashed")
	default:
		metrics.IncWorkerExit("exited")
		s.logger.Warn().Int(log.FieldPID, p.pid).Strs("stderr", s.ring.LastN(20)).Msg("worker exited unexpectedly")
	}

	if n := s.corr.FailAll(rpc.ErrWorkerGone); n > 0 {
		s.logger.Warn().Int("pending", n).Msg("failed pending calls after worker exit")
	}
	close(s.exited)
}

func (s *Supervisor) readStdout(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			s.router.DispatchLine(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Debug().Err(err).Msg("worker stdout closed")
			}
			return
		}
	}
}

func (s *Supervisor) readStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		s.ring.Add(line)
		s.logger.Debug().Str("stream", "stderr").Msg(line)
	}
	// an oversized line stops the scanner; keep draining so the worker never blocks
	_, _ = io.Copy(io.Discard, r)
}

// WriteLine writes one encoded request to the worker's stdin. Writes are
// serialized so concurrent calls never interleave bytes.
func (s *Supervisor) WriteLine(line []byte) error {
	s.mu.Lock()
	st, p := s.state, s.proc
	s.mu.Unlock()
	if p == nil || (st != stateRunning && st != stateStopping) {
		return fmt.Errorf("%w: not running", ErrWorkerUnavailable)
	}
	select {
	case <-s.exited:
		return fmt.Errorf("%w: process exited", ErrWorkerUnavailable)
	default:
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := p.stdin.Write(line); err != nil {
		return fmt.Errorf("%w: write: %v", ErrWorkerUnavailable, err)
	}
	return nil
}

// Stop asks the worker to stop the chat feed and shut down, bounded by the
// call timeout, then terminates its process group regardless of the outcome.
// Stop is idempotent; concurrent callers wait for the first to finish.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateNew:
		s.state = stateStopped
		close(s.exited)
		close(s.stopDone)
		s.mu.Unlock()
		return nil
	case stateStopping:
		s.mu.Unlock()
		select {
		case <-s.stopDone:
		case <-ctx.Done():
		}
		return nil
	case stateStopped:
		s.mu.Unlock()
		return nil
	}
	s.state = stateStopping
	p := s.proc
	s.mu.Unlock()

	select {
	case <-s.exited:
	default:
		graceful := make(chan struct{})
		go func() {
			defer close(graceful)
			s.graceful(ctx)
		}()
		select {
		case <-graceful:
		case <-s.exited:
		case <-time.After(s.corr.Timeout()):
		}
	}

	// closing stdin releases a writer stuck on a worker that stopped reading
	_ = p.stdin.Close()
	err := p.terminate(s.exited)
	if err != nil {
		s.logger.Error().Err(err).Int(log.FieldPID, p.pid).Msg("worker did not terminate")
	}
	s.corr.FailAll(rpc.ErrWorkerGone)

	s.mu.Lock()
	s.state = stateStopped
	s.mu.Unlock()
	close(s.stopDone)
	return err
}

func (s *Supervisor) graceful(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.corr.Timeout())
	defer cancel()

	if err := s.client.StopLiveChat(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("stopLiveChat during shutdown failed")
	}
	if err := s.client.Shutdown(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("graceful shutdown call failed")
	}
}
