// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session orchestrates one monitoring session at a time: it starts the
// worker, feeds tips and polls into the points store, and publishes every
// change to the broadcast hub.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/ytpoint/internal/broadcast"
	"github.com/ManuGH/ytpoint/internal/fsm"
	"github.com/ManuGH/ytpoint/internal/journal"
	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/points"
	"github.com/ManuGH/ytpoint/internal/telemetry"
	"github.com/ManuGH/ytpoint/internal/worker"
	"github.com/ManuGH/ytpoint/internal/worker/protocol"
	"github.com/ManuGH/ytpoint/internal/worker/rpc"
)

const (
	journalTimeout = 2 * time.Second
	// upper bound for stopping a worker after a failed start
	abortStopTimeout = 15 * time.Second
)

// Worker is the slice of *worker.Supervisor the controller drives.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	Router() *rpc.Router
	Client() *worker.Client
}

// Config is copied into each session at Start; changes apply to the next session.
type Config struct {
	Rates        points.RateConfig
	PollInterval time.Duration
	Worker       worker.Config
	Cookies      string
}

// Info describes the running session.
type Info struct {
	ID            string    `json:"id"`
	VideoID       string    `json:"video_id"`
	Title         string    `json:"title"`
	ChannelID     string    `json:"channel_id"`
	ChannelName   string    `json:"channel_name"`
	Authenticated bool      `json:"authenticated"`
	StartedAt     time.Time `json:"started_at"`
}

// View is what the UI reads.
type View struct {
	State    State           `json:"state"`
	Session  *Info           `json:"session,omitempty"`
	Snapshot points.Snapshot `json:"snapshot"`
}

// TipNotice is broadcast for every tip so overlays can animate it.
type TipNotice struct {
	SessionID string       `json:"session_id"`
	Tip       protocol.Tip `json:"tip"`
	Total     int64        `json:"total"`
}

// Option customizes a Controller.
type Option func(*Controller)

// WithWorkerFactory replaces how workers are created, mainly for tests.
func WithWorkerFactory(f func(worker.Config) Worker) Option {
	return func(c *Controller) { c.newWorker = f }
}

// WithJournal records every tip in j.
func WithJournal(j journal.Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// Controller owns the session lifecycle. Broadcast and store outlive sessions.
type Controller struct {
	store     *points.Store
	hub       *broadcast.Hub
	journal   journal.Journal
	newWorker func(worker.Config) Worker
	machine   *fsm.Machine[State, event]
	logger    zerolog.Logger

	mu  sync.Mutex
	cfg Config
	cur *active

	// background teardowns after unexpected worker exits
	aborts sync.WaitGroup
}

type active struct {
	info   Info
	worker Worker
	tips   *tipQueue
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewController wires a controller around store and hub.
func NewController(cfg Config, store *points.Store, hub *broadcast.Hub, opts ...Option) (*Controller, error) {
	if err := cfg.Rates.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		store:   store,
		hub:     hub,
		cfg:     cfg,
		machine: newMachine(),
		logger:  log.WithComponent("session"),
		newWorker: func(wc worker.Config) Worker {
			return worker.NewSupervisor(wc)
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SetConfig replaces the configuration used by the next Start.
func (c *Controller) SetConfig(cfg Config) error {
	if err := cfg.Rates.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.machine.State() }

// View returns the lifecycle state, session info and current snapshot.
func (c *Controller) View() View {
	v := View{State: c.machine.State(), Snapshot: c.store.Snapshot()}
	c.mu.Lock()
	if c.cur != nil {
		info := c.cur.info
		v.Session = &info
	}
	c.mu.Unlock()
	return v
}

// Start begins monitoring the video referenced by ref (an id or URL).
// On any failure the worker is stopped and the controller returns to idle.
func (c *Controller) Start(ctx context.Context, ref string) (Info, error) {
	if _, err := c.machine.Fire(evStart); err != nil {
		metrics.SessionStartTotal.WithLabelValues("already_active").Inc()
		return Info{}, ErrAlreadyActive
	}

	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	info := Info{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	ctx = log.ContextWithSessionID(ctx, info.ID)
	logger := log.WithComponentFromContext(ctx, "session")

	ctx, span := telemetry.Tracer("ytpoint.session").Start(ctx, "ytpoint.session.start")
	defer span.End()

	a, err := c.begin(ctx, cfg, &info, ref)
	span.SetAttributes(telemetry.SessionAttributes(info.ID, info.VideoID, info.ChannelID)...)
	if err != nil {
		c.mustFire(evFail)
		result := "error"
		if errors.Is(err, ErrInvalidInput) {
			result = "invalid_input"
		}
		metrics.SessionStartTotal.WithLabelValues(result).Inc()
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(result)...)
		span.SetStatus(codes.Error, result)
		logger.Warn().Err(err).Str("ref", ref).Msg("session start failed")
		return Info{}, err
	}

	c.mu.Lock()
	c.cur = a
	c.mu.Unlock()
	c.mustFire(evStarted)
	metrics.SessionStartTotal.WithLabelValues("ok").Inc()

	c.hub.PublishSnapshot(c.store.Snapshot())
	c.launch(cfg, a)

	logger.Info().
		Str(log.FieldVideoID, info.VideoID).
		Str(log.FieldChannelID, info.ChannelID).
		Bool("authenticated", info.Authenticated).
		Msg("session started")
	return info, nil
}

// begin runs the start sequence up to and including startLiveChat.
func (c *Controller) begin(ctx context.Context, cfg Config, info *Info, ref string) (*active, error) {
	videoID, err := ParseVideoRef(ref)
	if err != nil {
		return nil, err
	}
	info.VideoID = videoID
	logger := log.WithComponentFromContext(ctx, "session")

	w := c.newWorker(cfg.Worker)
	tips := newTipQueue()
	w.Router().Handle(protocol.KindSuperchat, func(ev *protocol.PushEvent) {
		tip, err := protocol.DecodeTip(ev)
		if err != nil {
			logger.Warn().Err(err).Msg("discarding malformed tip event")
			return
		}
		tips.push(tip)
	})

	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	fail := func(err error) (*active, error) {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortStopTimeout)
		defer cancel()
		if stopErr := w.Stop(stopCtx); stopErr != nil {
			logger.Error().Err(stopErr).Msg("stopping worker after failed start")
		}
		return nil, err
	}

	client := w.Client()
	if cfg.Cookies != "" {
		if err := client.SetCookies(ctx, cfg.Cookies); err != nil {
			logger.Warn().Err(err).Msg("setting cookies failed, continuing unauthenticated")
		}
	}

	authenticated, err := client.Init(ctx)
	if err != nil {
		return fail(fmt.Errorf("init worker: %w", err))
	}
	info.Authenticated = authenticated

	live, err := client.GetLiveInfo(ctx, videoID)
	if err != nil {
		return fail(fmt.Errorf("get live info: %w", err))
	}
	if !live.IsLive {
		return fail(fmt.Errorf("%w: %s", ErrNotLive, videoID))
	}
	info.Title = live.Title
	info.ChannelID = live.ChannelID
	info.ChannelName = live.ChannelName

	subs, err := subscriberCount(ctx, client, authenticated, live.ChannelID)
	if err != nil {
		return fail(fmt.Errorf("get subscriber count: %w", err))
	}

	if err := cfg.Rates.Validate(); err != nil {
		return fail(err)
	}
	if err := client.StartLiveChat(ctx, videoID); err != nil {
		return fail(fmt.Errorf("start live chat: %w", err))
	}

	// the store is only touched once nothing else can fail; tips queued since
	// StartLiveChat are applied after the baseline by the drain loop
	if _, err := c.store.Begin(cfg.Rates, live.ConcurrentViewers, live.Likes(), subs); err != nil {
		return fail(err)
	}

	return &active{info: *info, worker: w, tips: tips}, nil
}

// subscriberCount prefers the exact count when authenticated and falls back
// to the public, rounded count.
func subscriberCount(ctx context.Context, client *worker.Client, authenticated bool, channelID string) (int64, error) {
	if authenticated {
		n, err := client.GetExactSubscriberCount(ctx)
		if err == nil {
			return n, nil
		}
		logger := log.WithComponentFromContext(ctx, "session")
		logger.Warn().Err(err).Msg("exact subscriber count unavailable, using public count")
	}
	return client.GetSubscriberCount(ctx, channelID)
}

// launch starts the session-owned tasks. They are joined by teardown.
func (c *Controller) launch(cfg Config, a *active) {
	// detached from the request that started the session
	ctx, cancel := context.WithCancel(log.ContextWithSessionID(context.Background(), a.info.ID))
	g, gctx := errgroup.WithContext(ctx)
	a.cancel = cancel
	a.group = g

	poller := NewPoller(cfg.PollInterval, func(ctx context.Context) error {
		return c.poll(ctx, a)
	})
	g.Go(func() error { return c.drainTips(gctx, a) })
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.worker.Done():
			if gctx.Err() == nil {
				c.aborts.Add(1)
				go func() {
					defer c.aborts.Done()
					c.abort(a)
				}()
			}
		}
		return nil
	})
}

func (c *Controller) poll(ctx context.Context, a *active) error {
	client := a.worker.Client()
	live, err := client.GetLiveInfo(ctx, a.info.VideoID)
	if err != nil {
		return fmt.Errorf("get live info: %w", err)
	}
	subs, err := subscriberCount(ctx, client, a.info.Authenticated, a.info.ChannelID)
	if err != nil {
		return fmt.Errorf("get subscriber count: %w", err)
	}
	// a poll that raced with stop must not publish stale data
	if ctx.Err() != nil {
		return nil
	}
	c.hub.PublishSnapshot(c.store.ApplyPoll(live.ConcurrentViewers, live.Likes(), subs))
	return nil
}

func (c *Controller) drainTips(ctx context.Context, a *active) error {
	for {
		tip, ok := a.tips.pop(ctx)
		if !ok {
			return nil
		}
		c.applyTip(ctx, a, tip)
	}
}

func (c *Controller) applyTip(ctx context.Context, a *active, tip protocol.Tip) {
	snap := c.store.ApplyTip(tip.Amount)
	c.hub.PublishSnapshot(snap)
	metrics.TipsTotal.WithLabelValues(tip.Currency).Inc()

	meter := otel.GetMeterProvider().Meter("ytpoint.session")
	if amount, err := meter.Int64Counter("ytpoint_tip_amount_total", metric.WithDescription("Cumulative tip amount")); err == nil {
		amount.Add(ctx, tip.Amount, metric.WithAttributes(attribute.String("currency", tip.Currency)))
	}

	logger := log.WithComponentFromContext(ctx, "session")
	logger.Info().
		Str(log.FieldTipID, tip.ID).
		Int64(log.FieldAmount, tip.Amount).
		Str("currency", tip.Currency).
		Int64(log.FieldTotal, snap.Points.Total).
		Msg("tip received")

	if c.journal != nil {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		err := c.journal.Append(jctx, journal.Entry{
			ID:         uuid.NewString(),
			SessionID:  a.info.ID,
			TipID:      tip.ID,
			Author:     tip.Author,
			Amount:     tip.Amount,
			Currency:   tip.Currency,
			Message:    tip.Message,
			Timestamp:  tip.Timestamp,
			ReceivedAt: time.Now().UTC(),
		})
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldTipID, tip.ID).Msg("tip journal append failed")
		}
	}

	if err := c.hub.Publish(broadcast.TypeTip, TipNotice{SessionID: a.info.ID, Tip: tip, Total: snap.Points.Total}); err != nil {
		logger.Warn().Err(err).Msg("broadcast tip failed")
	}
}

// Stop ends the active session. The worker is always terminated; the error
// reports a worker that could not be killed.
func (c *Controller) Stop(ctx context.Context) error {
	if _, err := c.machine.Fire(evStop); err != nil {
		return ErrNotActive
	}
	a := c.take()
	err := c.teardown(ctx, a)
	c.logger.Info().Str(log.FieldSessionID, a.info.ID).Msg("session stopped")
	return err
}

// abort tears down a session whose worker died on its own.
func (c *Controller) abort(a *active) {
	if _, err := c.machine.Fire(evStop); err != nil {
		// a concurrent Stop owns the teardown
		return
	}
	c.take()
	c.logger.Error().
		Err(a.worker.Err()).
		Str(log.FieldSessionID, a.info.ID).
		Msg("worker exited unexpectedly, session ended")
	ctx, cancel := context.WithTimeout(context.Background(), abortStopTimeout)
	defer cancel()
	if err := c.teardown(ctx, a); err != nil {
		c.logger.Error().Err(err).Msg("worker teardown failed")
	}
}

func (c *Controller) take() *active {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.cur
	c.cur = nil
	return a
}

func (c *Controller) teardown(ctx context.Context, a *active) error {
	a.cancel()
	err := a.worker.Stop(ctx)
	_ = a.group.Wait()
	c.mustFire(evStopped)
	return err
}

// AddManual adds amount points by hand. Legal in every state.
func (c *Controller) AddManual(ctx context.Context, amount int64) (points.Snapshot, error) {
	if amount == 0 {
		return points.Snapshot{}, fmt.Errorf("%w: manual amount must be non-zero", ErrInvalidInput)
	}
	snap := c.store.AddManual(amount)
	c.hub.PublishSnapshot(snap)

	meter := otel.GetMeterProvider().Meter("ytpoint.session")
	if manual, err := meter.Int64Counter("ytpoint_manual_points_total", metric.WithDescription("Manually added points")); err == nil {
		manual.Add(ctx, amount)
	}
	c.logger.Info().Int64(log.FieldAmount, amount).Int64(log.FieldTotal, snap.Points.Total).Msg("manual points added")
	return snap, nil
}

// Reset clears points and counters, keeping the subscriber baseline. Legal in every state.
func (c *Controller) Reset(_ context.Context) points.Snapshot {
	snap := c.store.Reset(true)
	c.hub.PublishSnapshot(snap)
	c.logger.Info().Msg("points reset")
	return snap
}

// Close stops any active session and waits for background teardowns.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	if c.machine.State() == StateActive {
		if stopErr := c.Stop(ctx); stopErr != nil && !errors.Is(stopErr, ErrNotActive) {
			err = stopErr
		}
	}
	c.aborts.Wait()
	return err
}

func (c *Controller) mustFire(ev event) {
	if _, err := c.machine.Fire(ev); err != nil {
		c.logger.Error().Err(err).Msg("unexpected session state")
	}
}
