// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mirror copies broadcast events into Redis so other processes can
// read the latest points without talking to the daemon.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/broadcast"
	"github.com/ManuGH/ytpoint/internal/log"
)

// Defaults for Config.
const (
	DefaultChannel = "ytpoint:events"
	DefaultKey     = "ytpoint:points"

	opTimeout = 2 * time.Second
)

// Transport labels the mirror's hub subscription.
const Transport = "redis"

// Config holds the Redis connection and naming.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Channel receives every event frame via PUBLISH.
	Channel string
	// Key holds the latest points snapshot via SET.
	Key string
}

// Mirror is a hub consumer writing to Redis. Redis failures are logged and
// never reach the hub.
type Mirror struct {
	client  *redis.Client
	channel string
	key     string
	logger  zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newMirror(client, cfg), nil
}

func newMirror(client *redis.Client, cfg Config) *Mirror {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	m := &Mirror{
		client:  client,
		channel: cfg.Channel,
		key:     cfg.Key,
		logger:  log.WithComponent("mirror"),
	}
	m.logger.Info().
		Str("addr", cfg.Addr).
		Str("channel", cfg.Channel).
		Str("key", cfg.Key).
		Msg("redis mirror connected")
	return m
}

// Run forwards hub events until ctx is done or the hub closes.
func (m *Mirror) Run(ctx context.Context, hub *broadcast.Hub) error {
	sub := hub.Subscribe(Transport)
	defer sub.Close()

	// seed the key with whatever was published before we attached
	if snap, ok := hub.Latest(); ok {
		data, err := json.Marshal(snap)
		if err == nil {
			m.set(ctx, data)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			m.forward(ctx, ev)
		}
	}
}

func (m *Mirror) forward(ctx context.Context, ev broadcast.Event) {
	if ev.Type == broadcast.TypePoints {
		m.set(ctx, ev.Data)
	}

	frame, err := ev.Frame()
	if err != nil {
		m.logger.Warn().Err(err).Str("type", ev.Type).Msg("encode frame failed")
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := m.client.Publish(opCtx, m.channel, frame).Err(); err != nil {
		m.logger.Warn().Err(err).Str("channel", m.channel).Msg("redis publish failed")
	}
}

func (m *Mirror) set(ctx context.Context, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := m.client.Set(ctx, m.key, data, 0).Err(); err != nil {
		m.logger.Warn().Err(err).Str("key", m.key).Msg("redis set failed")
	}
}

// Ping checks the Redis connection for readiness probes.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (m *Mirror) Close() error {
	return m.client.Close()
}
