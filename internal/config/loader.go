// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "YTPOINT_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	// ConsumedEnvKeys records every variable the last Load looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path means ENV and defaults only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envInt64(key string, def int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, def)
}

// Load loads configuration with precedence ENV > File > Defaults and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if cfg.Journal.Path != "" {
		if abs, err := filepath.Abs(cfg.Journal.Path); err == nil {
			cfg.Journal.Path = abs
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes path strictly onto cfg; keys absent from the file keep
// their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return err
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	p := EnvPrefix

	cfg.LogLevel = l.envString(p+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString(p+"LOG_SERVICE", cfg.LogService)

	cfg.Points.Tip = l.envInt64(p+"TIP_RATE", cfg.Points.Tip)
	cfg.Points.Viewer = l.envInt64(p+"VIEWER_RATE", cfg.Points.Viewer)
	cfg.Points.Like = l.envInt64(p+"LIKE_RATE", cfg.Points.Like)
	cfg.Points.Subscriber = l.envInt64(p+"SUBSCRIBER_RATE", cfg.Points.Subscriber)

	cfg.Polling.Interval = l.envDuration(p+"POLL_INTERVAL", cfg.Polling.Interval)

	cfg.Worker.Bin = l.envString(p+"WORKER_BIN", cfg.Worker.Bin)
	cfg.Worker.Args = l.envList(p+"WORKER_ARGS", cfg.Worker.Args)
	cfg.Worker.CallTimeout = l.envDuration(p+"WORKER_CALL_TIMEOUT", cfg.Worker.CallTimeout)
	cfg.Worker.KillGrace = l.envDuration(p+"WORKER_KILL_GRACE", cfg.Worker.KillGrace)
	cfg.Worker.Cookies = l.envString(p+"WORKER_COOKIES", cfg.Worker.Cookies)

	cfg.Server.ListenAddr = l.envString(p+"LISTEN", cfg.Server.ListenAddr)
	cfg.Server.MetricsAddr = l.envString(p+"METRICS_LISTEN", cfg.Server.MetricsAddr)
	cfg.Server.AllowedOrigins = l.envList(p+"ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Server.RateLimit = l.envInt(p+"RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.ShutdownTimeout = l.envDuration(p+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Broadcast.Buffer = l.envInt(p+"BROADCAST_BUFFER", cfg.Broadcast.Buffer)
	cfg.Broadcast.KeepAlive = l.envDuration(p+"KEEPALIVE", cfg.Broadcast.KeepAlive)

	cfg.Journal.Backend = l.envString(p+"JOURNAL_BACKEND", cfg.Journal.Backend)
	cfg.Journal.Path = l.envString(p+"JOURNAL_PATH", cfg.Journal.Path)

	cfg.Redis.Addr = l.envString(p+"REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString(p+"REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt(p+"REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = l.envString(p+"REDIS_CHANNEL", cfg.Redis.Channel)
	cfg.Redis.Key = l.envString(p+"REDIS_KEY", cfg.Redis.Key)

	cfg.Telemetry.Enabled = l.envBool(p+"OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(p+"OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(p+"OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString(p+"OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat(p+"OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
