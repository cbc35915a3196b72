// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/ytpoint/internal/points"
)

// Journal backends.
const (
	JournalSQLite = "sqlite"
	JournalBadger = "badger"
	JournalMemory = "memory"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Points    points.RateConfig `yaml:"points"`
	Polling   PollingConfig     `yaml:"polling"`
	Worker    WorkerConfig      `yaml:"worker"`
	Server    ServerConfig      `yaml:"server"`
	Broadcast BroadcastConfig   `yaml:"broadcast"`
	Journal   JournalConfig     `yaml:"journal"`
	Redis     RedisConfig       `yaml:"redis"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
}

// PollingConfig controls the metrics poll.
type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// WorkerConfig describes the scraping worker process.
type WorkerConfig struct {
	Bin         string        `yaml:"bin"`
	Args        []string      `yaml:"args,omitempty"`
	Env         []string      `yaml:"env,omitempty"`
	CallTimeout time.Duration `yaml:"callTimeout"`
	KillGrace   time.Duration `yaml:"killGrace"`
	// Cookies is a Netscape cookie string passed via setCookies. Optional.
	Cookies string `yaml:"cookies,omitempty"`
}

// ServerConfig holds the HTTP listeners.
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// MetricsAddr serves /metrics on a separate listener; empty disables it.
	MetricsAddr    string   `yaml:"metricsAddr,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	// RateLimit is the per-client request budget per minute on control routes.
	RateLimit       int           `yaml:"rateLimit"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// BroadcastConfig tunes the fan-out to remote viewers.
type BroadcastConfig struct {
	Buffer    int           `yaml:"buffer"`
	KeepAlive time.Duration `yaml:"keepAlive"`
}

// JournalConfig selects the tip journal backend.
type JournalConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// RedisConfig enables the Redis mirror when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
	Key      string `yaml:"key,omitempty"`
}

// TelemetryConfig configures OTLP tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "ytpointd",
		Points:     points.DefaultRates(),
		Polling:    PollingConfig{Interval: 5 * time.Second},
		Worker: WorkerConfig{
			Bin:         "ytpoint-worker",
			CallTimeout: 30 * time.Second,
			KillGrace:   3 * time.Second,
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8080",
			RateLimit:       120,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // streams are long-lived
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Broadcast: BroadcastConfig{Buffer: 16, KeepAlive: 15 * time.Second},
		Journal:   JournalConfig{Backend: JournalMemory},
		Redis:     RedisConfig{Channel: "ytpoint:events", Key: "ytpoint:points"},
		Telemetry: TelemetryConfig{Exporter: "grpc", SamplingRate: 1.0},
	}
}
