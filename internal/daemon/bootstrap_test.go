// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ytpoint/internal/config"
	"github.com/ManuGH/ytpoint/internal/health"
	"github.com/ManuGH/ytpoint/internal/points"
	"github.com/ManuGH/ytpoint/internal/session"
)

type runningDaemon struct {
	rt     *Runtime
	base   string
	client *http.Client
}

func runDaemon(t *testing.T, cfg config.AppConfig, path string) *runningDaemon {
	t.Helper()
	holder := config.NewHolder(cfg, config.NewLoader(path))
	rt, err := Bootstrap(context.Background(), holder, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.App.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("daemon did not stop")
		}
	})
	require.Eventually(t, func() bool { return rt.Manager.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	return &runningDaemon{
		rt:     rt,
		base:   "http://" + rt.Manager.Addr(),
		client: &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second},
	}
}

func (d *runningDaemon) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, d.base+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Worker.Bin = "ytpoint-worker-not-installed"
	return cfg
}

func TestBootstrapServesControlAPI(t *testing.T) {
	d := runDaemon(t, testConfig(), "")

	status, body := d.do(t, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, status)
	var view session.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, session.StateIdle, view.State)

	status, body = d.do(t, http.MethodPost, "/api/v1/points/manual", `{"amount":4}`)
	require.Equal(t, http.StatusOK, status)
	var snap points.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, int64(4), snap.Points.Total)

	latest, ok := d.rt.Hub.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(4), latest.Points.Manual)

	status, _ = d.do(t, http.MethodDelete, "/api/v1/session", "")
	assert.Equal(t, http.StatusConflict, status)

	status, body = d.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "ytpoint_session_state")
}

func TestBootstrapHealthWithOptionalRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Addr = mr.Addr()
	d := runDaemon(t, cfg, "")

	status, body := d.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, status)
	var ready health.ReadinessResponse
	require.NoError(t, json.Unmarshal(body, &ready))
	assert.True(t, ready.Ready)
	assert.Equal(t, health.StatusHealthy, ready.Checks["redis"].Status)
	// missing worker binary degrades but does not block readiness
	assert.Equal(t, health.StatusDegraded, ready.Checks["worker_binary"].Status)

	d.do(t, http.MethodPost, "/api/v1/points/manual", `{"amount":2}`)
	require.Eventually(t, func() bool {
		v, err := mr.Get("ytpoint:points")
		return err == nil && strings.Contains(v, `"manual":2`)
	}, 2*time.Second, 10*time.Millisecond)

	mr.Close()
	status, body = d.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &ready))
	assert.Equal(t, health.StatusDegraded, ready.Status)
}

func TestBootstrapUnreachableRedisDisablesMirror(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	d := runDaemon(t, cfg, "")

	status, body := d.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), `"redis"`)
}

func TestBootstrapSQLiteJournal(t *testing.T) {
	cfg := testConfig()
	cfg.Journal.Backend = config.JournalSQLite
	cfg.Journal.Path = filepath.Join(t.TempDir(), "tips.db")
	d := runDaemon(t, cfg, "")

	status, body := d.do(t, http.MethodGet, "/api/v1/tips", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"tips":[]}`, string(body))

	status, body = d.do(t, http.MethodGet, "/readyz?verbose=true", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"journal"`)
}

func TestBootstrapRejectsBadJournal(t *testing.T) {
	cfg := testConfig()
	cfg.Journal.Backend = "csv"
	_, err := Bootstrap(context.Background(), config.NewHolder(cfg, config.NewLoader("")), "test")
	require.Error(t, err)
}

func TestReloadAppliesLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := testConfig()
	require.NoError(t, config.Write(path, cfg, false))
	holder := config.NewHolder(cfg, config.NewLoader(path))
	_, err := Bootstrap(context.Background(), holder, "test")
	require.NoError(t, err)

	cfg.LogLevel = "debug"
	require.NoError(t, config.Write(path, cfg, true))
	require.NoError(t, holder.Reload(context.Background()))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestRunRequiresHolder(t *testing.T) {
	require.ErrorIs(t, Run(context.Background(), nil, "test"), ErrNoHolder)
}
