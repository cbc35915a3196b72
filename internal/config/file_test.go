// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := ValidateFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("written default differs (-want +got):\n%s", diff)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path, false))
	require.ErrorIs(t, WriteDefault(path, false), ErrExists)
	require.NoError(t, WriteDefault(path, true))
}

func TestHolderReloadKeepsOldOnInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path, false))
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	var seen []int64
	h.OnReload(func(c AppConfig) { seen = append(seen, c.Points.Tip) })

	cfg := Default()
	cfg.Points.Tip = 7
	require.NoError(t, Write(path, cfg, true))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, int64(7), h.Get().Points.Tip)

	require.NoError(t, os.WriteFile(path, []byte("points:\n  tipRate: -1\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, int64(7), h.Get().Points.Tip)
	assert.Equal(t, []int64{7}, seen)
}

func TestHolderWatchReloadsOnReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path, false))
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	reloaded := make(chan AppConfig, 4)
	h.OnReload(func(c AppConfig) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.Polling.Interval = 42 * time.Second
	require.NoError(t, Write(path, cfg, true))

	select {
	case got := <-reloaded:
		assert.Equal(t, 42*time.Second, got.Polling.Interval)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
}

func TestHolderWatchWithoutFile(t *testing.T) {
	h := NewHolder(Default(), NewLoader(""))
	require.NoError(t, h.Watch(context.Background()))
}
