// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(n int) []Entry {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{
			ID:         fmt.Sprintf("e%02d", i),
			SessionID:  "s1",
			TipID:      fmt.Sprintf("tip-%d", i),
			Author:     "author",
			Amount:     int64(100 * (i + 1)),
			Currency:   "JPY",
			Message:    "ありがとう",
			Timestamp:  base.Unix(),
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func exerciseJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	empty, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, e := range entries(5) {
		require.NoError(t, j.Append(ctx, e))
	}

	got, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"e04", "e03", "e02"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, int64(500), got[0].Amount)
	assert.Equal(t, "ありがとう", got[0].Message)
	assert.True(t, got[0].ReceivedAt.Equal(entries(5)[4].ReceivedAt))

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryJournal(t *testing.T) {
	j := NewMemory(0)
	defer func() { _ = j.Close() }()
	exerciseJournal(t, j)
}

func TestMemoryJournalEvictsOldest(t *testing.T) {
	j := NewMemory(3)
	for _, e := range entries(5) {
		require.NoError(t, j.Append(context.Background(), e))
	}
	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e02", got[2].ID)

	require.NoError(t, j.Close())
	assert.ErrorIs(t, j.Append(context.Background(), Entry{}), ErrClosed)
}

func TestSQLiteJournal(t *testing.T) {
	j, err := OpenSQLite(filepath.Join(t.TempDir(), "tips.db"), DefaultSQLiteConfig())
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	require.NoError(t, j.Ping(context.Background()))
	exerciseJournal(t, j)
}

func TestSQLiteJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tips.db")
	j, err := OpenSQLite(path, DefaultSQLiteConfig())
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), entries(1)[0]))
	require.NoError(t, j.Close())

	j, err = OpenSQLite(path, DefaultSQLiteConfig())
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	got, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBadgerJournal(t *testing.T) {
	j, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	exerciseJournal(t, j)
}

func TestOpen(t *testing.T) {
	j, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, j)

	_, err = Open(Config{Backend: BackendSQLite})
	assert.Error(t, err)
	_, err = Open(Config{Backend: "postgres"})
	assert.Error(t, err)

	j, err = Open(Config{Backend: BackendBadger, Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, j.Close())
}
