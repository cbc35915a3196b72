// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

func TestTipQueueFIFO(t *testing.T) {
	q := newTipQueue()
	for i := 0; i < 100; i++ {
		q.push(protocol.Tip{ID: fmt.Sprint(i)})
	}
	for i := 0; i < 100; i++ {
		tip, ok := q.pop(context.Background())
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), tip.ID)
	}
}

func TestTipQueueWakesWaiter(t *testing.T) {
	q := newTipQueue()
	got := make(chan protocol.Tip, 1)
	go func() {
		tip, _ := q.pop(context.Background())
		got <- tip
	}()
	q.push(protocol.Tip{ID: "late"})
	select {
	case tip := <-got:
		assert.Equal(t, "late", tip.ID)
	case <-time.After(time.Second):
		t.Fatal("pop never woke up")
	}
}

func TestTipQueueDrainsAfterCancel(t *testing.T) {
	q := newTipQueue()
	q.push(protocol.Tip{ID: "a"})
	q.push(protocol.Tip{ID: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tip, ok := q.pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", tip.ID)
	tip, ok = q.pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "b", tip.ID)
	_, ok = q.pop(ctx)
	assert.False(t, ok)
}
