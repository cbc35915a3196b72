// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

func TestRouterDeliversPushEvents(t *testing.T) {
	router := NewRouter(NewCorrelator(newSink(), time.Second))

	var got []protocol.Tip
	router.Handle(protocol.KindSuperchat, func(ev *protocol.PushEvent) {
		tip, err := protocol.DecodeTip(ev)
		require.NoError(t, err)
		got = append(got, tip)
	})

	router.DispatchLine([]byte(`{"event":{"type":"superchat","data":{"id":"a","author":"x","amount":300,"currency":"USD","message":"hi","timestamp":1}}}`))
	require.Len(t, got, 1)
	assert.Equal(t, int64(300), got[0].Amount)
}

func TestRouterDropsUnhandledKinds(t *testing.T) {
	router := NewRouter(NewCorrelator(newSink(), time.Second))
	before := testutil.ToFloat64(metrics.PushEventsTotal.WithLabelValues("membership", "unhandled"))

	router.DispatchLine([]byte(`{"event":{"type":"membership","data":{}}}`))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PushEventsTotal.WithLabelValues("membership", "unhandled")))
}

func TestRouterSkipsMalformedAndBlankLines(t *testing.T) {
	router := NewRouter(NewCorrelator(newSink(), time.Second))
	before := testutil.ToFloat64(metrics.DecodeErrorsTotal)

	for i := 0; i < 20; i++ {
		router.DispatchLine([]byte("garbage"))
	}
	router.DispatchLine([]byte(""))
	assert.Equal(t, before+20, testutil.ToFloat64(metrics.DecodeErrorsTotal))
}

func TestRouterHandleReplaces(t *testing.T) {
	router := NewRouter(NewCorrelator(newSink(), time.Second))
	calls := 0
	router.Handle("k", func(*protocol.PushEvent) { calls += 10 })
	router.Handle("k", func(*protocol.PushEvent) { calls++ })

	router.Dispatch(protocol.Message{Event: &protocol.PushEvent{Kind: "k"}})
	assert.Equal(t, 1, calls)
}
