// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// lineSink captures written request lines.
type lineSink struct {
	lines chan protocol.Request
	err   error
}

func newSink() *lineSink { return &lineSink{lines: make(chan protocol.Request, 64)} }

func (s *lineSink) WriteLine(line []byte) error {
	if s.err != nil {
		return s.err
	}
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return err
	}
	s.lines <- req
	return nil
}

func (s *lineSink) next(t *testing.T) protocol.Request {
	t.Helper()
	select {
	case req := <-s.lines:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no request written")
		return protocol.Request{}
	}
}

func respond(r *Router, id uint64, result string) {
	r.DispatchLine([]byte(fmt.Sprintf(`{"id":%d,"result":%s}`, id, result)))
}

func TestCallResolvesResult(t *testing.T) {
	sink := newSink()
	router := NewRouter(NewCorrelator(sink, time.Second))

	done := make(chan struct{})
	var got json.RawMessage
	var err error
	go func() {
		defer close(done)
		got, err = router.Correlator().Call(context.Background(), protocol.MethodInit, nil)
	}()

	req := sink.next(t)
	assert.Equal(t, protocol.MethodInit, req.Method)
	respond(router, req.ID, `{"authenticated":true}`)
	<-done

	require.NoError(t, err)
	assert.JSONEq(t, `{"authenticated":true}`, string(got))
	assert.Equal(t, 0, router.Correlator().Pending())
}

func TestRequestIDsAreUniqueAndIncreasing(t *testing.T) {
	sink := newSink()
	corr := NewCorrelator(sink, 20*time.Millisecond)

	var last uint64
	for i := 0; i < 3; i++ {
		_, err := corr.Call(context.Background(), "ping", nil)
		require.ErrorIs(t, err, ErrTimeout)
		req := sink.next(t)
		require.Greater(t, req.ID, last)
		last = req.ID
	}
}

func TestConcurrentCallsNeverCrossDeliver(t *testing.T) {
	const n = 32
	sink := newSink()
	router := NewRouter(NewCorrelator(sink, 5*time.Second))

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, err := router.Correlator().Call(context.Background(), fmt.Sprintf("m%d", i), nil)
			errs[i] = err
			if err == nil {
				_ = json.Unmarshal(raw, &results[i])
			}
		}(i)
	}

	reqs := make([]protocol.Request, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, sink.next(t))
	}
	// answer in reverse arrival order, echoing the method name
	for i := len(reqs) - 1; i >= 0; i-- {
		respond(router, reqs[i].ID, fmt.Sprintf("%q", reqs[i].Method))
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("m%d", i), results[i])
	}
}

func TestTimeoutRemovesPendingAndIgnoresLateResponse(t *testing.T) {
	sink := newSink()
	router := NewRouter(NewCorrelator(sink, time.Second))
	corr := router.Correlator()

	start := time.Now()
	_, err := corr.CallTimeout(context.Background(), "slow", nil, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 0, corr.Pending())

	req := sink.next(t)
	orphans := testutil.ToFloat64(metrics.RPCOrphanResponsesTotal)
	respond(router, req.ID, "1")
	respond(router, req.ID, "1")
	assert.Equal(t, orphans+2, testutil.ToFloat64(metrics.RPCOrphanResponsesTotal))
}

func TestRemoteError(t *testing.T) {
	sink := newSink()
	router := NewRouter(NewCorrelator(sink, time.Second))

	errCh := make(chan error, 1)
	go func() {
		_, err := router.Correlator().Call(context.Background(), protocol.MethodGetLiveInfo, protocol.VideoParams{VideoID: "x"})
		errCh <- err
	}()
	req := sink.next(t)
	router.DispatchLine([]byte(fmt.Sprintf(`{"id":%d,"error":"video not found"}`, req.ID)))

	err := <-errCh
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, protocol.MethodGetLiveInfo, remote.Method)
	assert.Equal(t, "video not found", remote.Message)
}

func TestFailAllResolvesEveryPendingCall(t *testing.T) {
	const n = 10
	sink := newSink()
	corr := NewCorrelator(sink, time.Minute)

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := corr.Call(context.Background(), "wait", nil)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		sink.next(t)
	}
	require.Eventually(t, func() bool { return corr.Pending() == n }, time.Second, 5*time.Millisecond)

	assert.Equal(t, n, corr.FailAll(nil))
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrWorkerGone)
		case <-time.After(time.Second):
			t.Fatal("pending call not released")
		}
	}

	_, err := corr.Call(context.Background(), "after", nil)
	assert.ErrorIs(t, err, ErrWorkerGone)
}

func TestWriteFailureDropsPending(t *testing.T) {
	sink := newSink()
	sink.err = errors.New("broken pipe")
	corr := NewCorrelator(sink, time.Second)

	_, err := corr.Call(context.Background(), "x", nil)
	require.ErrorContains(t, err, "broken pipe")
	assert.Equal(t, 0, corr.Pending())
}

// stuckWriter blocks every write until released, like a worker that stopped
// reading its stdin.
type stuckWriter struct{ release chan struct{} }

func (w stuckWriter) WriteLine([]byte) error {
	<-w.release
	return errors.New("write on closed pipe")
}

func TestTimeoutCoversBlockedWrite(t *testing.T) {
	w := stuckWriter{release: make(chan struct{})}
	defer close(w.release)
	corr := NewCorrelator(w, 100*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		_, err := corr.Call(context.Background(), "x", nil)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("call blocked past its deadline")
	}
	assert.Equal(t, 0, corr.Pending())
}

func TestContextCancel(t *testing.T) {
	sink := newSink()
	corr := NewCorrelator(sink, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := corr.Call(ctx, "x", nil)
		errCh <- err
	}()
	sink.next(t)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, corr.Pending())
}

func TestNewCorrelatorDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewCorrelator(newSink(), 0).Timeout())
}
