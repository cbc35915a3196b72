// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/worker"
	"github.com/ManuGH/ytpoint/internal/worker/protocol"
	"github.com/ManuGH/ytpoint/internal/worker/rpc"
)

// fakeWorker answers requests synchronously through a real correlator and
// router, so the controller runs against the same plumbing as production.
type fakeWorker struct {
	router *rpc.Router
	client *worker.Client

	mu            sync.Mutex
	live          protocol.LiveInfo
	subscribers   int64
	authenticated bool
	failMethod    string
	calls         []string
	stops         int

	once sync.Once
	done chan struct{}
	err  error
}

func newFakeWorker(live protocol.LiveInfo, subscribers int64) *fakeWorker {
	f := &fakeWorker{live: live, subscribers: subscribers, done: make(chan struct{})}
	corr := rpc.NewCorrelator(f, 0)
	f.router = rpc.NewRouter(corr)
	f.client = worker.NewClient(corr)
	return f
}

func (f *fakeWorker) Start(context.Context) error { return nil }

func (f *fakeWorker) Stop(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.exit(nil)
	return nil
}

func (f *fakeWorker) Done() <-chan struct{}   { return f.done }
func (f *fakeWorker) Router() *rpc.Router     { return f.router }
func (f *fakeWorker) Client() *worker.Client { return f.client }

func (f *fakeWorker) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// crash simulates the process dying on its own.
func (f *fakeWorker) crash() { f.exit(errors.New("worker: exit status 1")) }

func (f *fakeWorker) exit(err error) {
	f.once.Do(func() {
		f.err = err
		f.router.Correlator().FailAll(rpc.ErrWorkerGone)
		close(f.done)
	})
}

func (f *fakeWorker) set(fn func(f *fakeWorker)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeWorker) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWorker) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// pushTip emits a superchat event as the worker's stdout reader would.
func (f *fakeWorker) pushTip(tip protocol.Tip) {
	data, _ := json.Marshal(tip)
	line := fmt.Sprintf(`{"event":{"type":%q,"data":%s}}`, protocol.KindSuperchat, data)
	f.router.DispatchLine([]byte(line))
}

// WriteLine implements rpc.LineWriter.
func (f *fakeWorker) WriteLine(line []byte) error {
	select {
	case <-f.done:
		return rpc.ErrWorkerGone
	default:
	}
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return err
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.Method)
	fail := f.failMethod == req.Method
	var result any
	switch req.Method {
	case protocol.MethodInit:
		result = protocol.InitResult{Authenticated: f.authenticated}
	case protocol.MethodGetLiveInfo:
		result = f.live
	case protocol.MethodGetSubscriberCount, protocol.MethodGetExactSubscriberCount:
		n := f.subscribers
		result = protocol.CountResult{Count: &n}
	}
	f.mu.Unlock()

	msg := map[string]any{"id": req.ID, "result": result}
	if fail {
		msg = map[string]any{"id": req.ID, "error": "boom"}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	f.router.DispatchLine(b)
	return nil
}
