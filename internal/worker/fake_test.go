// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

// handlerFunc answers one request. reply=false leaves the call unanswered.
type handlerFunc func(req protocol.Request) (result any, errMsg string, reply bool)

// fakeWorker speaks the worker protocol over in-process pipes.
type fakeWorker struct {
	handle handlerFunc
	// ignoreShutdown makes the fake treat shutdown like any other request.
	ignoreShutdown bool
	// deaf leaves stdin unread so every request write blocks.
	deaf bool

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	wmu     sync.Mutex
	methods chan string

	once sync.Once
	done chan struct{}
	err  error
}

func newFakeWorker(handle handlerFunc) *fakeWorker {
	f := &fakeWorker{
		handle:  handle,
		methods: make(chan string, 128),
		done:    make(chan struct{}),
	}
	f.stdinR, f.stdinW = io.Pipe()
	f.stdoutR, f.stdoutW = io.Pipe()
	f.stderrR, f.stderrW = io.Pipe()
	return f
}

// newPipeSupervisor returns a supervisor whose spawn attaches to a fake worker.
func newPipeSupervisor(t *testing.T, cfg Config, handle handlerFunc) (*Supervisor, *fakeWorker) {
	t.Helper()
	f := newFakeWorker(handle)
	s := NewSupervisor(cfg)
	s.spawn = func(context.Context) (*process, error) {
		go f.serve()
		return &process{
			pid:    4242,
			stdin:  f.stdinW,
			stdout: f.stdoutR,
			stderr: f.stderrR,
			wait: func() error {
				<-f.done
				return f.err
			},
			terminate: func(exited <-chan struct{}) error {
				f.exit(errors.New("signal: killed"))
				<-exited
				return nil
			},
		}, nil
	}
	return s, f
}

func (f *fakeWorker) serve() {
	if f.deaf {
		<-f.done
		return
	}
	br := bufio.NewReader(f.stdinR)
	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			f.exit(nil)
			return
		}
		var req protocol.Request
		if json.Unmarshal(line, &req) != nil {
			continue
		}
		select {
		case f.methods <- req.Method:
		default:
		}
		if req.Method == protocol.MethodShutdown && !f.ignoreShutdown {
			f.reply(req.ID, nil, "")
			f.exit(nil)
			return
		}
		if f.handle == nil {
			continue
		}
		if res, errMsg, ok := f.handle(req); ok {
			f.reply(req.ID, res, errMsg)
		}
	}
}

func (f *fakeWorker) reply(id uint64, result any, errMsg string) {
	msg := map[string]any{"id": id, "result": result}
	if errMsg != "" {
		msg = map[string]any{"id": id, "error": errMsg}
	}
	b, _ := json.Marshal(msg)
	f.writeStdout(string(b))
}

func (f *fakeWorker) writeStdout(line string) {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	_, _ = fmt.Fprintln(f.stdoutW, line)
}

func (f *fakeWorker) writeStderr(line string) {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	_, _ = fmt.Fprintln(f.stderrW, line)
}

// exit simulates process death: output closes and stdin stops accepting writes.
func (f *fakeWorker) exit(err error) {
	f.once.Do(func() {
		f.err = err
		_ = f.stdinR.CloseWithError(io.ErrClosedPipe)
		f.wmu.Lock()
		_ = f.stdoutW.Close()
		_ = f.stderrW.Close()
		f.wmu.Unlock()
		close(f.done)
	})
}

func (f *fakeWorker) seen(t *testing.T, within time.Duration) []string {
	t.Helper()
	var out []string
	deadline := time.After(within)
	for {
		select {
		case m := <-f.methods:
			out = append(out, m)
		case <-deadline:
			return out
		}
	}
}
