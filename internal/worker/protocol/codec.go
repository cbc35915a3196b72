// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package protocol implements the newline-delimited JSON framing spoken with
// the worker process over its standard input and output.
//
// Requests carry an id, responses echo it and push events carry none. A line
// is classified by its "event" discriminator first; only lines without one are
// treated as responses.
package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrDecode marks a line that is neither a push event nor a response.
// Callers log and skip such lines; they never abort the stream.
var ErrDecode = errors.New("protocol: undecodable line")

// Request is a single call written to the worker.
type Request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is the worker's reply to a Request with the same ID.
type Response struct {
	ID     uint64
	Result json.RawMessage
	// Err is set when the reply carried an "error" member, even an empty one.
	Err *string
}

// Failed reports whether the worker answered with an error.
func (r *Response) Failed() bool { return r.Err != nil }

// PushEvent is an unsolicited notification from the worker.
type PushEvent struct {
	Kind string
	Data json.RawMessage
}

// Message is the decoded form of one inbound line. Exactly one of Response and
// Event is non-nil.
type Message struct {
	Response *Response
	Event    *PushEvent
}

// wire probe; pointer members distinguish "absent" from zero values.
type inbound struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
	Event  *struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"event"`
}

// Encode serializes req as a single line terminated by '\n'.
func Encode(req Request) ([]byte, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", req.Method, err)
	}
	return append(b, '\n'), nil
}

// Decode classifies one line. Blank lines yield (Message{}, false, nil) so the
// reader can skip them without logging.
func Decode(line []byte) (Message, bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, false, nil
	}

	var in inbound
	if err := json.Unmarshal(line, &in); err != nil {
		return Message{}, false, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if in.Event != nil {
		if in.ID != nil {
			return Message{}, false, fmt.Errorf("%w: event carries an id", ErrDecode)
		}
		if in.Event.Type == "" {
			return Message{}, false, fmt.Errorf("%w: event without type", ErrDecode)
		}
		return Message{Event: &PushEvent{Kind: in.Event.Type, Data: in.Event.Data}}, true, nil
	}

	if in.ID == nil {
		return Message{}, false, fmt.Errorf("%w: neither event nor id", ErrDecode)
	}
	resp := &Response{ID: *in.ID, Err: in.Error}
	if len(in.Result) > 0 && !bytes.Equal(in.Result, []byte("null")) {
		resp.Result = in.Result
	}
	return Message{Response: resp}, true, nil
}
