// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ytpoint/internal/worker/protocol"
	"github.com/ManuGH/ytpoint/internal/worker/rpc"
)

type stubCaller struct {
	results map[string]string
	errs    map[string]error
	params  map[string]any
}

func (s *stubCaller) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	if s.params == nil {
		s.params = map[string]any{}
	}
	s.params[method] = params
	if err := s.errs[method]; err != nil {
		return nil, err
	}
	if r, ok := s.results[method]; ok {
		return json.RawMessage(r), nil
	}
	return nil, nil
}

func TestClientInit(t *testing.T) {
	c := NewClient(&stubCaller{results: map[string]string{protocol.MethodInit: `{"authenticated":true}`}})
	auth, err := c.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, auth)

	auth, err = NewClient(&stubCaller{}).Init(context.Background())
	require.NoError(t, err)
	assert.False(t, auth, "null result means unauthenticated")
}

func TestClientSubscriberCounts(t *testing.T) {
	stub := &stubCaller{results: map[string]string{
		protocol.MethodGetSubscriberCount:      `{"count":1000}`,
		protocol.MethodGetExactSubscriberCount: `{"count":1003}`,
	}}
	c := NewClient(stub)

	n, err := c.GetSubscriberCount(context.Background(), "UC123")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.Equal(t, protocol.ChannelParams{ChannelID: "UC123"}, stub.params[protocol.MethodGetSubscriberCount])

	n, err = c.GetExactSubscriberCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1003), n)
}

func TestClientRejectsMalformedCount(t *testing.T) {
	c := NewClient(&stubCaller{results: map[string]string{protocol.MethodGetSubscriberCount: `{"subs":5}`}})
	_, err := c.GetSubscriberCount(context.Background(), "UC1")
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = NewClient(&stubCaller{}).GetLiveInfo(context.Background(), "v")
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestClientPropagatesCallErrors(t *testing.T) {
	remote := &rpc.RemoteError{Method: protocol.MethodStartLiveChat, Message: "chat disabled"}
	c := NewClient(&stubCaller{errs: map[string]error{protocol.MethodStartLiveChat: remote}})

	err := c.StartLiveChat(context.Background(), "v")
	var got *rpc.RemoteError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "chat disabled", got.Message)
}

func TestClientSetCookiesParams(t *testing.T) {
	stub := &stubCaller{}
	require.NoError(t, NewClient(stub).SetCookies(context.Background(), "SID=1"))
	assert.Equal(t, protocol.CookieParams{Cookies: "SID=1"}, stub.params[protocol.MethodSetCookies])
}
