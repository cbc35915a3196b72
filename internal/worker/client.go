// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

// Caller issues one RPC call and waits for its result.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Client exposes the worker's methods as typed calls.
type Client struct {
	c Caller
}

// NewClient wraps c.
func NewClient(c Caller) *Client {
	return &Client{c: c}
}

// Init initializes the worker and reports whether it is authenticated.
// A result without an authenticated flag counts as unauthenticated.
func (c *Client) Init(ctx context.Context) (bool, error) {
	raw, err := c.c.Call(ctx, protocol.MethodInit, nil)
	if err != nil {
		return false, err
	}
	var res protocol.InitResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &res); err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrInvalidResult, protocol.MethodInit, err)
		}
	}
	return res.Authenticated, nil
}

// SetCookies hands browser cookies to the worker for authenticated scraping.
func (c *Client) SetCookies(ctx context.Context, cookies string) error {
	return c.call(ctx, protocol.MethodSetCookies, protocol.CookieParams{Cookies: cookies}, nil)
}

// GetLiveInfo fetches liveness and engagement counters for a video.
func (c *Client) GetLiveInfo(ctx context.Context, videoID string) (protocol.LiveInfo, error) {
	var info protocol.LiveInfo
	err := c.call(ctx, protocol.MethodGetLiveInfo, protocol.VideoParams{VideoID: videoID}, &info)
	return info, err
}

// GetSubscriberCount returns the public (possibly rounded) subscriber count of a channel.
func (c *Client) GetSubscriberCount(ctx context.Context, channelID string) (int64, error) {
	return c.count(ctx, protocol.MethodGetSubscriberCount, protocol.ChannelParams{ChannelID: channelID})
}

// GetExactSubscriberCount returns the exact count of the authenticated channel.
func (c *Client) GetExactSubscriberCount(ctx context.Context) (int64, error) {
	return c.count(ctx, protocol.MethodGetExactSubscriberCount, nil)
}

// StartLiveChat subscribes the worker to the video's chat; tips arrive as push events afterwards.
func (c *Client) StartLiveChat(ctx context.Context, videoID string) error {
	return c.call(ctx, protocol.MethodStartLiveChat, protocol.VideoParams{VideoID: videoID}, nil)
}

// StopLiveChat ends the chat subscription.
func (c *Client) StopLiveChat(ctx context.Context) error {
	return c.call(ctx, protocol.MethodStopLiveChat, nil, nil)
}

// Shutdown asks the worker to exit on its own.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, protocol.MethodShutdown, nil, nil)
}

func (c *Client) count(ctx context.Context, method string, params any) (int64, error) {
	var res protocol.CountResult
	if err := c.call(ctx, method, params, &res); err != nil {
		return 0, err
	}
	if res.Count == nil {
		return 0, fmt.Errorf("%w: %s: missing count", ErrInvalidResult, method)
	}
	return *res.Count, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	raw, err := c.c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s: empty result", ErrInvalidResult, method)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResult, method, err)
	}
	return nil
}
