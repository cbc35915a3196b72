// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package protocol

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// Worker methods.
const (
	MethodInit                    = "init"
	MethodSetCookies              = "setCookies"
	MethodGetLiveInfo             = "getLiveInfo"
	MethodGetSubscriberCount      = "getSubscriberCount"
	MethodGetExactSubscriberCount = "getExactSubscriberCount"
	MethodStartLiveChat           = "startLiveChat"
	MethodStopLiveChat            = "stopLiveChat"
	MethodShutdown                = "shutdown"
)

// KindSuperchat is the push event kind carrying a tip.
const KindSuperchat = "superchat"

// Tip is the payload of a superchat push event.
type Tip struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// DecodeTip unpacks a superchat event. Author and message are NFC-normalized
// so journal entries and overlays compare equal across scrapes.
func DecodeTip(ev *PushEvent) (Tip, error) {
	if ev == nil || ev.Kind != KindSuperchat {
		return Tip{}, fmt.Errorf("%w: not a %s event", ErrDecode, KindSuperchat)
	}
	var t Tip
	if err := json.Unmarshal(ev.Data, &t); err != nil {
		return Tip{}, fmt.Errorf("%w: superchat payload: %v", ErrDecode, err)
	}
	t.Author = norm.NFC.String(strings.TrimSpace(t.Author))
	t.Message = norm.NFC.String(t.Message)
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	return t, nil
}

// LiveInfo is the result of getLiveInfo.
type LiveInfo struct {
	VideoID           string `json:"videoId"`
	Title             string `json:"title"`
	ChannelID         string `json:"channelId"`
	ChannelName       string `json:"channelName"`
	ConcurrentViewers int64  `json:"concurrentViewers"`
	// LikeCount is absent when the platform hides likes; treated as 0.
	LikeCount *int64 `json:"likeCount,omitempty"`
	IsLive    bool   `json:"isLive"`
}

// Likes returns the like count, or 0 if the worker did not report one.
func (l LiveInfo) Likes() int64 {
	if l.LikeCount == nil {
		return 0
	}
	return *l.LikeCount
}

// InitResult is the result of init.
type InitResult struct {
	Authenticated bool `json:"authenticated"`
}

// CountResult is the result of the subscriber count methods.
type CountResult struct {
	Count *int64 `json:"count"`
}

// VideoParams is sent with getLiveInfo and startLiveChat.
type VideoParams struct {
	VideoID string `json:"videoId"`
}

// ChannelParams is sent with getSubscriberCount.
type ChannelParams struct {
	ChannelID string `json:"channelId"`
}

// CookieParams is sent with setCookies.
type CookieParams struct {
	Cookies string `json:"cookies"`
}
