// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by all spans.
const (
	RPCMethodKey  = "rpc.method"
	RPCIDKey      = "rpc.id"
	RPCOutcomeKey = "rpc.outcome"

	SessionIDKey     = "ytpoint.session.id"
	VideoIDKey       = "ytpoint.video.id"
	ChannelIDKey     = "ytpoint.channel.id"
	AuthenticatedKey = "ytpoint.authenticated"

	ErrorTypeKey = "error.type"
)

// RPCAttributes describes one worker call.
func RPCAttributes(method string, id uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RPCMethodKey, method),
		attribute.Int64(RPCIDKey, int64(id)),
	}
}

// SessionAttributes describes a monitoring session. Empty values are omitted.
func SessionAttributes(sessionID, videoID, channelID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	for _, kv := range []struct{ key, val string }{
		{SessionIDKey, sessionID},
		{VideoIDKey, videoID},
		{ChannelIDKey, channelID},
	} {
		if kv.val != "" {
			attrs = append(attrs, attribute.String(kv.key, kv.val))
		}
	}
	return attrs
}

// ErrorAttributes classifies a failure by its sentinel name.
func ErrorAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, kind)}
}
