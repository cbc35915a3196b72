// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID    = "session_id"
	FieldRequestID    = "request_id"
	FieldRPCID        = "rpc_id"
	FieldSubscriberID = "subscriber_id"
	FieldVideoID      = "video_id"
	FieldChannelID    = "channel_id"
	FieldTipID        = "tip_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldEventKind = "event_kind"
	FieldPID       = "pid"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Points fields
	FieldTotal  = "total"
	FieldAmount = "amount"
)
