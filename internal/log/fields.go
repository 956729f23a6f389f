// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService       = "service"
	FieldVersion       = "version"
	FieldComponent     = "component"
	FieldCorrelationID = "correlation_id"
	FieldEvent         = "event"

	// Camera / monitor fields
	FieldMonitorID = "monitor_id"
	FieldCamera    = "camera"
	FieldTopic     = "topic"

	// ZoneMinder fields
	FieldServerID = "server_id"
	FieldTask     = "task"
	FieldCommand  = "command"
	FieldAttempt  = "attempt"
	FieldMode     = "mode"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldBaseURL = "base_url"
	FieldURL     = "url"

	// Tracing fields
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"
)
