// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by zmonvif spans.
const (
	TaskKey      = "zoneminder.task"
	MonitorIDKey = "zoneminder.monitor_id"
	CommandKey   = "zoneminder.command"
)

// TaskAttributes describes a queued ZoneMinder request.
func TaskAttributes(task string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(TaskKey, task)}
}

// MonitorAttributes identifies the monitor a request acts on.
func MonitorAttributes(monitorID int, command string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(MonitorIDKey, monitorID)}
	if command != "" {
		attrs = append(attrs, attribute.String(CommandKey, command))
	}
	return attrs
}
