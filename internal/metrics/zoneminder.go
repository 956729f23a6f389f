// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	zmLoginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zmonvif_zoneminder_login_total",
		Help: "ZoneMinder login attempts by mode and outcome",
	}, []string{"mode", "outcome"}) // mode=refresh|password, outcome=success|failure

	zmGatewayTimeoutRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zmonvif_zoneminder_gateway_timeout_retries_total",
		Help: "Requests re-issued after ZoneMinder answered 504 Gateway Timeout",
	})

	zmQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zmonvif_zoneminder_queue_depth",
		Help: "Units waiting in the ZoneMinder request queue",
	})

	zmTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zmonvif_zoneminder_task_duration_seconds",
		Help:    "Execution time of queued ZoneMinder units including token refresh",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"task", "outcome"})

	zmAlarmCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zmonvif_zoneminder_alarm_commands_total",
		Help: "Alarm commands sent to ZoneMinder by command and outcome",
	}, []string{"command", "outcome"}) // command=on|off

	zmRoutingMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zmonvif_zoneminder_routing_miss_total",
		Help: "Alarm commands routed to the primary API because the monitor's server was unknown",
	})

	zmServersKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zmonvif_zoneminder_servers",
		Help: "Servers in the ZoneMinder server directory (last load)",
	})
)

// RecordLogin counts a ZoneMinder login attempt.
func RecordLogin(mode string, success bool) {
	zmLoginTotal.WithLabelValues(mode, outcome(success)).Inc()
}

// IncGatewayTimeoutRetry counts one 504 retry.
func IncGatewayTimeoutRetry() {
	zmGatewayTimeoutRetries.Inc()
}

// SetQueueDepth publishes the number of pending queue units.
func SetQueueDepth(n int) {
	zmQueueDepth.Set(float64(n))
}

// ObserveTask records the duration of one executed queue unit.
func ObserveTask(task string, seconds float64, success bool) {
	zmTaskDuration.WithLabelValues(task, outcome(success)).Observe(seconds)
}

// RecordAlarmCommand counts an alarm command.
func RecordAlarmCommand(command string, success bool) {
	zmAlarmCommands.WithLabelValues(command, outcome(success)).Inc()
}

// IncRoutingMiss counts an alarm sent through the fallback API base.
func IncRoutingMiss() {
	zmRoutingMiss.Inc()
}

// SetServersKnown publishes the size of the server directory.
func SetServersKnown(n int) {
	zmServersKnown.Set(float64(n))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
