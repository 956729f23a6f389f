// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	onvifEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zmonvif_onvif_events_total",
		Help: "ONVIF notifications received per camera, split by whether the motion topic matched",
	}, []string{"camera", "matched"})

	onvifSubscriptionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zmonvif_onvif_subscription_errors_total",
		Help: "ONVIF subscription failures per camera and stage",
	}, []string{"camera", "stage"}) // stage=connect|subscribe|pull|renew

	onvifSubscriptionUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zmonvif_onvif_subscription_up",
		Help: "Whether the camera's pull-point subscription is currently active (1) or not (0)",
	}, []string{"camera"})

	motionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zmonvif_motion_transitions_total",
		Help: "Detected motion state transitions per camera",
	}, []string{"camera", "state"}) // state=active|inactive

	motionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zmonvif_motion_rejected_total",
		Help: "Motion events dropped because the value could not be parsed",
	}, []string{"camera"})
)

// RecordEvent counts an ONVIF notification.
func RecordEvent(camera string, matched bool) {
	m := "false"
	if matched {
		m = "true"
	}
	onvifEventsTotal.WithLabelValues(camera, m).Inc()
}

// RecordSubscriptionError counts a failed subscription stage.
func RecordSubscriptionError(camera, stage string) {
	onvifSubscriptionErrors.WithLabelValues(camera, stage).Inc()
}

// SetSubscriptionUp flags the camera subscription as active or not.
func SetSubscriptionUp(camera string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	onvifSubscriptionUp.WithLabelValues(camera).Set(v)
}

// RecordMotionTransition counts a debounced motion transition.
func RecordMotionTransition(camera, state string) {
	motionTransitions.WithLabelValues(camera, state).Inc()
}

// IncMotionRejected counts an unparseable motion value.
func IncMotionRejected(camera string) {
	motionRejected.WithLabelValues(camera).Inc()
}
