// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bridge turns camera motion events into ZoneMinder alarm commands.
package bridge

import (
	"context"
	"regexp"
	"sync"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/metrics"
	"github.com/ManuGH/zmonvif/internal/onvif"
	"github.com/rs/zerolog"
)

var motionTopic = regexp.MustCompile(`RuleEngine/CellMotionDetector/Motion$`)

// Alarmer switches a ZoneMinder monitor alarm. Calls must not block.
type Alarmer interface {
	SetAlarm(monitorID int, on bool) <-chan error
}

// EventSource delivers camera events to handler until ctx ends.
type EventSource interface {
	Run(ctx context.Context, handler func(onvif.Event)) error
}

// Monitor links one camera to one ZoneMinder monitor.
type Monitor struct {
	id     int
	label  string
	alarms Alarmer
	source EventSource
	logger zerolog.Logger

	mu    sync.Mutex
	state MotionState
}

// NewMonitor creates a bridge for monitor id fed by source.
func NewMonitor(id int, label string, alarms Alarmer, source EventSource) *Monitor {
	return &Monitor{
		id:     id,
		label:  label,
		alarms: alarms,
		source: source,
		logger: log.WithComponent("bridge").With().
			Int(log.FieldMonitorID, id).
			Str(log.FieldCamera, label).
			Logger(),
	}
}

// ID returns the ZoneMinder monitor id.
func (m *Monitor) ID() int { return m.id }

// Label returns the camera label.
func (m *Monitor) Label() string { return m.label }

// State returns the stored motion state.
func (m *Monitor) State() MotionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start clears any alarm left over from a previous run. The stored state
// stays Unknown, so the first event is still treated as a transition.
func (m *Monitor) Start() {
	m.logger.Info().Msg("clearing monitor alarm at startup")
	m.alarms.SetAlarm(m.id, false)
}

// Run clears the alarm and follows the camera until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	m.Start()
	return m.source.Run(ctx, m.HandleEvent)
}

// HandleEvent applies one camera event. Motion start sends an on/off pulse,
// motion end sends off, repeated values are ignored.
func (m *Monitor) HandleEvent(ev onvif.Event) {
	matched := motionTopic.MatchString(ev.Topic)
	metrics.RecordEvent(m.label, matched)
	if !matched {
		m.logger.Debug().Str(log.FieldTopic, ev.Topic).Msg("ignoring event")
		return
	}

	raw, _ := ev.DataValue(onvif.MotionItem)
	value, err := ParseMotion(raw)
	if err != nil {
		metrics.IncMotionRejected(m.label)
		m.logger.Warn().Err(err).Str(log.FieldTopic, ev.Topic).Msg("rejecting motion event")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if value == m.state {
		return
	}
	old := m.state
	// The observed value is stored even though a pulse leaves the ZoneMinder
	// alarm off; a following "true" is therefore not a new transition.
	m.state = value

	m.logger.Info().
		Str(log.FieldOldState, old.String()).
		Str(log.FieldNewState, value.String()).
		Msg("motion state changed")
	metrics.RecordMotionTransition(m.label, value.String())

	// Enqueued under the lock so commands keep event order.
	m.alarms.SetAlarm(m.id, value == MotionActive)
	if value == MotionActive {
		m.alarms.SetAlarm(m.id, false)
	}
}
