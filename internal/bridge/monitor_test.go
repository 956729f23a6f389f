// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ManuGH/zmonvif/internal/onvif"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alarmCall struct {
	Monitor int
	On      bool
}

type recordingAlarmer struct {
	mu    sync.Mutex
	calls []alarmCall
}

func (r *recordingAlarmer) SetAlarm(id int, on bool) <-chan error {
	r.mu.Lock()
	r.calls = append(r.calls, alarmCall{Monitor: id, On: on})
	r.mu.Unlock()
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func (r *recordingAlarmer) Calls() []alarmCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alarmCall(nil), r.calls...)
}

type scriptedSource struct {
	events []onvif.Event
	err    error
}

func (s *scriptedSource) Run(_ context.Context, handler func(onvif.Event)) error {
	for _, ev := range s.events {
		handler(ev)
	}
	return s.err
}

func motion(value string) onvif.Event {
	return onvif.Event{
		Topic: "tns1:RuleEngine/CellMotionDetector/Motion",
		Data:  []onvif.SimpleItem{{Name: onvif.MotionItem, Value: value}},
	}
}

func TestMonitor_DebouncedPulses(t *testing.T) {
	alarms := &recordingAlarmer{}
	m := NewMonitor(1, "front", alarms, nil)

	for _, v := range []string{"true", "true", "false", "false", "true"} {
		m.HandleEvent(motion(v))
	}

	want := []alarmCall{
		{1, true}, {1, false}, // first motion: pulse
		{1, false},            // motion ended
		{1, true}, {1, false}, // motion again: pulse
	}
	if diff := cmp.Diff(want, alarms.Calls()); diff != "" {
		t.Errorf("alarm calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, MotionActive, m.State())
}

func TestMonitor_StateKeepsObservedValueAfterPulse(t *testing.T) {
	alarms := &recordingAlarmer{}
	m := NewMonitor(4, "yard", alarms, nil)

	m.HandleEvent(motion("true"))
	assert.Equal(t, MotionActive, m.State())
	m.HandleEvent(motion("TRUE"))

	assert.Len(t, alarms.Calls(), 2, "repeated true after a pulse sends nothing")
}

func TestMonitor_FirstFalseIsTransition(t *testing.T) {
	alarms := &recordingAlarmer{}
	m := NewMonitor(2, "side", alarms, nil)

	m.HandleEvent(motion("false"))
	assert.Equal(t, []alarmCall{{2, false}}, alarms.Calls())
	assert.Equal(t, MotionInactive, m.State())
}

func TestMonitor_IgnoresOtherTopics(t *testing.T) {
	alarms := &recordingAlarmer{}
	m := NewMonitor(1, "front", alarms, nil)

	for _, topic := range []string{
		"tns1:VideoSource/MotionAlarm",
		"tns1:RuleEngine/CellMotionDetector/Motion/Extra",
		"tns1:RuleEngine/TamperDetector/Tamper",
	} {
		ev := motion("true")
		ev.Topic = topic
		m.HandleEvent(ev)
	}
	assert.Empty(t, alarms.Calls())
	assert.Equal(t, MotionUnknown, m.State())
}

func TestMonitor_RejectsInvalidValues(t *testing.T) {
	alarms := &recordingAlarmer{}
	m := NewMonitor(1, "front", alarms, nil)

	m.HandleEvent(motion("1"))
	m.HandleEvent(motion("yes"))
	m.HandleEvent(onvif.Event{Topic: "tns1:RuleEngine/CellMotionDetector/Motion"})

	assert.Empty(t, alarms.Calls())
	assert.Equal(t, MotionUnknown, m.State())
}

func TestMonitor_RunClearsAlarmFirst(t *testing.T) {
	alarms := &recordingAlarmer{}
	boom := errors.New("source closed")
	src := &scriptedSource{events: []onvif.Event{motion("false")}, err: boom}
	m := NewMonitor(7, "porch", alarms, src)

	err := m.Run(t.Context())
	require.ErrorIs(t, err, boom)

	// The startup clear does not change state, so the first "false" still
	// counts as a transition and sends another off.
	assert.Equal(t, []alarmCall{{7, false}, {7, false}}, alarms.Calls())
}

func TestParseMotion(t *testing.T) {
	tests := []struct {
		in      string
		want    MotionState
		wantErr bool
	}{
		{in: "true", want: MotionActive},
		{in: "False", want: MotionInactive},
		{in: "  TRUE\n", want: MotionActive},
		{in: "", wantErr: true},
		{in: "1", wantErr: true},
		{in: "on", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMotion(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMotion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMotionStateString(t *testing.T) {
	assert.Equal(t, "unknown", MotionUnknown.String())
	assert.Equal(t, "inactive", MotionInactive.String())
	assert.Equal(t, "active", MotionActive.String())
}
