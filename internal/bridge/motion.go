// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// MotionState is the last motion value observed for a monitor.
type MotionState int

const (
	MotionUnknown MotionState = iota
	MotionInactive
	MotionActive
)

func (s MotionState) String() string {
	switch s {
	case MotionInactive:
		return "inactive"
	case MotionActive:
		return "active"
	default:
		return "unknown"
	}
}

// ErrInvalidMotion is returned for motion values other than true/false.
var ErrInvalidMotion = errors.New("invalid motion value")

// ParseMotion accepts "true" or "false" in any case, ignoring surrounding whitespace.
func ParseMotion(raw string) (MotionState, error) {
	v := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(v, "true"):
		return MotionActive, nil
	case strings.EqualFold(v, "false"):
		return MotionInactive, nil
	default:
		return MotionUnknown, fmt.Errorf("%w: %q", ErrInvalidMotion, raw)
	}
}
