// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrAuthentication      = errors.New("zoneminder: authentication failed")
	ErrUpstreamUnavailable = errors.New("zoneminder: host unreachable or transport failure")
	ErrUpstreamStatus      = errors.New("zoneminder: unexpected HTTP status")
	ErrBadResponse         = errors.New("zoneminder: invalid response format or malformed data")
	ErrRoutingMiss         = errors.New("zoneminder: monitor server unknown")
)

// ZMError wraps a sentinel error with request context.
type ZMError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error, json.SyntaxError)
}

func (e *ZMError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Sentinel, e.Operation)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the nested cause, so errors.Is matches
// ErrAuthentication as well as context.Canceled.
func (e *ZMError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

const maxErrorBody = 256

func snippet(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
