// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"

	"github.com/ManuGH/zmonvif/internal/onvif"
	"github.com/ManuGH/zmonvif/internal/zoneminder"
)

// SessionSource exposes the ZoneMinder session state.
type SessionSource interface {
	Status() zoneminder.SessionStatus
}

// SessionChecker reports the ZoneMinder login state. A failed login makes the
// process unready; an expired token alone does not, since it is renewed on
// the next request.
type SessionChecker struct {
	src SessionSource
}

// NewSessionChecker creates a checker named "zoneminder".
func NewSessionChecker(src SessionSource) *SessionChecker {
	return &SessionChecker{src: src}
}

func (c *SessionChecker) Name() string { return "zoneminder" }

func (c *SessionChecker) Check(_ context.Context) CheckResult {
	st := c.src.Status()
	switch {
	case st.LastError != nil:
		return CheckResult{Status: StatusUnhealthy, Message: "last login failed", Error: st.LastError.Error()}
	case st.LastLogin.IsZero():
		return CheckResult{Status: StatusDegraded, Message: "not logged in yet"}
	case !st.Authenticated:
		return CheckResult{Status: StatusHealthy, Message: "token expired, renewed on next request"}
	default:
		return CheckResult{Status: StatusHealthy, Message: "token valid until " + st.AccessExpires.UTC().Format(time.RFC3339)}
	}
}

// SubscriptionSource exposes a camera subscription state.
type SubscriptionSource interface {
	Status() onvif.SubscriberStatus
}

// SubscriptionChecker reports one camera's event subscription. A lost camera
// only degrades the service; the other cameras keep working.
type SubscriptionChecker struct {
	name string
	src  SubscriptionSource
}

// NewSubscriptionChecker creates a checker named "camera:<label>".
func NewSubscriptionChecker(label string, src SubscriptionSource) *SubscriptionChecker {
	return &SubscriptionChecker{name: "camera:" + label, src: src}
}

func (c *SubscriptionChecker) Name() string { return c.name }

func (c *SubscriptionChecker) Check(_ context.Context) CheckResult {
	st := c.src.Status()
	switch {
	case st.Subscribed:
		return CheckResult{Status: StatusHealthy, Message: "subscribed"}
	case st.LastError != nil:
		return CheckResult{Status: StatusDegraded, Message: "resubscribing", Error: st.LastError.Error()}
	default:
		return CheckResult{Status: StatusDegraded, Message: "connecting"}
	}
}
