// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/metrics"
	"github.com/rs/zerolog"
)

// Doer issues a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy bounds the 504 retry loop. The zero value retries forever
// without pausing.
type RetryPolicy struct {
	MaxRetries int           // 0 = unlimited
	Delay      time.Duration // pause between attempts
}

// RetryClient re-issues requests answered with 504 Gateway Timeout and hands
// every other response (success or error status) back to the caller.
type RetryClient struct {
	http   Doer
	policy RetryPolicy
	logger zerolog.Logger
}

// NewRetryClient wraps doer with the gateway timeout retry policy.
func NewRetryClient(doer Doer, policy RetryPolicy) *RetryClient {
	return &RetryClient{
		http:   doer,
		policy: policy,
		logger: log.WithComponent("zoneminder.http"),
	}
}

// Do sends req until the response status is not 504. Request bodies are
// replayed through req.GetBody. Cancelling the request context ends the loop.
func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		r := req
		if attempt > 1 {
			r = req.Clone(ctx)
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
		}

		resp, err := c.http.Do(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusGatewayTimeout {
			return resp, nil
		}
		if c.policy.MaxRetries > 0 && attempt > c.policy.MaxRetries {
			c.logger.Warn().
				Str(log.FieldURL, req.URL.Path).
				Int(log.FieldAttempt, attempt).
				Msg("giving up after repeated gateway timeouts")
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		metrics.IncGatewayTimeoutRetry()
		c.logger.Debug().
			Str(log.FieldURL, req.URL.Path).
			Int(log.FieldAttempt, attempt).
			Msg("gateway timeout, retrying")

		if c.policy.Delay > 0 {
			t := time.NewTimer(c.policy.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}
