// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDoer struct {
	statuses []int
	bodies   []string
	calls    int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		d.bodies = append(d.bodies, string(b))
	}
	status := http.StatusOK
	if d.calls < len(d.statuses) {
		status = d.statuses[d.calls]
	}
	d.calls++
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestRetryClient_ReplaysBody(t *testing.T) {
	doer := &scriptedDoer{statuses: []int{504, 504, 200}}
	rc := NewRetryClient(doer, RetryPolicy{})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "http://zm.local/zm/api/host/login.json", strings.NewReader("username=u&password=p"))
	require.NoError(t, err)

	resp, err := rc.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, doer.calls)
	assert.Equal(t, []string{"username=u&password=p", "username=u&password=p", "username=u&password=p"}, doer.bodies)
}

func TestRetryClient_OtherStatusesNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusUnauthorized} {
		doer := &scriptedDoer{statuses: []int{status}}
		rc := NewRetryClient(doer, RetryPolicy{})
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://zm.local/zm/api/servers.json", nil)
		require.NoError(t, err)

		resp, err := rc.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, 1, doer.calls, "status %d must not be retried", status)
	}
}

func TestRetryClient_CancelDuringDelay(t *testing.T) {
	doer := &scriptedDoer{statuses: []int{504, 504, 504, 504}}
	rc := NewRetryClient(doer, RetryPolicy{Delay: time.Hour})

	ctx, cancel := context.WithCancel(t.Context())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://zm.local/zm/api/servers.json", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = rc.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, doer.calls)
}
