// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/zmonvif/internal/health"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name   string
	result health.CheckResult
}

func (c staticChecker) Name() string                             { return c.name }
func (c staticChecker) Check(context.Context) health.CheckResult { return c.result }

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestOpsRouter_Endpoints(t *testing.T) {
	hm := health.NewManager("v1.2.3")
	hm.RegisterChecker(staticChecker{name: "zoneminder", result: health.CheckResult{Status: health.StatusHealthy}})
	r := NewOpsRouter(hm, promhttp.Handler())

	rec := serve(t, r, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var hr health.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hr))
	assert.Equal(t, "v1.2.3", hr.Version)
	assert.Equal(t, health.StatusHealthy, hr.Status)

	rec = serve(t, r, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")

	rec = serve(t, r, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpsRouter_ReadyzUnavailable(t *testing.T) {
	hm := health.NewManager("test")
	hm.RegisterChecker(staticChecker{name: "zoneminder", result: health.CheckResult{Status: health.StatusUnhealthy}})
	r := NewOpsRouter(hm, promhttp.Handler())

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, r, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(t, r, "/healthz").Code)
}

func TestOpsRouter_RateLimited(t *testing.T) {
	r := NewOpsRouter(health.NewManager("test"), promhttp.Handler())

	for i := 0; i < opsRequestLimit; i++ {
		require.Equal(t, http.StatusOK, serve(t, r, "/healthz").Code, "request %d", i)
	}
	rec := serve(t, r, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
