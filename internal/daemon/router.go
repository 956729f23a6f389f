// SPDX-License-Identifier: MIT

package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/zmonvif/internal/health"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

const (
	opsRequestLimit = 120
	opsWindow       = time.Minute
)

// NewOpsRouter serves the operational endpoints: /metrics, /healthz and /readyz.
func NewOpsRouter(hm *health.Manager, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.Limit(
		opsRequestLimit,
		opsWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(opsWindow.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	))

	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	return r
}
