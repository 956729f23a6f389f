// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/zmonvif/internal/bridge"
	"github.com/ManuGH/zmonvif/internal/health"
	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/rs/zerolog"
)

// App owns the runtime lifecycle: one bridge per camera plus the ops server
// managed by Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	deps    Deps
}

// NewApp creates a new App orchestrator.
func NewApp(deps Deps, manager Manager) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if manager == nil {
		return nil, ErrMissingManager
	}
	if deps.Sources == nil {
		deps.Sources = ONVIFSource
	}
	return &App{
		logger:  deps.Logger,
		manager: manager,
		deps:    deps,
	}, nil
}

// Run starts every camera bridge and the ops server, and blocks until ctx is
// cancelled or the ops server fails. Camera failures are logged and never
// stop the process.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.deps.Session != nil {
		a.deps.Health.RegisterChecker(health.NewSessionChecker(a.deps.Session))
	}

	for _, cam := range a.deps.Config.Cameras {
		src := a.deps.Sources(cam)
		a.deps.Health.RegisterChecker(health.NewSubscriptionChecker(cam.Label, src))
		mon := bridge.NewMonitor(cam.ID, cam.Label, a.deps.Alarms, src)

		a.logger.Info().
			Str(log.FieldCamera, cam.Label).
			Int(log.FieldMonitorID, cam.ID).
			Str("address", cam.Address).
			Int("port", cam.Port).
			Msg("starting camera bridge")

		g.Go(func() error {
			if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error().
					Err(err).
					Str(log.FieldEvent, "camera.stopped").
					Str(log.FieldCamera, cam.Label).
					Msg("camera bridge stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
