// SPDX-License-Identifier: MIT

package daemon

import (
	"github.com/ManuGH/zmonvif/internal/bridge"
	"github.com/ManuGH/zmonvif/internal/config"
	"github.com/ManuGH/zmonvif/internal/health"
	"github.com/ManuGH/zmonvif/internal/onvif"
	"github.com/rs/zerolog"
)

// CameraSource is a camera event stream that also reports its subscription state.
type CameraSource interface {
	bridge.EventSource
	health.SubscriptionSource
}

// SourceFactory builds the event source for one configured camera.
type SourceFactory func(cam config.CameraConfig) CameraSource

// Deps contains dependencies required by the daemon.
// This allows for clean dependency injection and easier testing.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config is the resolved configuration
	Config config.Config

	// Alarms receives the alarm commands (the ZoneMinder client)
	Alarms bridge.Alarmer

	// Session reports the ZoneMinder login state for readiness
	Session health.SessionSource

	// Health aggregates component checks for /healthz and /readyz
	Health *health.Manager

	// Sources builds camera event sources (defaults to ONVIF PullPoint subscribers)
	Sources SourceFactory
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Alarms == nil {
		return ErrMissingAlarms
	}
	if d.Health == nil {
		return ErrMissingHealth
	}
	// Config validation is done by config.Loader
	return nil
}

// ONVIFSource builds a PullPoint subscriber for cam.
func ONVIFSource(cam config.CameraConfig) CameraSource {
	device := onvif.NewCamera(onvif.Options{
		Address:  cam.Address,
		Port:     cam.Port,
		Username: cam.Username,
		Password: cam.Password,
	})
	return onvif.NewSubscriber(device, onvif.SubscriberConfig{Name: cam.Label})
}
