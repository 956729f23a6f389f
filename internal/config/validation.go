// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/zmonvif/internal/validate"
)

// Validate checks a normalised configuration and reports every problem.
func Validate(cfg Config) error {
	v := validate.New()

	v.URL("zoneminder.url", cfg.ZoneMinder.URL, []string{"http", "https"})
	v.NotEmpty("zoneminder.username", cfg.ZoneMinder.Username)
	v.NonNegative("zoneminder.gatewayTimeoutRetries", cfg.ZoneMinder.GatewayTimeoutRetries)
	if cfg.ZoneMinder.GatewayTimeoutDelay < 0 {
		v.AddError("zoneminder.gatewayTimeoutDelay", "value cannot be negative", cfg.ZoneMinder.GatewayTimeoutDelay)
	}

	if len(cfg.Cameras) == 0 {
		v.AddError("cameras", "at least one camera is required", nil)
	}
	seen := make(map[int]int, len(cfg.Cameras))
	for i, cam := range cfg.Cameras {
		prefix := fmt.Sprintf("cameras[%d]", i)
		v.Positive(prefix+".id", cam.ID)
		if first, dup := seen[cam.ID]; dup && cam.ID > 0 {
			v.AddError(prefix+".id", fmt.Sprintf("monitor id %d already used by cameras[%d]", cam.ID, first), cam.ID)
		} else {
			seen[cam.ID] = i
		}
		v.NotEmpty(prefix+".address", cam.Address)
		v.Port(prefix+".port", cam.Port)
	}

	v.LogLevel("log.level", cfg.Log.Level)
	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
