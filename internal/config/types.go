// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultCameraPort    = 80
	DefaultZMTimeout     = 30 * time.Second
	DefaultLogLevel      = "info"
	DefaultOTLPEndpoint  = "localhost:4317"
	DefaultTraceExporter = "grpc"
	DefaultSamplingRate  = 1.0
	maskedValue          = "***"
)

// Config is the fully resolved configuration.
type Config struct {
	ZoneMinder ZoneMinderConfig `yaml:"zoneminder"`
	Cameras    []CameraConfig   `yaml:"cameras"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	Version string `yaml:"-"`
}

// ZoneMinderConfig points at the ZoneMinder web root.
type ZoneMinderConfig struct {
	URL                   string        `yaml:"url"`
	Username              string        `yaml:"username"`
	Password              string        `yaml:"password"`
	Timeout               time.Duration `yaml:"timeout"`
	InsecureTLS           bool          `yaml:"insecureTLS"`
	GatewayTimeoutRetries int           `yaml:"gatewayTimeoutRetries"` // 0 = unlimited
	GatewayTimeoutDelay   time.Duration `yaml:"gatewayTimeoutDelay"`
}

// CameraConfig binds one ONVIF camera to one ZoneMinder monitor.
type CameraConfig struct {
	ID       int    `yaml:"id"`
	Label    string `yaml:"label"`
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig enables the ops HTTP server.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"` // empty = disabled
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc | http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Redacted returns a copy with every password masked.
func (c Config) Redacted() Config {
	out := c
	if out.ZoneMinder.Password != "" {
		out.ZoneMinder.Password = maskedValue
	}
	out.Cameras = make([]CameraConfig, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Password != "" {
			cam.Password = maskedValue
		}
		out.Cameras[i] = cam
	}
	return out
}
