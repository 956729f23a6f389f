// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader resolves a Config from a file and the environment.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for configPath. An empty path loads defaults
// and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load applies defaults, the file, then the environment, normalises and validates.
func (l *Loader) Load() (Config, error) {
	cfg := defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	normalize(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		ZoneMinder: ZoneMinderConfig{Timeout: DefaultZMTimeout},
		Log:        LogConfig{Level: DefaultLogLevel},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultTraceExporter,
			Endpoint:     DefaultOTLPEndpoint,
			SamplingRate: DefaultSamplingRate,
		},
	}
}

// loadFile decodes path over cfg. Unknown fields are fatal.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) mergeEnv(cfg *Config) {
	cfg.ZoneMinder.URL = l.envString(EnvZMURL, cfg.ZoneMinder.URL)
	cfg.ZoneMinder.Username = l.envString(EnvZMUsername, cfg.ZoneMinder.Username)
	cfg.ZoneMinder.Password = l.envString(EnvZMPassword, cfg.ZoneMinder.Password)

	l.ConsumedEnvKeys[EnvZMTimeout] = struct{}{}
	cfg.ZoneMinder.Timeout = ParseDuration(EnvZMTimeout, cfg.ZoneMinder.Timeout)
	l.ConsumedEnvKeys[EnvZMMaxRetries] = struct{}{}
	cfg.ZoneMinder.GatewayTimeoutRetries = ParseInt(EnvZMMaxRetries, cfg.ZoneMinder.GatewayTimeoutRetries)

	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Metrics.ListenAddr = l.envString(EnvMetricsAddr, cfg.Metrics.ListenAddr)

	l.ConsumedEnvKeys[EnvOTelEnabled] = struct{}{}
	cfg.Telemetry.Enabled = ParseBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = l.envString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	l.ConsumedEnvKeys[EnvOTelSampling] = struct{}{}
	cfg.Telemetry.SamplingRate = ParseFloat(EnvOTelSampling, cfg.Telemetry.SamplingRate)
}

func normalize(cfg *Config) {
	zm := &cfg.ZoneMinder
	zm.URL = strings.TrimSpace(zm.URL)
	if zm.URL != "" && !strings.HasSuffix(zm.URL, "/") {
		zm.URL += "/"
	}
	if zm.Timeout <= 0 {
		zm.Timeout = DefaultZMTimeout
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	for i := range cfg.Cameras {
		cam := &cfg.Cameras[i]
		cam.Address = strings.TrimSpace(cam.Address)
		if cam.Port == 0 {
			cam.Port = DefaultCameraPort
		}
		if cam.Label == "" {
			cam.Label = cam.Address
		}
	}
}
