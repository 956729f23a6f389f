// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/rs/zerolog"
)

// Environment overrides.
const (
	EnvZMURL         = "ZMONVIF_ZM_URL"
	EnvZMUsername    = "ZMONVIF_ZM_USERNAME"
	EnvZMPassword    = "ZMONVIF_ZM_PASSWORD"
	EnvZMTimeout     = "ZMONVIF_ZM_TIMEOUT"
	EnvLogLevel      = "ZMONVIF_LOG_LEVEL"
	EnvMetricsAddr   = "ZMONVIF_METRICS_ADDR"
	EnvOTelEnabled   = "ZMONVIF_OTEL_ENABLED"
	EnvOTelEndpoint  = "ZMONVIF_OTEL_ENDPOINT"
	EnvOTelSampling  = "ZMONVIF_OTEL_SAMPLING_RATE"
	EnvZMMaxRetries  = "ZMONVIF_ZM_GATEWAY_TIMEOUT_RETRIES"
	envSourceDefault = "default"
	envSourceEnv     = "environment"
)

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

// lookup returns the raw value of key when it is set and non-empty.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().Str("key", key).Str("source", envSourceDefault).Msg("using default value")
		return "", false
	}
	return v, true
}

func logEnv(logger zerolog.Logger, key, value string) {
	evt := logger.Debug().Str("key", key).Str("source", envSourceEnv)
	if isSensitiveKey(key) {
		evt = evt.Bool("sensitive", true)
	} else {
		evt = evt.Str("value", value)
	}
	evt.Msg("using environment variable")
}

func logInvalid(logger zerolog.Logger, key, value, kind string) {
	logger.Warn().
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads key or returns defaultValue. Sensitive values are never logged.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	logEnv(logger, key, v)
	return v
}

// ParseInt reads an integer from key, falling back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logInvalid(logger, key, v, "integer")
		return defaultValue
	}
	logEnv(logger, key, v)
	return i
}

// ParseDuration reads a Go duration ("5s") from key.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logInvalid(logger, key, v, "duration")
		return defaultValue
	}
	logEnv(logger, key, v)
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		logEnv(logger, key, v)
		return true
	case "false", "0", "no":
		logEnv(logger, key, v)
		return false
	default:
		logInvalid(logger, key, v, "boolean")
		return defaultValue
	}
}

// ParseFloat reads a float64 from key.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logInvalid(logger, key, v, "float")
		return defaultValue
	}
	logEnv(logger, key, v)
	return f
}
