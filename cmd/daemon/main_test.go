// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/zmonvif/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
zoneminder:
  url: https://zm.example.com/zm
  username: admin
  password: zm-secret
cameras:
  - id: 3
    label: Porch
    address: 192.0.2.20
    username: cam
    password: cam-secret
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestValidateCmd_PrintsRedactedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	out, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)

	assert.Contains(t, out, "# config OK: 1 camera(s)")
	assert.Contains(t, out, "url: https://zm.example.com/zm/")
	assert.Contains(t, out, "label: Porch")
	assert.Contains(t, out, "port: 80")
	assert.NotContains(t, out, "zm-secret")
	assert.NotContains(t, out, "cam-secret")
}

func TestValidateCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zoneminder:\n  url: ftp://zm\n  bogus: 1\n"), 0o600))

	_, err := execute(t, "validate", "--config", path)
	assert.Error(t, err)
}

func TestRootCmd_RequiresConfig(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"config" not set`)
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}
