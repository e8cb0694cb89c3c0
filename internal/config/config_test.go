// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
}

func TestLoadLayersOverDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker_config.txt")
	contents := "SESSION_DIR=/tmp/sessions\nGPS_MODE=stream\nGPS_SERIAL_PORT=/dev/ttyUSB0\nGPS_BAUD_RATE=115200\n# a comment\n\nENABLE_GYRO=false\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/sessions", cfg.SessionDir)
	require.Equal(t, "stream", cfg.GPSMode)
	require.Equal(t, "/dev/ttyUSB0", cfg.GPSSerialPort)
	require.Equal(t, 115200, cfg.GPSBaudRate)
	require.False(t, cfg.EnableGyro)
	// Unrelated defaults survive untouched.
	require.Equal(t, 3.0, cfg.CalibrationDurationSeconds)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("NOT_A_REAL_KEY=1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidGPSMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("GPS_MODE=carrier-pigeon\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsZeroGPSDecimation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("GPS_DECIMATION=0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestGetReturnsWhatWasSet(t *testing.T) {
	cfg := Default()
	cfg.SessionDir = "./custom"
	SetGlobal(cfg)

	require.Equal(t, "./custom", Get().SessionDir)
}
