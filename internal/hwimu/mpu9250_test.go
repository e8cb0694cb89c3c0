package hwimu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesTeacherRanges(t *testing.T) {
	cfg := DefaultConfig("/dev/spidev0.0", "GPIO22")
	require.Equal(t, 1, cfg.AccelRange)
	require.Equal(t, 1, cfg.GyroRange)
	require.InDelta(t, 8192.0, accelLSBPerG[cfg.AccelRange], 0.001)
	require.InDelta(t, 65.5, gyroLSBPerDPS[cfg.GyroRange], 0.001)
}

func TestAccelScaleConvertsCountsToGravity(t *testing.T) {
	s := &Sensor{accelScale: gravityMetersPerSecondSq / accelLSBPerG[0]}
	// At +-2g range, 16384 counts is exactly 1g.
	require.InDelta(t, gravityMetersPerSecondSq, float64(16384)*s.accelScale, 1e-9)
}

func TestGyroScaleConvertsCountsToRadians(t *testing.T) {
	s := &Sensor{gyroScale: degreesToRadians / gyroLSBPerDPS[0]}
	// At +-250dps range, 131 counts is exactly 1 deg/s.
	require.InDelta(t, degreesToRadians, float64(131)*s.gyroScale, 1e-9)
}
