package zupt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectorRequiresFullWindow(t *testing.T) {
	d := NewDetector(DefaultConfig())
	for i := 0; i < 10; i++ {
		d.AddAccelMagnitude(0)
	}
	require.False(t, d.Evaluate())
}

func TestDetectorDetectsStationary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 5
	d := NewDetector(cfg)
	for i := 0; i < 5; i++ {
		d.AddAccelMagnitude(0.01)
	}
	d.SetGyroMagnitude(0.01)
	d.SetGPSSpeed(0, true)

	require.True(t, d.Evaluate())
}

func TestDetectorDebouncesExit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 5
	cfg.DebounceSamples = 3
	d := NewDetector(cfg)
	for i := 0; i < 5; i++ {
		d.AddAccelMagnitude(0.01)
	}
	require.True(t, d.Evaluate())

	// Inject motion: variance gate should fail, but exit is debounced.
	d.AddAccelMagnitude(10.0)
	require.True(t, d.Evaluate(), "should still report stationary within debounce window")

	d.AddAccelMagnitude(10.0)
	require.True(t, d.Evaluate(), "still within debounce window")

	d.AddAccelMagnitude(10.0)
	require.False(t, d.Evaluate(), "should exit stationary after debounce window elapses")
}
