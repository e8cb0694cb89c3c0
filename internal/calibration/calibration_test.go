package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

func TestWindowFinishComputesBiasAndGravity(t *testing.T) {
	w := NewWindow(5, 0.5)
	for i := 0; i < 10; i++ {
		w.AddAccel(types.AccelSample{X: 0.1, Y: -0.2, Z: 9.8})
		w.AddGyro(types.GyroSample{Wx: 0.01, Wy: 0, Wz: -0.01})
	}

	profile, err := w.Finish()
	require.NoError(t, err)
	require.InDelta(t, 0.1, profile.AccelBiasX, 1e-9)
	require.InDelta(t, -0.2, profile.AccelBiasY, 1e-9)
	require.InDelta(t, 9.8, profile.AccelBiasZ, 1e-9)
	require.InDelta(t, 9.8, profile.GravityMagnitude, 0.05)
	require.Equal(t, 10, profile.SampleCount)
	require.InDelta(t, 0.0, profile.Variance, 1e-9)
}

func TestWindowFinishFailsOnInsufficientSamples(t *testing.T) {
	w := NewWindow(5, 0.5)
	w.AddAccel(types.AccelSample{X: 0, Y: 0, Z: 9.8})

	_, err := w.Finish()
	var insufficient *ErrInsufficientSamples
	require.ErrorAs(t, err, &insufficient)
}

func TestWindowFinishFailsOnExcessiveVariance(t *testing.T) {
	w := NewWindow(3, 0.01)
	w.AddAccel(types.AccelSample{X: 0, Y: 0, Z: 9.8})
	w.AddAccel(types.AccelSample{X: 5, Y: 0, Z: 9.8})
	w.AddAccel(types.AccelSample{X: -5, Y: 0, Z: 9.8})

	_, err := w.Finish()
	var excessive *ErrExcessiveVariance
	require.ErrorAs(t, err, &excessive)
}
