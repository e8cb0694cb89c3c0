package ekf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter15PredictIntegratesPosition(t *testing.T) {
	f := NewFilter15(DefaultConfig())
	f.x.SetVec(3, 2.0) // vx

	f.Predict(1.0, 0, false)

	require.InDelta(t, 2.0, f.x.AtVec(0), 1e-6) // px advanced by vx*dt
}

func TestFilter15SetOriginIsFixedOnce(t *testing.T) {
	f := NewFilter15(DefaultConfig())
	f.SetOrigin(37.0, -122.0)
	f.SetOrigin(10.0, 10.0) // should be ignored

	require.Equal(t, 37.0, f.originLat)
	require.Equal(t, -122.0, f.originLon)
}

func TestFilter15UpdateGPSPositionMovesTowardFix(t *testing.T) {
	f := NewFilter15(DefaultConfig())
	f.SetOrigin(37.0, -122.0)

	ok := f.UpdateGPSPosition(37.0002, -122.0, nil, 3.0) // ~22 m north, inside the Mahalanobis gate
	require.True(t, ok)
	require.Greater(t, f.x.AtVec(1), 0.0) // north component moved positive
}

func TestFilter15ZUPTZeroesVelocity(t *testing.T) {
	f := NewFilter15(DefaultConfig())
	f.x.SetVec(3, 5.0)
	f.x.SetVec(4, 5.0)

	ok := f.UpdateZUPT()
	require.True(t, ok)
	require.Less(t, math.Abs(f.x.AtVec(3)), 5.0)
}

func TestFilter15RejectsVelocityAboveVMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VMax = 1.0
	cfg.KMahalanobis = 1000 // disable mahalanobis gating to isolate VMax clamp
	f := NewFilter15(cfg)

	ok := f.UpdateGPSVelocity(50.0, 0, true)
	require.False(t, ok)
	require.Equal(t, uint64(1), f.RejectedUpdateCount())
}

func TestFilter15CovarianceSymmetric(t *testing.T) {
	f := NewFilter15(DefaultConfig())
	f.SetOrigin(0, 0)

	f.Predict(0.1, 0, false)
	f.UpdateGPSPosition(0.00001, 0.00001, nil, 3.0)

	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			require.InDelta(t, f.p.At(i, j), f.p.At(j, i), 1e-9)
		}
	}
}
