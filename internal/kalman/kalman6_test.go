package kalman

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter6PredictIntegratesPosition(t *testing.T) {
	f := NewFilter6(DefaultConfig6())
	f.x.SetVec(idxVX, 2.0)
	f.x.SetVec(idxVY, 1.0)

	f.Predict(1.0)

	require.InDelta(t, 2.0, f.x.AtVec(idxPX), 1e-9)
	require.InDelta(t, 1.0, f.x.AtVec(idxPY), 1e-9)
}

func TestFilter6PredictSkipsNonPositiveDt(t *testing.T) {
	f := NewFilter6(DefaultConfig6())
	f.x.SetVec(idxVX, 2.0)

	f.Predict(0)
	f.Predict(-1)

	require.Equal(t, 0.0, f.x.AtVec(idxPX))
}

func TestFilter6UpdateGPSPullsStateTowardMeasurement(t *testing.T) {
	f := NewFilter6(DefaultConfig6())
	acc := 2.0

	ok := f.UpdateGPS(10.0, 5.0, &acc)
	require.True(t, ok)
	require.InDelta(t, 10.0, f.x.AtVec(idxPX), 1.0)
	require.InDelta(t, 5.0, f.x.AtVec(idxPY), 1.0)
}

func TestFilter6RejectsOutlierUpdate(t *testing.T) {
	f := NewFilter6(DefaultConfig6())
	acc := 1.0

	require.True(t, f.UpdateGPS(0, 0, &acc))
	require.True(t, f.UpdateGPS(0.1, 0.1, &acc))
	require.True(t, f.UpdateGPS(0.05, 0.05, &acc))

	ok := f.UpdateGPS(10000.0, 10000.0, &acc)
	require.False(t, ok)
	require.Equal(t, uint64(1), f.RejectedUpdateCount())
}

func TestCovarianceStaysSymmetricPositiveSemiDefinite(t *testing.T) {
	f := NewFilter6(DefaultConfig6())
	acc := 3.0

	f.Predict(0.1)
	f.UpdateGPS(1, 1, &acc)
	f.Predict(0.1)
	f.UpdateGPS(2, 2, &acc)

	n, _ := f.p.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			require.InDelta(t, f.p.At(i, j), f.p.At(j, i), 1e-9, "P not symmetric at (%d,%d)", i, j)
		}
		require.GreaterOrEqual(t, f.p.At(i, i), 0.0, "negative variance on diagonal %d", i)
	}
}
