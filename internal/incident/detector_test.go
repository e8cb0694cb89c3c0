package incident

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

func TestDetectorTriggersHardBraking(t *testing.T) {
	d := New(DefaultConfig())
	rec := d.AddAccel(types.AccelSample{Timestamp: 10.0, X: -8, Y: 0, Z: 9.8}, 0.9, 1.0)
	require.NotNil(t, rec)
	require.Equal(t, types.EventHardBraking, rec.EventType)
}

func TestDetectorIgnoresBelowThreshold(t *testing.T) {
	d := New(DefaultConfig())
	rec := d.AddAccel(types.AccelSample{Timestamp: 10.0}, 0.3, 0.5)
	require.Nil(t, rec)
}

func TestDetectorAppliesCooldown(t *testing.T) {
	d := New(DefaultConfig())
	rec1 := d.AddAccel(types.AccelSample{Timestamp: 10.0}, 0.9, 1.0)
	require.NotNil(t, rec1)

	rec2 := d.AddAccel(types.AccelSample{Timestamp: 10.1}, 0.95, 1.0)
	require.Nil(t, rec2, "second trigger within cooldown should be suppressed")
}

func TestDetectorSwerveIncludesHeadingDelta(t *testing.T) {
	d := New(DefaultConfig())
	d.AddGyro(types.GyroSample{Timestamp: 0.0, Wz: 0.1})
	d.AddGyro(types.GyroSample{Timestamp: 0.5, Wz: 0.1})
	rec := d.AddGyro(types.GyroSample{Timestamp: 1.0, Wz: 1.5})
	require.NotNil(t, rec)
	require.Equal(t, types.EventSwerve, rec.EventType)
	require.NotEqual(t, 0.0, rec.HeadingDeltaRad)
}

func TestRingBufferEvictsOldest(t *testing.T) {
	r := newRing[int](3)
	r.push(1)
	r.push(2)
	r.push(3)
	r.push(4)
	require.Equal(t, []int{2, 3, 4}, r.snapshot())
}
