package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion-tracker/internal/ekf"
	"github.com/relabs-tech/motion-tracker/internal/incident"
	"github.com/relabs-tech/motion-tracker/internal/kalman"
	"github.com/relabs-tech/motion-tracker/internal/types"
	"github.com/relabs-tech/motion-tracker/internal/zupt"
)

func testParams() Params {
	return Params{
		BusCapacityAccel: 32,
		BusCapacityGyro:  32,
		BusCapacityGPS:   8,
		BusCapacityFused: 32,
		KalmanConfig:     kalman.DefaultConfig6(),
		EKFConfig:        ekf.DefaultConfig(),
		ZUPTConfig:       zupt.DefaultConfig(),
		IncidentConfig:   incident.DefaultConfig(),
		EnableIncidents:  true,
	}
}

func testProfile() types.CalibrationProfile {
	return types.CalibrationProfile{GravityMagnitude: 9.80665, SampleCount: 100}
}

func TestEngineSetsOriginOnFirstGPSFix(t *testing.T) {
	e := New(testProfile(), testParams(), nil, nil, logrus.NewEntry(logrus.New()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { e.Run(ctx); close(done) }()

	fusedSub := e.FusedBus().Subscribe()
	defer fusedSub.Unsubscribe()

	e.GPSBus().Publish(types.GpsFix{Timestamp: 1.0, Latitude: 45.0, Longitude: -122.0})

	select {
	case <-fusedSub.C:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fused reading after GPS fix")
	}

	require.True(t, e.kf15.OriginSet())
	cancel()
	<-done
}

func TestEngineStopsWithinGraceOnCancel(t *testing.T) {
	e := New(testProfile(), testParams(), nil, nil, logrus.NewEntry(logrus.New()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop within grace period")
	}
}

func TestEngineDetectsImpactFromAccelSamples(t *testing.T) {
	params := testParams()
	logger, hook := logtest.NewNullLogger()
	e := New(testProfile(), params, nil, nil, logrus.NewEntry(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { e.Run(ctx); close(done) }()
	require.Eventually(t, func() bool { return e.AccelBus().SubscriberCount() == 1 }, time.Second, time.Millisecond)

	// Gravity-only samples to fill the stationary window first.
	for i := 0; i < 60; i++ {
		e.AccelBus().Publish(types.AccelSample{Timestamp: float64(i) * 0.02, X: 0, Y: 0, Z: 9.80665})
	}

	// A sharp spike well above the impact threshold (1.5g).
	e.AccelBus().Publish(types.AccelSample{Timestamp: 1.22, X: 20, Y: 0, Z: 9.80665})

	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Data["event_type"] == types.EventImpact {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestEngineRecalibrateSwapsProfileAtomically(t *testing.T) {
	e := New(testProfile(), testParams(), nil, nil, logrus.NewEntry(logrus.New()))

	before, ok := e.calibProfile.Load()
	require.True(t, ok)
	require.Equal(t, 100, before.SampleCount)

	e.Recalibrate(types.CalibrationProfile{GravityMagnitude: 9.81, SampleCount: 200})

	after, ok := e.calibProfile.Load()
	require.True(t, ok)
	require.Equal(t, 200, after.SampleCount)
}
