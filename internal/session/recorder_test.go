package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

func TestRecorderFlushesOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json.gz")
	log := logrus.NewEntry(logrus.New())

	r := NewRecorder(path, time.Hour, types.SessionMetadata{Source: "live"}, log)
	r.AddReading(types.FusedReading{Timestamp: 1.0, Accel: &types.AccelSample{Timestamp: 1.0}})
	r.AddTrajectoryPoint(types.TrajectoryPoint{Timestamp: 1.0, X: 1, Y: 2, Source: "ekf15"})

	go r.Run()
	r.Stop()

	got, err := types.ReadSessionLog(path)
	require.NoError(t, err)
	require.Len(t, got.Readings, 1)
	require.Len(t, got.Trajectories, 1)
	require.Equal(t, 1, got.Metadata.AccelSamples)
	require.Equal(t, types.SchemaVersion, got.Metadata.Version)
}
