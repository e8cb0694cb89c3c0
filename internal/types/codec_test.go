package types

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSessionLogRoundTrip(t *testing.T) {
	accuracy := 3.5
	original := &SessionLog{
		Readings: []FusedReading{
			{
				Timestamp: 0.0,
				Accel:     &AccelSample{Timestamp: 0, X: 0.1, Y: 0.2, Z: 9.8},
				Gps:       &GpsFix{Timestamp: 0, Latitude: 37.1, Longitude: -122.2, Accuracy: &accuracy},
			},
			{
				Timestamp: 1.0,
				Gyro:      &GyroSample{Timestamp: 1.0, Wx: 0.01, Wy: 0, Wz: -0.02},
			},
		},
		Trajectories: []TrajectoryPoint{
			{Timestamp: 0, X: 0, Y: 0, Source: "gps"},
		},
		Metadata: SessionMetadata{
			Version:      SchemaVersion,
			Source:       "live",
			AccelSamples: 1,
			GpsFixes:     1,
			SchemaTag:    "experimental_15d",
		},
	}

	path := filepath.Join(t.TempDir(), "session.json.gz")
	require.NoError(t, WriteSessionLog(path, original))

	got, err := ReadSessionLog(path)
	require.NoError(t, err)

	if diff := cmp.Diff(original, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
