package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

func sampleLog() *types.SessionLog {
	return &types.SessionLog{
		Readings: []types.FusedReading{
			{Timestamp: 1.0, Gps: &types.GpsFix{Timestamp: 1.0, Latitude: 1}},
			{Timestamp: 0.5, Accel: &types.AccelSample{Timestamp: 0.5, X: 1}},
			{Timestamp: 2.0, Gps: &types.GpsFix{Timestamp: 2.0, Latitude: 2}},
			{Timestamp: 3.0, Gps: &types.GpsFix{Timestamp: 3.0, Latitude: 3}},
		},
	}
}

func TestReplayerSortsByTimestamp(t *testing.T) {
	r := NewReplayer(sampleLog(), 1)
	require.Equal(t, 4, r.EventCount())

	ctx := context.Background()
	out := make(chan ReplayEvent, 10)
	require.NoError(t, r.Run(ctx, out, false))
	close(out)

	var timestamps []float64
	for ev := range out {
		timestamps = append(timestamps, ev.Timestamp)
	}
	require.Equal(t, []float64{0.5, 1.0, 2.0, 3.0}, timestamps)
}

func TestReplayerDecimatesGPS(t *testing.T) {
	r := NewReplayer(sampleLog(), 2)

	ctx := context.Background()
	out := make(chan ReplayEvent, 10)
	require.NoError(t, r.Run(ctx, out, false))
	close(out)

	gpsCount := 0
	for ev := range out {
		if ev.Gps != nil {
			gpsCount++
		}
	}
	require.Equal(t, 2, gpsCount, "decimation=2 should keep every other GPS fix (1st and 3rd of 3)")
}

func TestReplayerDeterministicAcrossRuns(t *testing.T) {
	log := sampleLog()
	r1 := NewReplayer(log, 1)
	r2 := NewReplayer(log, 1)

	ctx := context.Background()
	out1 := make(chan ReplayEvent, 10)
	out2 := make(chan ReplayEvent, 10)
	require.NoError(t, r1.Run(ctx, out1, false))
	require.NoError(t, r2.Run(ctx, out2, false))
	close(out1)
	close(out2)

	var seq1, seq2 []float64
	for ev := range out1 {
		seq1 = append(seq1, ev.Timestamp)
	}
	for ev := range out2 {
		seq2 = append(seq2, ev.Timestamp)
	}
	require.Equal(t, seq1, seq2)
}
