// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"sort"
	"time"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// ReplayEvent is one raw sensor sample re-injected from a recorded
// session, tagged with its kind so the replay runner's consumer can
// dispatch it the same way a live producer would.
type ReplayEvent struct {
	Timestamp float64
	Accel     *types.AccelSample
	Gyro      *types.GyroSample
	Gps       *types.GpsFix
}

// Replayer reads a SessionLog and re-injects its raw samples in
// timestamp order, optionally decimating GPS fixes to exercise
// dead-reckoning. Replay output is deterministic given the same
// calibration profile and filter parameters (spec section 4.I;
// testable property in section 8).
type Replayer struct {
	events        []ReplayEvent
	gpsDecimation int
}

// NewReplayer builds a Replayer from log, sorting its readings by
// timestamp and applying gpsDecimation (keep every Nth GPS fix, drop
// the rest; 1 means no decimation).
func NewReplayer(log *types.SessionLog, gpsDecimation int) *Replayer {
	if gpsDecimation < 1 {
		gpsDecimation = 1
	}

	readings := append([]types.FusedReading(nil), log.Readings...)
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].Timestamp < readings[j].Timestamp
	})

	events := make([]ReplayEvent, 0, len(readings))
	gpsSeen := 0
	for _, reading := range readings {
		ev := ReplayEvent{Timestamp: reading.Timestamp}
		if reading.Accel != nil {
			a := *reading.Accel
			ev.Accel = &a
		}
		if reading.Gyro != nil {
			g := *reading.Gyro
			ev.Gyro = &g
		}
		if reading.Gps != nil {
			gpsSeen++
			if (gpsSeen-1)%gpsDecimation == 0 {
				fix := *reading.Gps
				ev.Gps = &fix
			}
		}
		if ev.Accel == nil && ev.Gyro == nil && ev.Gps == nil {
			continue
		}
		events = append(events, ev)
	}

	return &Replayer{events: events, gpsDecimation: gpsDecimation}
}

// EventCount reports how many events will be replayed.
func (r *Replayer) EventCount() int { return len(r.events) }

// Run delivers events on out. When realtime is true, each event is
// delayed to match the spacing of its original timestamps; otherwise
// events are delivered as fast as possible.
func (r *Replayer) Run(ctx context.Context, out chan<- ReplayEvent, realtime bool) error {
	var lastTimestamp float64
	haveLast := false

	for _, ev := range r.events {
		if realtime && haveLast {
			gap := ev.Timestamp - lastTimestamp
			if gap > 0 {
				select {
				case <-time.After(time.Duration(gap * float64(time.Second))):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		lastTimestamp = ev.Timestamp
		haveLast = true

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
