// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package incident

import (
	"math"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// Thresholds as named in spec section 4.H.
const (
	gravityMetersPerSecondSq = 9.80665
	hardBrakingThresholdG    = 0.8
	impactThresholdG         = 1.5
	swerveThresholdRadPerSec = 1.047 // 60 deg/s
)

// Config holds the incident-detector tunables.
type Config struct {
	ContextSeconds float64
	SampleRateHz   float64
	CooldownSec    float64
}

// DefaultConfig returns the tuning named in spec section 4.H.
func DefaultConfig() Config {
	return Config{ContextSeconds: 5.0, SampleRateHz: 50.0, CooldownSec: 5.0}
}

// Detector watches incoming samples for hard-braking, impact, and
// swerve events. A record is built at the moment of the trigger, so its
// context holds the buffered samples from up to ContextSeconds before
// the trigger; samples arriving after the trigger are not added to it.
type Detector struct {
	cfg Config

	accel *ring[types.AccelSample]
	gyro  *ring[types.GyroSample]
	gps   *ring[types.GpsFix]

	lastTriggerTimestamp float64
	haveLastTrigger      bool
}

// New constructs a Detector with ring buffers sized for
// 2*ContextSeconds*SampleRateHz.
func New(cfg Config) *Detector {
	bufSize := int(2 * cfg.ContextSeconds * cfg.SampleRateHz)
	return &Detector{
		cfg:   cfg,
		accel: newRing[types.AccelSample](bufSize),
		gyro:  newRing[types.GyroSample](bufSize),
		gps:   newRing[types.GpsFix](bufSize),
	}
}

// AddAccel buffers an accel sample and checks the hard-braking and
// impact thresholds against its magnitude. longitudinalDecel is the
// component along the direction of travel (negative of forward
// acceleration); magnitude is |accel| for the impact check.
func (d *Detector) AddAccel(s types.AccelSample, longitudinalDecelG, magnitudeG float64) *types.IncidentRecord {
	d.accel.push(s)

	if longitudinalDecelG > hardBrakingThresholdG {
		return d.trigger(types.EventHardBraking, longitudinalDecelG, hardBrakingThresholdG, s.Timestamp)
	}
	if magnitudeG > impactThresholdG {
		return d.trigger(types.EventImpact, magnitudeG, impactThresholdG, s.Timestamp)
	}
	return nil
}

// AddGyro buffers a gyro sample and checks the swerve threshold
// against its z-axis angular rate.
func (d *Detector) AddGyro(s types.GyroSample) *types.IncidentRecord {
	d.gyro.push(s)

	if math.Abs(s.Wz) > swerveThresholdRadPerSec {
		return d.trigger(types.EventSwerve, s.Wz, swerveThresholdRadPerSec, s.Timestamp)
	}
	return nil
}

// AddGPS buffers a GPS fix for incident context windows; GPS alone
// never triggers an incident.
func (d *Detector) AddGPS(fix types.GpsFix) {
	d.gps.push(fix)
}

func (d *Detector) trigger(event types.EventType, magnitude, threshold, triggerTimestamp float64) *types.IncidentRecord {
	if d.haveLastTrigger && triggerTimestamp-d.lastTriggerTimestamp < d.cfg.CooldownSec {
		return nil
	}
	d.lastTriggerTimestamp = triggerTimestamp
	d.haveLastTrigger = true

	rec := &types.IncidentRecord{
		EventType:        event,
		Magnitude:        magnitude,
		TriggerTimestamp: triggerTimestamp,
		Threshold:        threshold,
		Accel:            withinWindow(d.accel.snapshot(), triggerTimestamp, d.cfg.ContextSeconds, accelTimestamp),
		Gyro:             withinWindow(d.gyro.snapshot(), triggerTimestamp, d.cfg.ContextSeconds, gyroTimestamp),
		Gps:              withinWindow(d.gps.snapshot(), triggerTimestamp, d.cfg.ContextSeconds, gpsTimestamp),
	}

	if event == types.EventSwerve {
		rec.HeadingDeltaRad = integrateHeadingDelta(rec.Gyro)
	}

	return rec
}

func accelTimestamp(s types.AccelSample) float64 { return s.Timestamp }
func gyroTimestamp(s types.GyroSample) float64   { return s.Timestamp }
func gpsTimestamp(s types.GpsFix) float64        { return s.Timestamp }

func withinWindow[T any](items []T, center, window float64, ts func(T) float64) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if math.Abs(ts(item)-center) <= window {
			out = append(out, item)
		}
	}
	return out
}

// integrateHeadingDelta trapezoidally integrates gyro-z over the
// buffered window, cross-checking the instantaneous swerve trigger
// against the actual rotation that occurred (a supplement to the
// threshold-only check, following the gyroscope-integration approach
// in the rotation-tracking reference this package was modeled on).
func integrateHeadingDelta(samples []types.GyroSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(samples); i++ {
		dt := samples[i].Timestamp - samples[i-1].Timestamp
		if dt <= 0 {
			continue
		}
		total += (samples[i].Wz + samples[i-1].Wz) / 2.0 * dt
	}
	return total
}
