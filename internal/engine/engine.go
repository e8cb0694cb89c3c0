// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package engine connects the sample buses to the filters and detectors
// (kalman, ekf, zupt, incident) and to the session recorder and
// telemetry publisher. Producers (sensorcli, gpssource) publish into its
// buses; calibration runs before New. A single goroutine, Run, drives
// both filters, the ZUPT detector and the incident detector in turn;
// they do not run as separate workers. Run returns as soon as its
// context is canceled.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/bus"
	"github.com/relabs-tech/motion-tracker/internal/ekf"
	"github.com/relabs-tech/motion-tracker/internal/incident"
	"github.com/relabs-tech/motion-tracker/internal/kalman"
	"github.com/relabs-tech/motion-tracker/internal/session"
	"github.com/relabs-tech/motion-tracker/internal/telemetry"
	"github.com/relabs-tech/motion-tracker/internal/types"
	"github.com/relabs-tech/motion-tracker/internal/zupt"
)

// kf6AccelSigma is the assumed measurement noise, in m/s^2, on the
// world-frame horizontal acceleration fed to Filter6 — the calibrated
// body-frame reading rotated by the ES-EKF's heading estimate.
const kf6AccelSigma = 0.5

// Engine owns the live worker set and the buses connecting them.
type Engine struct {
	log *logrus.Entry

	accelBus *bus.Bus[types.AccelSample]
	gyroBus  *bus.Bus[types.GyroSample]
	gpsBus   *bus.Bus[types.GpsFix]
	fusedBus *bus.Bus[types.FusedReading]

	calibProfile atomicProfile

	kf6  *kalman.Filter6
	kf15 *ekf.Filter15
	zd   *zupt.Detector
	inc  *incident.Detector

	recorder  *session.Recorder
	publisher *telemetry.Publisher

	lastAccelTimestamp float64
	lastGyroTimestamp  float64
	lastGPSTimestamp   float64
	lastKF6Timestamp   float64
}

// atomicProfile holds an immutable CalibrationProfile behind a mutex,
// swapped wholesale on re-calibration (spec section 5: "writers
// publish a new immutable instance").
type atomicProfile struct {
	mu      sync.RWMutex
	profile types.CalibrationProfile
	set     bool
}

func (a *atomicProfile) Store(p types.CalibrationProfile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile = p
	a.set = true
}

func (a *atomicProfile) Load() (types.CalibrationProfile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profile, a.set
}

// Params bundles the configuration Engine needs beyond internal
// defaults, kept separate from internal/config.Config so engine stays
// independently testable.
type Params struct {
	BusCapacityAccel int
	BusCapacityGyro  int
	BusCapacityGPS   int
	BusCapacityFused int

	KalmanConfig    kalman.Config6
	EKFConfig       ekf.Config
	ZUPTConfig      zupt.Config
	IncidentConfig  incident.Config
	EnableIncidents bool
}

// New constructs an Engine ready to run, with profile already
// installed (the caller runs calibration before constructing Engine,
// or supplies a loaded profile from a prior session).
func New(profile types.CalibrationProfile, params Params, recorder *session.Recorder, publisher *telemetry.Publisher, log *logrus.Entry) *Engine {
	e := &Engine{
		log:       log,
		accelBus:  bus.New[types.AccelSample](params.BusCapacityAccel),
		gyroBus:   bus.New[types.GyroSample](params.BusCapacityGyro),
		gpsBus:    bus.New[types.GpsFix](params.BusCapacityGPS),
		fusedBus:  bus.New[types.FusedReading](params.BusCapacityFused),
		kf6:       kalman.NewFilter6(params.KalmanConfig),
		kf15:      ekf.NewFilter15(params.EKFConfig),
		zd:        zupt.NewDetector(params.ZUPTConfig),
		recorder:  recorder,
		publisher: publisher,
	}
	e.calibProfile.Store(profile)
	if params.EnableIncidents {
		e.inc = incident.New(params.IncidentConfig)
	}
	return e
}

// AccelBus exposes the accel fan-out for producers to publish into.
func (e *Engine) AccelBus() *bus.Bus[types.AccelSample] { return e.accelBus }

// GyroBus exposes the gyro fan-out for producers to publish into.
func (e *Engine) GyroBus() *bus.Bus[types.GyroSample] { return e.gyroBus }

// GPSBus exposes the GPS fan-out for producers to publish into.
func (e *Engine) GPSBus() *bus.Bus[types.GpsFix] { return e.gpsBus }

// Recalibrate atomically swaps in a fresh CalibrationProfile, per
// invariant 3 (immutable-profile, atomic-pointer-swap re-calibration).
func (e *Engine) Recalibrate(profile types.CalibrationProfile) {
	e.calibProfile.Store(profile)
	e.log.WithField("sample_count", profile.SampleCount).Info("engine: calibration profile updated")
}

// Run subscribes to all three sensor buses and drives the filter
// workers until ctx is canceled. It is the sole writer to kf6/kf15/zd,
// so no additional locking is needed around them.
func (e *Engine) Run(ctx context.Context) error {
	accelSub := e.accelBus.Subscribe()
	gyroSub := e.gyroBus.Subscribe()
	gpsSub := e.gpsBus.Subscribe()
	defer accelSub.Unsubscribe()
	defer gyroSub.Unsubscribe()
	defer gpsSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case a, ok := <-accelSub.C:
			if !ok {
				return nil
			}
			e.handleAccel(a)

		case g, ok := <-gyroSub.C:
			if !ok {
				return nil
			}
			e.handleGyro(g)

		case f, ok := <-gpsSub.C:
			if !ok {
				return nil
			}
			e.handleGPS(f)
		}
	}
}

func (e *Engine) handleAccel(a types.AccelSample) {
	if a.Timestamp < e.lastAccelTimestamp {
		return // stale event behind the filter's last applied timestamp
	}
	e.lastAccelTimestamp = a.Timestamp

	profile, ok := e.calibProfile.Load()
	if !ok {
		return
	}
	calibrated, motionMag := profile.Calibrate(a)
	e.zd.AddAccelMagnitude(motionMag)

	if e.zd.Evaluate() {
		e.kf15.UpdateZUPT()
	} else {
		e.kf15.UpdateNHC()
	}

	e.stepKF6Accel(a.Timestamp, calibrated[0], calibrated[1])

	if e.inc != nil {
		gMag := math.Sqrt(a.X*a.X+a.Y*a.Y+a.Z*a.Z) / 9.80665
		longDecelG := -a.X / 9.80665
		if rec := e.inc.AddAccel(a, longDecelG, gMag); rec != nil {
			e.emitIncident(*rec)
		}
	}

	e.publishFused()
}

func (e *Engine) handleGyro(g types.GyroSample) {
	if g.Timestamp < e.lastGyroTimestamp {
		return
	}
	prevGyroTimestamp := e.kf15ApproxTimestamp()
	e.lastGyroTimestamp = g.Timestamp

	profile, ok := e.calibProfile.Load()
	if !ok {
		return
	}
	_, _, wz := profile.CalibrateGyro(g)
	gyroMag := zupt.GyroMagnitude3(g.Wx, g.Wy, g.Wz)
	e.zd.SetGyroMagnitude(gyroMag)

	if prevGyroTimestamp > 0 {
		dt := g.Timestamp - prevGyroTimestamp
		e.kf15.Predict(dt, wz, true)
	}

	if e.inc != nil {
		if rec := e.inc.AddGyro(g); rec != nil {
			e.emitIncident(*rec)
		}
	}
}

// stepKF6Accel advances Filter6's prediction to timestamp and applies
// a world-frame horizontal acceleration update, rotating the
// calibrated body-frame X/Y reading by the ES-EKF's current heading
// estimate per spec section 4.E (kf6 shares the heading channel with
// kf15 rather than estimating its own attitude).
func (e *Engine) stepKF6Accel(timestamp, bodyX, bodyY float64) {
	e.advanceKF6(timestamp)

	heading := e.kf15.Heading()
	worldX := bodyX*math.Cos(heading) - bodyY*math.Sin(heading)
	worldY := bodyX*math.Sin(heading) + bodyY*math.Cos(heading)
	e.kf6.UpdateAccel(worldX, worldY, kf6AccelSigma)
}

// advanceKF6 predicts Filter6 forward by the elapsed time since its
// last update, tolerating out-of-order or first-sample timestamps by
// skipping the predict step rather than passing a bogus dt.
func (e *Engine) advanceKF6(timestamp float64) {
	if e.lastKF6Timestamp > 0 {
		if dt := timestamp - e.lastKF6Timestamp; dt > 0 {
			e.kf6.Predict(dt)
		}
	}
	e.lastKF6Timestamp = timestamp
}

func (e *Engine) kf15ApproxTimestamp() float64 {
	// FilterState15's own LastUpdateTimestamp bookkeeping is owned by
	// the filter; engine only needs a monotonic dt source here, so it
	// tracks gyro arrival times directly.
	return e.lastGyroTimestamp
}

func (e *Engine) handleGPS(fix types.GpsFix) {
	if fix.Timestamp < e.lastGPSTimestamp {
		return
	}
	e.lastGPSTimestamp = fix.Timestamp

	if !e.kf15.OriginSet() {
		e.kf15.SetOrigin(fix.Latitude, fix.Longitude)
	}

	sigma := 10.0
	if fix.Accuracy != nil {
		sigma = *fix.Accuracy
	}
	e.kf15.UpdateGPSPosition(fix.Latitude, fix.Longitude, fix.Altitude, sigma)

	e.advanceKF6(fix.Timestamp)
	originLat, originLon := e.kf15.Origin()
	east, north := ekf.ToENU(fix.Latitude, fix.Longitude, originLat, originLon)
	e.kf6.UpdateGPS(east, north, fix.Accuracy)

	if fix.Speed != nil {
		bearing := 0.0
		haveBearing := false
		if fix.Bearing != nil {
			bearing = *fix.Bearing * (3.141592653589793 / 180.0)
			haveBearing = true
		}
		e.kf15.UpdateGPSVelocity(*fix.Speed, bearing, haveBearing)
	}

	speed := 0.0
	if fix.Speed != nil {
		speed = *fix.Speed
	}
	e.zd.SetGPSSpeed(speed, true)

	if e.inc != nil {
		e.inc.AddGPS(fix)
	}

	e.publishFused()
}

func (e *Engine) emitIncident(rec types.IncidentRecord) {
	e.log.WithFields(logrus.Fields{
		"event_type": rec.EventType,
		"magnitude":  rec.Magnitude,
	}).Warn("engine: incident detected")
	if e.publisher != nil {
		e.publisher.PublishIncident(rec)
	}
}

func (e *Engine) publishFused() {
	view15 := e.kf15.View()
	view6 := e.kf6.View()
	reading := types.FusedReading{
		Timestamp:       maxFloat(e.lastAccelTimestamp, e.lastGyroTimestamp, e.lastGPSTimestamp),
		Experimental15D: &view15,
		Ekf6D:           &view6,
	}
	if e.recorder != nil {
		e.recorder.AddReading(reading)
		e.recorder.AddTrajectoryPoint(types.TrajectoryPoint{
			Timestamp: reading.Timestamp,
			X:         view15.Position[0],
			Y:         view15.Position[1],
			Source:    "ekf15",
		})
	}
	e.fusedBus.Publish(reading)
	if e.publisher != nil {
		e.publisher.PublishFused(reading)
	}
}

func maxFloat(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// FusedBus exposes the fused-reading fan-out. The recorder is fed
// directly by the engine, not through this bus.
func (e *Engine) FusedBus() *bus.Bus[types.FusedReading] { return e.fusedBus }

// ShutdownGrace is exported so cmd/tracker's signal handler can size
// its wait relative to the configured T_shutdown.
const ShutdownGrace = 2 * time.Second
