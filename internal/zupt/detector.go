// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package zupt implements the stationary/ZUPT/NHC gating described in
// spec section 4.G: a sliding window of accel-magnitude variance,
// gated additionally by GPS speed and gyro magnitude. The stationary
// state is entered as soon as every gate passes and left only after
// DebounceSamples consecutive failing evaluations.
package zupt

import "math"

// Config holds the stationary-detector tunables.
type Config struct {
	WindowSize      int     // W, ~1s worth of accel samples
	VarianceMax     float64 // sigma^2_still
	GPSSpeedMax     float64 // v_still
	GyroMagMax      float64 // omega_still
	DebounceSamples int     // consecutive failing samples required to exit stationary
}

// DefaultConfig returns the tuning named in spec section 4.G.
func DefaultConfig() Config {
	return Config{
		WindowSize:      50, // ~1s at 20ms/sample
		VarianceMax:     0.05,
		GPSSpeedMax:     0.3,
		GyroMagMax:      0.05,
		DebounceSamples: 5,
	}
}

// Detector tracks a sliding window of accel-magnitude samples and
// reports whether the device is currently stationary.
type Detector struct {
	cfg Config

	window     []float64
	gyroMag    float64
	gpsSpeed   float64
	haveGPS    bool
	stationary bool
	failStreak int
}

// NewDetector builds a Detector with the given tuning.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// AddAccelMagnitude pushes one accel-magnitude sample into the sliding
// window, evicting the oldest once the window exceeds WindowSize.
func (d *Detector) AddAccelMagnitude(mag float64) {
	d.window = append(d.window, mag)
	if len(d.window) > d.cfg.WindowSize {
		d.window = d.window[len(d.window)-d.cfg.WindowSize:]
	}
}

// SetGyroMagnitude records the latest gyro magnitude for the gate.
func (d *Detector) SetGyroMagnitude(mag float64) { d.gyroMag = mag }

// SetGPSSpeed records the latest GPS-reported speed, if any. absent
// means no recent GPS evidence, in which case the GPS gate is skipped
// (spec section 4.B: the filters must tolerate arbitrarily long GPS
// gaps, and the stationary test is no exception).
func (d *Detector) SetGPSSpeed(speed float64, present bool) {
	d.gpsSpeed = speed
	d.haveGPS = present
}

// Evaluate re-checks all three stationary gates and returns whether
// the device is stationary this tick, applying the debounce window
// on exit only (entry is immediate once the window is full and all
// gates pass).
func (d *Detector) Evaluate() bool {
	if len(d.window) < d.cfg.WindowSize {
		d.stationary = false
		return false
	}

	variance := windowVariance(d.window)
	gatesPass := variance < d.cfg.VarianceMax &&
		d.gyroMag < d.cfg.GyroMagMax &&
		(!d.haveGPS || d.gpsSpeed < d.cfg.GPSSpeedMax)

	if gatesPass {
		d.failStreak = 0
		d.stationary = true
		return true
	}

	d.failStreak++
	if d.failStreak >= d.cfg.DebounceSamples {
		d.stationary = false
	}
	return d.stationary
}

// Stationary returns the last computed state without re-evaluating.
func (d *Detector) Stationary() bool { return d.stationary }

func windowVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	variance := 0.0
	for _, v := range data {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(data))
}

// GyroMagnitude3 computes the Euclidean norm of a 3-axis gyro sample,
// the same vecNorm3 idiom used for accel magnitude.
func GyroMagnitude3(wx, wy, wz float64) float64 {
	return math.Sqrt(wx*wx + wy*wy + wz*wz)
}
