// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration implements the stationary-window bias estimation
// described in spec section 4.C: during T_cal seconds of the operator
// holding the device still, collect accel and gyro samples, compute
// per-axis means, and derive an accel bias, gravity magnitude, and
// gyro bias used by every downstream filter.
package calibration

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// ErrInsufficientSamples is returned when fewer than minSamples accel
// samples were collected during the calibration window.
type ErrInsufficientSamples struct {
	Got, Want int
}

func (e *ErrInsufficientSamples) Error() string {
	return fmt.Sprintf("calibration: got %d accel samples, need at least %d", e.Got, e.Want)
}

// ErrExcessiveVariance is returned when the accel samples during the
// calibration window show more motion than maxVariance tolerates.
type ErrExcessiveVariance struct {
	Variance, Max float64
}

func (e *ErrExcessiveVariance) Error() string {
	return fmt.Sprintf("calibration: accel variance %.4f exceeds max %.4f, device was not stationary", e.Variance, e.Max)
}

// Window accumulates accel and gyro samples during a calibration
// period and produces a CalibrationProfile once it has enough data.
type Window struct {
	minSamples  int
	maxVariance float64

	accel []types.AccelSample
	gyro  []types.GyroSample
}

// NewWindow builds an empty calibration window requiring at least
// minSamples accel samples with variance at or below maxVariance.
func NewWindow(minSamples int, maxVariance float64) *Window {
	return &Window{minSamples: minSamples, maxVariance: maxVariance}
}

// AddAccel appends one accel sample to the window.
func (w *Window) AddAccel(s types.AccelSample) { w.accel = append(w.accel, s) }

// AddGyro appends one gyro sample to the window.
func (w *Window) AddGyro(s types.GyroSample) { w.gyro = append(w.gyro, s) }

// SampleCount reports how many accel samples have been collected.
func (w *Window) SampleCount() int { return len(w.accel) }

// Finish computes a CalibrationProfile from the accumulated samples.
// Returns ErrInsufficientSamples or ErrExcessiveVariance when the
// window does not satisfy the gates in spec section 4.C.
func (w *Window) Finish() (types.CalibrationProfile, error) {
	if len(w.accel) < w.minSamples {
		return types.CalibrationProfile{}, &ErrInsufficientSamples{Got: len(w.accel), Want: w.minSamples}
	}

	biasX := meanAccel(w.accel, axisX)
	biasY := meanAccel(w.accel, axisY)
	biasZ := meanAccel(w.accel, axisZ)

	variance := varianceAccel(w.accel, biasX, biasY, biasZ)
	if variance > w.maxVariance {
		return types.CalibrationProfile{}, &ErrExcessiveVariance{Variance: variance, Max: w.maxVariance}
	}

	gravityMagnitude := math.Sqrt(biasX*biasX + biasY*biasY + biasZ*biasZ)

	var gyroBiasX, gyroBiasY, gyroBiasZ float64
	accelConfidence := confidence(variance, 100.0)
	quality := accelConfidence
	if len(w.gyro) > 0 {
		gyroBiasX = meanGyro(w.gyro, axisX)
		gyroBiasY = meanGyro(w.gyro, axisY)
		gyroBiasZ = meanGyro(w.gyro, axisZ)

		gyroVariance := varianceGyro(w.gyro, gyroBiasX, gyroBiasY, gyroBiasZ)
		gyroConfidence := confidence(gyroVariance, 1000.0)
		quality = (accelConfidence + gyroConfidence) / 2.0
	}

	return types.CalibrationProfile{
		AccelBiasX:       biasX,
		AccelBiasY:       biasY,
		AccelBiasZ:       biasZ,
		GravityMagnitude: gravityMagnitude,
		GyroBiasX:        gyroBiasX,
		GyroBiasY:        gyroBiasY,
		GyroBiasZ:        gyroBiasZ,
		CreatedAt:        time.Now(),
		SampleCount:      len(w.accel),
		Variance:         variance,
		Quality:          quality,
	}, nil
}

// confidence maps a variance summed over the three axes to a 0-100
// score, 100/(1+stddev*scale): zero spread scores 100 and the score
// falls off as the standard deviation grows. The gyro scale (1000) is
// ten times the accel scale (100), so the gyro score falls off faster
// for the same spread, matching the turntable calibration's separate
// accel/gyro confidence formulas.
func confidence(variance, scale float64) float64 {
	return 100.0 / (1.0 + math.Sqrt(variance)*scale)
}

type axis int

const (
	axisX axis = iota
	axisY
	axisZ
)

func meanAccel(data []types.AccelSample, a axis) float64 {
	sum := 0.0
	for _, s := range data {
		sum += axisValueAccel(s, a)
	}
	return sum / float64(len(data))
}

func varianceAccel(data []types.AccelSample, mx, my, mz float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range data {
		dx := s.X - mx
		dy := s.Y - my
		dz := s.Z - mz
		sum += dx*dx + dy*dy + dz*dz
	}
	return sum / float64(len(data))
}

func varianceGyro(data []types.GyroSample, mx, my, mz float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range data {
		dx := s.Wx - mx
		dy := s.Wy - my
		dz := s.Wz - mz
		sum += dx*dx + dy*dy + dz*dz
	}
	return sum / float64(len(data))
}

func axisValueAccel(s types.AccelSample, a axis) float64 {
	switch a {
	case axisX:
		return s.X
	case axisY:
		return s.Y
	default:
		return s.Z
	}
}

func meanGyro(data []types.GyroSample, a axis) float64 {
	sum := 0.0
	for _, s := range data {
		switch a {
		case axisX:
			sum += s.Wx
		case axisY:
			sum += s.Wy
		default:
			sum += s.Wz
		}
	}
	return sum / float64(len(data))
}
