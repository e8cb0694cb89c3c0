// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package types holds the wire-level and in-memory data model shared by
// every pipeline stage: raw sensor samples, calibration profiles, filter
// states, fused readings, incident records, and the session log schema.
package types

import "math"

// AccelSample is a single triaxial accelerometer reading, device frame.
type AccelSample struct {
	Timestamp float64 `json:"timestamp"` // monotonic seconds
	X         float64 `json:"x"`         // m/s^2
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the reading.
func (a AccelSample) Magnitude() float64 {
	return vecNorm3(a.X, a.Y, a.Z)
}

// GyroSample is a single triaxial gyroscope reading, device frame.
type GyroSample struct {
	Timestamp float64 `json:"timestamp"` // monotonic seconds
	Wx        float64 `json:"wx"`        // rad/s
	Wy        float64 `json:"wy"`
	Wz        float64 `json:"wz"`
}

// Magnitude returns the Euclidean norm of the angular rate.
func (g GyroSample) Magnitude() float64 {
	return vecNorm3(g.Wx, g.Wy, g.Wz)
}

// GpsFix is one absolute-position fix. Optional fields use pointers so
// "field not reported" is distinguishable from "field is zero" — the
// daemon must tolerate arbitrarily long gaps and partial fixes.
type GpsFix struct {
	Timestamp float64  `json:"timestamp"`          // seconds, core-arrival time
	RadioTime *float64 `json:"radio_time,omitempty"` // seconds, time radio produced it
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"` // meters
	Speed     *float64 `json:"speed,omitempty"`    // m/s
	Bearing   *float64 `json:"bearing,omitempty"`  // degrees
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters, 1-sigma horizontal
}

func vecNorm3(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}
