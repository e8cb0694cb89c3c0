// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command sensorcli-sim is a reference implementation of the sensor-CLI
// contract internal/sensorcli supervises: it prints brace-balanced JSON
// records of the shape {"<sensor>": {"values": [...], "timestamp": <ns>}}
// on stdout at a fixed rate, simulating an accelerometer and gyroscope
// so the rest of the pipeline can be exercised without real hardware.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"
)

type sensorFrame struct {
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"timestamp"`
}

func main() {
	periodMS := flag.Int("period-ms", 20, "Sample period in milliseconds")
	amplitude := flag.Float64("accel-amplitude", 0.3, "Peak simulated motion acceleration in m/s^2")
	flag.Parse()

	period := time.Duration(*periodMS) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	for now := range ticker.C {
		t := now.Sub(start).Seconds()
		emitAccel(t, *amplitude)
		emitGyro(t)
	}
}

func emitAccel(t, amplitude float64) {
	// Gravity on Z plus a slow lateral sway, approximating a handheld
	// device resting with small involuntary motion.
	values := []float64{
		amplitude * math.Sin(2*math.Pi*0.5*t),
		amplitude * math.Cos(2*math.Pi*0.3*t) * 0.5,
		9.80665 + amplitude*0.1*math.Sin(2*math.Pi*1.1*t),
	}
	emit("accel", values, t)
}

func emitGyro(t float64) {
	values := []float64{
		0.01 * math.Sin(2*math.Pi*0.2*t),
		0.01 * math.Cos(2*math.Pi*0.2*t),
		0.02 * math.Sin(2*math.Pi*0.1*t),
	}
	emit("gyro", values, t)
}

func emit(sensor string, values []float64, t float64) {
	record := map[string]sensorFrame{
		sensor: {Values: values, Timestamp: int64(t * 1e9)},
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}
