// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command mpu9250-sensorcli drives a real MPU9250 over SPI and prints
// the same brace-balanced JSON record shape as cmd/sensorcli-sim, so
// internal/sensorcli's daemon can supervise either one identically.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/motion-tracker/internal/hwimu"
	"github.com/relabs-tech/motion-tracker/internal/types"
)

type sensorFrame struct {
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"timestamp"`
}

func main() {
	spiDevice := flag.String("spi", "/dev/spidev0.0", "SPI device path")
	csPin := flag.String("cs-pin", "GPIO22", "Chip-select GPIO name")
	periodMS := flag.Int("period-ms", 20, "Sample period in milliseconds")
	flag.Parse()

	sensor, err := hwimu.Open(hwimu.DefaultConfig(*spiDevice, *csPin))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpu9250-sensorcli: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	accelOut := make(chan types.AccelSample, 8)
	gyroOut := make(chan types.GyroSample, 8)

	runDone := make(chan error, 1)
	go func() {
		runDone <- sensor.Run(ctx, time.Duration(*periodMS)*time.Millisecond, accelOut, gyroOut)
	}()

	for {
		select {
		case <-ctx.Done():
			<-runDone
			return
		case a := <-accelOut:
			emit("accel", []float64{a.X, a.Y, a.Z}, a.Timestamp)
		case g := <-gyroOut:
			emit("gyro", []float64{g.Wx, g.Wy, g.Wz}, g.Timestamp)
		case err := <-runDone:
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "mpu9250-sensorcli: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}
}

func emit(sensor string, values []float64, timestampSeconds float64) {
	record := map[string]sensorFrame{
		sensor: {Values: values, Timestamp: int64(timestampSeconds * 1e9)},
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}
