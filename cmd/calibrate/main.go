// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command calibrate runs a standalone stationary-window calibration
// pass against the sensor-CLI daemon and writes the resulting profile
// to disk, for operators who want to capture a profile once and reuse
// it across several cmd/tracker runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/calibration"
	"github.com/relabs-tech/motion-tracker/internal/config"
	"github.com/relabs-tech/motion-tracker/internal/sensorcli"
	"github.com/relabs-tech/motion-tracker/internal/telemetry"
	"github.com/relabs-tech/motion-tracker/internal/types"
)

func main() {
	configPath := flag.String("config", "tracker_config.txt", "Path to configuration file")
	outputPath := flag.String("out", "calibration_profile.json", "Path to write the calibration profile")
	duration := flag.Float64("duration", 0, "Calibration duration in seconds; 0 uses the configured default")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.NewEntry(telemetry.NewLogger(*logLevel))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Warn("calibrate: falling back to default configuration")
		cfg = config.Default()
	}
	if *duration > 0 {
		cfg.CalibrationDurationSeconds = *duration
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	profile, err := run(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("calibrate: fatal error")
	}

	if err := writeProfile(*outputPath, profile); err != nil {
		log.WithError(err).Fatal("calibrate: failed to write profile")
	}
	log.WithField("path", *outputPath).Info("calibrate: profile written")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) (types.CalibrationProfile, error) {
	daemon := sensorcli.New(cfg.SensorCLICommand, cfg.SensorCLIArgs, 512, log.WithField("component", "sensorcli"))
	daemonDone := make(chan error, 1)
	go func() { daemonDone <- daemon.Run(ctx) }()

	window := calibration.NewWindow(cfg.CalibrationMinSamples, cfg.CalibrationMaxVariance)
	deadline := time.Now().Add(time.Duration(cfg.CalibrationDurationSeconds * float64(time.Second)))

	log.WithField("duration_seconds", cfg.CalibrationDurationSeconds).Info("calibrate: hold the device still")

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return types.CalibrationProfile{}, ctx.Err()
		case rec := <-daemon.Records():
			applyRecord(window, rec)
		case <-time.After(50 * time.Millisecond):
		}
	}

	return window.Finish()
}

func applyRecord(window *calibration.Window, rec sensorcli.Record) {
	name := strings.ToLower(rec.Sensor)
	switch {
	case strings.Contains(name, "gyro") && len(rec.Values) >= 3:
		window.AddGyro(types.GyroSample{Timestamp: rec.Timestamp, Wx: rec.Values[0], Wy: rec.Values[1], Wz: rec.Values[2]})
	case strings.Contains(name, "accel") && len(rec.Values) >= 3:
		window.AddAccel(types.AccelSample{Timestamp: rec.Timestamp, X: rec.Values[0], Y: rec.Values[1], Z: rec.Values[2]})
	}
}

func writeProfile(path string, profile types.CalibrationProfile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("calibrate: marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("calibrate: write profile %s: %w", path, err)
	}
	return nil
}
