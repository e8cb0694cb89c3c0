// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command replay deterministically re-runs a recorded session log
// through a fresh engine, optionally writing the re-fused output to a
// new session log for comparison against the original run. In -in-dir
// mode it batch-processes every session log in a directory, replaying
// each twice and recording a determinism-check manifest.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/ekf"
	"github.com/relabs-tech/motion-tracker/internal/engine"
	"github.com/relabs-tech/motion-tracker/internal/incident"
	"github.com/relabs-tech/motion-tracker/internal/kalman"
	"github.com/relabs-tech/motion-tracker/internal/session"
	"github.com/relabs-tech/motion-tracker/internal/telemetry"
	"github.com/relabs-tech/motion-tracker/internal/types"
	"github.com/relabs-tech/motion-tracker/internal/zupt"
)

func main() {
	inputPath := flag.String("in", "", "Path to a recorded session log (.json.gz)")
	inputDir := flag.String("in-dir", "", "Directory of recorded session logs (.json.gz) to batch-process; mutually exclusive with -in")
	outputPath := flag.String("out", "", "Path to write the re-fused session log; empty skips writing (ignored in -in-dir mode)")
	manifestPath := flag.String("manifest", "", "Path to write the batch-mode determinism manifest; defaults to <in-dir>/replay_manifest.json")
	realtime := flag.Bool("realtime", false, "Pace replay to match original sample spacing instead of running as fast as possible (ignored in -in-dir mode)")
	gpsDecimation := flag.Int("gps-decimation", 1, "Keep every Nth GPS fix during replay (1 = no decimation)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.NewEntry(telemetry.NewLogger(*logLevel))

	switch {
	case *inputDir != "":
		if err := runBatch(*inputDir, *manifestPath, *gpsDecimation, log); err != nil {
			log.WithError(err).Fatal("replay: fatal error")
		}
	case *inputPath != "":
		if err := run(*inputPath, *outputPath, *realtime, *gpsDecimation, log); err != nil {
			log.WithError(err).Fatal("replay: fatal error")
		}
	default:
		log.Fatal("replay: one of -in or -in-dir is required")
	}
}

func run(inputPath, outputPath string, realtime bool, gpsDecimation int, log *logrus.Entry) error {
	var recorder *session.Recorder
	if outputPath != "" {
		sessionLog, err := types.ReadSessionLog(inputPath)
		if err != nil {
			return fmt.Errorf("replay: read session log: %w", err)
		}
		metadata := sessionLog.Metadata
		metadata.Source = "replay"
		metadata.AccelSamples = 0
		metadata.GpsFixes = 0
		recorder = session.NewRecorder(outputPath, time.Hour, metadata, log.WithField("component", "recorder"))
		go recorder.Run()
		defer recorder.Stop()
	}

	result, err := replayOnce(inputPath, realtime, gpsDecimation, recorder, log)
	if err != nil {
		return err
	}

	log.WithField("event_count", result.EventCount).Info("replay: loaded session")
	log.WithField("fused_readings", len(result.FusedReadings)).Info("replay: complete")
	if outputPath != "" {
		log.WithField("path", outputPath).Info("replay: wrote re-fused session log")
	}
	return nil
}

// manifestEntry is one file's outcome in a batch-mode determinism
// check, supplemented from original_source/batch_process_sessions.py's
// directory-of-sessions processing model.
type manifestEntry struct {
	File          string `json:"file"`
	EventCount    int    `json:"event_count"`
	FusedReadings int    `json:"fused_readings"`
	Deterministic bool   `json:"deterministic"`
	Diff          string `json:"diff,omitempty"`
	Error         string `json:"error,omitempty"`
}

type batchManifest struct {
	FilesProcessed int             `json:"files_processed"`
	Entries        []manifestEntry `json:"entries"`
}

// runBatch replays every *.json.gz session log under inputDir twice
// each, as fast as possible, and records whether the two runs produced
// identical fused-reading streams — the round-trip determinism
// property spec section 8 requires, checked across a whole golden
// dataset rather than one file at a time.
func runBatch(inputDir, manifestPath string, gpsDecimation int, log *logrus.Entry) error {
	matches, err := filepath.Glob(filepath.Join(inputDir, "*.json.gz"))
	if err != nil {
		return fmt.Errorf("replay: glob session logs: %w", err)
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return fmt.Errorf("replay: no .json.gz session logs found in %s", inputDir)
	}

	entries := make([]manifestEntry, 0, len(matches))
	for _, file := range matches {
		entry := manifestEntry{File: filepath.Base(file)}

		first, err := replayOnce(file, false, gpsDecimation, nil, log)
		if err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			log.WithError(err).WithField("file", file).Error("replay: batch run failed")
			continue
		}
		second, err := replayOnce(file, false, gpsDecimation, nil, log)
		if err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			log.WithError(err).WithField("file", file).Error("replay: batch determinism re-run failed")
			continue
		}

		entry.EventCount = first.EventCount
		entry.FusedReadings = len(first.FusedReadings)
		if diff := cmp.Diff(first.FusedReadings, second.FusedReadings); diff != "" {
			entry.Diff = diff
		} else {
			entry.Deterministic = true
		}
		entries = append(entries, entry)
		log.WithFields(logrus.Fields{"file": file, "deterministic": entry.Deterministic}).Info("replay: batch file processed")
	}

	if manifestPath == "" {
		manifestPath = filepath.Join(inputDir, "replay_manifest.json")
	}
	data, err := json.MarshalIndent(batchManifest{FilesProcessed: len(entries), Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("replay: marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("replay: write manifest: %w", err)
	}
	log.WithField("path", manifestPath).Info("replay: wrote batch manifest")
	return nil
}

// replayResult is the outcome of one replayOnce pass: everything a
// caller needs either to report a single-file summary or to diff
// against a second pass over the same input.
type replayResult struct {
	EventCount    int
	FusedReadings []types.FusedReading
}

// replayOnce reads inputPath, re-drives a fresh Engine with its events
// in timestamp order, and collects every FusedReading the engine
// produced. recorder, if non-nil, is wired into the engine so its
// output is persisted as a new session log; batch mode passes nil.
func replayOnce(inputPath string, realtime bool, gpsDecimation int, recorder *session.Recorder, log *logrus.Entry) (replayResult, error) {
	sessionLog, err := types.ReadSessionLog(inputPath)
	if err != nil {
		return replayResult{}, fmt.Errorf("replay: read session log: %w", err)
	}

	profile := types.CalibrationProfile{
		AccelBiasX:       sessionLog.Metadata.CalibrationAccelBias[0],
		AccelBiasY:       sessionLog.Metadata.CalibrationAccelBias[1],
		AccelBiasZ:       sessionLog.Metadata.CalibrationAccelBias[2],
		GravityMagnitude: sessionLog.Metadata.CalibrationGravity,
		GyroBiasX:        sessionLog.Metadata.CalibrationGyroBias[0],
		GyroBiasY:        sessionLog.Metadata.CalibrationGyroBias[1],
		GyroBiasZ:        sessionLog.Metadata.CalibrationGyroBias[2],
	}
	if profile.GravityMagnitude == 0 {
		profile.GravityMagnitude = 9.80665
		log.Warn("replay: session log carries no calibration gravity, assuming standard gravity")
	}

	replayer := session.NewReplayer(sessionLog, gpsDecimation)

	params := engine.Params{
		BusCapacityAccel: 256,
		BusCapacityGyro:  256,
		BusCapacityGPS:   64,
		BusCapacityFused: 256,
		KalmanConfig:     kalman.DefaultConfig6(),
		EKFConfig:        ekf.DefaultConfig(),
		ZUPTConfig:       zupt.DefaultConfig(),
		IncidentConfig:   incident.DefaultConfig(),
		EnableIncidents:  true,
	}
	eng := engine.New(profile, params, recorder, nil, log.WithField("component", "engine"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	events := make(chan session.ReplayEvent, 64)
	replayDone := make(chan error, 1)
	go func() { replayDone <- replayer.Run(ctx, events, realtime) }()

	fusedSub := eng.FusedBus().Subscribe()
	var readings []types.FusedReading
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for reading := range fusedSub.C {
			readings = append(readings, reading)
		}
	}()

	var feedErr error
drain:
	for {
		select {
		case ev := <-events:
			dispatchEvent(eng, ev)
		case err := <-replayDone:
			feedErr = err
			break drain
		}
	}
	// replayer.Run has returned, but events may still hold buffered
	// samples sent before it did; drain them before tearing down.
flush:
	for {
		select {
		case ev := <-events:
			dispatchEvent(eng, ev)
		default:
			break flush
		}
	}
	if feedErr != nil {
		fusedSub.Unsubscribe()
		<-collectDone
		return replayResult{}, fmt.Errorf("replay: event feed: %w", feedErr)
	}

	// Give the engine a moment to drain the last batch of published
	// samples before tearing it down.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-engineDone
	fusedSub.Unsubscribe()
	<-collectDone

	return replayResult{EventCount: replayer.EventCount(), FusedReadings: readings}, nil
}

func dispatchEvent(eng *engine.Engine, ev session.ReplayEvent) {
	if ev.Accel != nil {
		eng.AccelBus().Publish(*ev.Accel)
	}
	if ev.Gyro != nil {
		eng.GyroBus().Publish(*ev.Gyro)
	}
	if ev.Gps != nil {
		eng.GPSBus().Publish(*ev.Gps)
	}
}
