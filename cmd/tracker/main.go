// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command tracker runs the live motion-tracking pipeline: it launches
// the sensor-CLI daemon, a GPS source, calibrates the device, then
// drives the fusion engine until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/calibration"
	"github.com/relabs-tech/motion-tracker/internal/config"
	"github.com/relabs-tech/motion-tracker/internal/ekf"
	"github.com/relabs-tech/motion-tracker/internal/engine"
	"github.com/relabs-tech/motion-tracker/internal/gpssource"
	"github.com/relabs-tech/motion-tracker/internal/incident"
	"github.com/relabs-tech/motion-tracker/internal/kalman"
	"github.com/relabs-tech/motion-tracker/internal/live"
	"github.com/relabs-tech/motion-tracker/internal/sensorcli"
	"github.com/relabs-tech/motion-tracker/internal/session"
	"github.com/relabs-tech/motion-tracker/internal/telemetry"
	"github.com/relabs-tech/motion-tracker/internal/types"
	"github.com/relabs-tech/motion-tracker/internal/zupt"
)

func main() {
	configPath := flag.String("config", "tracker_config.txt", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log := telemetry.NewLogger(*logLevel)
	ringHook := telemetry.NewRingHook(100)
	log.AddHook(ringHook)
	entry := logrus.NewEntry(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		entry.WithError(err).Warn("tracker: falling back to default configuration")
		cfg = config.Default()
	}
	config.SetGlobal(cfg)

	defer func() {
		if r := recover(); r != nil {
			writeCrashLog(cfg, ringHook, fmt.Sprintf("panic: %v", r), entry)
			panic(r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, entry); err != nil {
		writeCrashLog(cfg, ringHook, err.Error(), entry)
		entry.WithError(err).Fatal("tracker: fatal error")
	}
}

// writeCrashLog persists the recent log tail and the failure reason to
// the configured session directory (or the working directory, if none
// is configured) so a crash during an unattended run can be diagnosed
// after the fact.
func writeCrashLog(cfg *config.Config, ringHook *telemetry.RingHook, reason string, log *logrus.Entry) {
	dir := cfg.SessionDir
	if dir == "" {
		dir = "."
	}
	rec := session.CrashRecord{
		Component:      "tracker",
		Reason:         reason,
		OccurredAt:     time.Now(),
		RecentLogLines: ringHook.Lines(),
	}
	if err := session.WriteCrashLog(dir, rec); err != nil {
		log.WithError(err).Error("tracker: failed to write crash log")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	daemon := sensorcli.New(cfg.SensorCLICommand, cfg.SensorCLIArgs, 512, log.WithField("component", "sensorcli"))
	daemonDone := make(chan error, 1)
	go func() { daemonDone <- daemon.Run(ctx) }()

	profile, err := runCalibration(ctx, cfg, daemon, log)
	if err != nil {
		return fmt.Errorf("tracker: calibration: %w", err)
	}

	var recorder *session.Recorder
	if cfg.SessionDir != "" {
		if err := os.MkdirAll(cfg.SessionDir, 0o755); err != nil {
			return fmt.Errorf("tracker: create session dir: %w", err)
		}
		path := fmt.Sprintf("%s/session_%d.json.gz", cfg.SessionDir, time.Now().UnixNano())
		metadata := types.SessionMetadata{
			Source:               "live",
			SchemaTag:            "experimental_15d",
			CalibrationAccelBias: [3]float64{profile.AccelBiasX, profile.AccelBiasY, profile.AccelBiasZ},
			CalibrationGravity:   profile.GravityMagnitude,
			CalibrationGyroBias:  [3]float64{profile.GyroBiasX, profile.GyroBiasY, profile.GyroBiasZ},
		}
		recorder = session.NewRecorder(path, 5*time.Second, metadata, log.WithField("component", "recorder"))
		go recorder.Run()
		defer recorder.Stop()
	}

	var publisher *telemetry.Publisher
	if cfg.MQTTBroker != "" {
		publisher, err = telemetry.NewPublisher(cfg.MQTTBroker, cfg.MQTTClientIDTracker, telemetry.Topics{
			Fused:    cfg.TopicFused,
			Incident: cfg.TopicIncident,
			Health:   cfg.TopicHealth,
		}, log.WithField("component", "telemetry"))
		if err != nil {
			log.WithError(err).Warn("tracker: mqtt unavailable, continuing without telemetry egress")
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	params := engine.Params{
		BusCapacityAccel: 256,
		BusCapacityGyro:  256,
		BusCapacityGPS:   32,
		BusCapacityFused: 256,
		KalmanConfig:     kalman.DefaultConfig6(),
		EKFConfig:        ekf.DefaultConfig(),
		ZUPTConfig:       zupt.DefaultConfig(),
		IncidentConfig: incident.Config{
			ContextSeconds: cfg.IncidentContextSeconds,
			SampleRateHz:   1000.0 / float64(cfg.AccelSamplePeriodMS),
			CooldownSec:    5.0,
		},
		EnableIncidents: cfg.EnableIncidentDetector,
	}
	eng := engine.New(profile, params, recorder, publisher, log.WithField("component", "engine"))

	liveServer := live.NewServer(log.WithField("component", "live"))
	if cfg.LiveListenAddr != "" {
		recalibrate := func(recalCtx context.Context) (types.CalibrationProfile, error) {
			p, err := runCalibration(recalCtx, cfg, daemon, log)
			if err != nil {
				return types.CalibrationProfile{}, err
			}
			eng.Recalibrate(p)
			return p, nil
		}
		go serveLive(ctx, cfg.LiveListenAddr, liveServer, recalibrate, log)
		go forwardFusedToLive(ctx, eng, liveServer)
	}

	go forwardSensorRecords(ctx, daemon, eng)

	gpsDone := make(chan error, 1)
	go func() { gpsDone <- runGPSSource(ctx, cfg, eng, log) }()

	engineErr := eng.Run(ctx)

	select {
	case err := <-daemonDone:
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("tracker: sensor daemon exited unexpectedly")
		}
	default:
	}

	if engineErr != nil && ctx.Err() == nil {
		return engineErr
	}
	return nil
}

func runCalibration(ctx context.Context, cfg *config.Config, daemon *sensorcli.Daemon, log *logrus.Entry) (types.CalibrationProfile, error) {
	window := calibration.NewWindow(cfg.CalibrationMinSamples, cfg.CalibrationMaxVariance)
	deadline := time.Now().Add(time.Duration(cfg.CalibrationDurationSeconds * float64(time.Second)))

	log.WithField("duration_seconds", cfg.CalibrationDurationSeconds).Info("tracker: calibrating, hold the device still")

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return types.CalibrationProfile{}, ctx.Err()
		case rec := <-daemon.Records():
			applyCalibrationRecord(window, rec)
		case <-time.After(50 * time.Millisecond):
		}
	}

	profile, err := window.Finish()
	if err != nil {
		return types.CalibrationProfile{}, err
	}
	log.WithField("sample_count", profile.SampleCount).Info("tracker: calibration complete")
	return profile, nil
}

func applyCalibrationRecord(window *calibration.Window, rec sensorcli.Record) {
	name := strings.ToLower(rec.Sensor)
	switch {
	case strings.Contains(name, "gyro") && len(rec.Values) >= 3:
		window.AddGyro(types.GyroSample{Timestamp: rec.Timestamp, Wx: rec.Values[0], Wy: rec.Values[1], Wz: rec.Values[2]})
	case strings.Contains(name, "accel") && len(rec.Values) >= 3:
		window.AddAccel(types.AccelSample{Timestamp: rec.Timestamp, X: rec.Values[0], Y: rec.Values[1], Z: rec.Values[2]})
	}
}

func forwardSensorRecords(ctx context.Context, daemon *sensorcli.Daemon, eng *engine.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-daemon.Records():
			if !ok {
				return
			}
			name := strings.ToLower(rec.Sensor)
			switch {
			case strings.Contains(name, "gyro") && len(rec.Values) >= 3:
				eng.GyroBus().Publish(types.GyroSample{Timestamp: rec.Timestamp, Wx: rec.Values[0], Wy: rec.Values[1], Wz: rec.Values[2]})
			case strings.Contains(name, "accel") && len(rec.Values) >= 3:
				eng.AccelBus().Publish(types.AccelSample{Timestamp: rec.Timestamp, X: rec.Values[0], Y: rec.Values[1], Z: rec.Values[2]})
			}
		}
	}
}

func runGPSSource(ctx context.Context, cfg *config.Config, eng *engine.Engine, log *logrus.Entry) error {
	out := make(chan types.GpsFix, 8)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case fix, ok := <-out:
				if !ok {
					return
				}
				eng.GPSBus().Publish(fix)
			}
		}
	}()

	switch cfg.GPSMode {
	case "stream":
		src := gpssource.NewStreamSource(cfg.GPSSerialPort, cfg.GPSBaudRate, log.WithField("component", "gps"))
		return src.Run(ctx, out)
	default:
		args := strings.Fields(cfg.GPSOracleCmd)
		if len(args) == 0 {
			return fmt.Errorf("tracker: GPS_ORACLE_CMD is empty in poll mode")
		}
		src := gpssource.NewPollSource(args[0], args[1:], time.Duration(cfg.GPSPollPeriodSec*float64(time.Second)), log.WithField("component", "gps"))
		return src.Run(ctx, out)
	}
}

func serveLive(ctx context.Context, addr string, server *live.Server, recalibrate live.RecalibrateFunc, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	mux.HandleFunc("/recalibrate", server.HandleRecalibrate(recalibrate))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("tracker: live server stopped")
	}
}

func forwardFusedToLive(ctx context.Context, eng *engine.Engine, server *live.Server) {
	sub := eng.FusedBus().Subscribe()
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case reading, ok := <-sub.C:
			if !ok {
				return
			}
			server.Broadcast(reading)
		}
	}
}
