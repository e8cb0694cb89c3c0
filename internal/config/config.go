// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values, realizing the CLI
// surface described in spec section 6.
type Config struct {
	// Session persistence
	SessionDir string

	// Calibration
	CalibrationDurationSeconds float64
	CalibrationMinSamples      int
	CalibrationMaxVariance     float64

	// Sensor ingestion
	AccelSamplePeriodMS int
	GyroSamplePeriodMS  int
	GPSPollPeriodSec    float64
	EnableGyro          bool
	SensorCLICommand    string // argv[0] of the sensor-CLI subprocess
	SensorCLIArgs       []string

	// GPS
	GPSMode       string // "poll" or "stream"
	GPSOracleCmd  string // argv for pull-mode oracle
	GPSSerialPort string // for push-mode NMEA stream
	GPSBaudRate   int

	// Incident detection
	EnableIncidentDetector bool
	IncidentContextSeconds float64

	// Replay
	ReplayLogPath string
	GPSDecimation int

	// MQTT egress
	MQTTBroker          string
	MQTTClientIDTracker string
	TopicFused          string
	TopicIncident       string
	TopicHealth         string

	// Live WebSocket interface
	LiveListenAddr string

	// Shutdown
	ShutdownGraceSeconds float64
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated with the defaults named throughout
// spec.md (T_cal=3s, queue sizes via other packages, etc.), so a tracker
// can run without a config file.
func Default() *Config {
	return &Config{
		SessionDir:                 "./sessions",
		CalibrationDurationSeconds: 3.0,
		CalibrationMinSamples:      50,
		CalibrationMaxVariance:     0.5,
		AccelSamplePeriodMS:        20,
		GyroSamplePeriodMS:         20,
		GPSPollPeriodSec:           1.0,
		EnableGyro:                 true,
		SensorCLICommand:           "sensorcli-sim",
		SensorCLIArgs:              nil,
		GPSMode:                    "poll",
		GPSOracleCmd:               "",
		GPSBaudRate:                9600,
		EnableIncidentDetector:     true,
		IncidentContextSeconds:     5.0,
		GPSDecimation:              1,
		MQTTBroker:                 "tcp://localhost:1883",
		MQTTClientIDTracker:        "motion-tracker",
		TopicFused:                 "tracker/fused",
		TopicIncident:              "tracker/incident",
		TopicHealth:                "tracker/health",
		LiveListenAddr:             ":8790",
		ShutdownGraceSeconds:       2.0,
	}
}

// Load reads a KEY=VALUE configuration file layered over Default().
func Load(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setValue(key, value string) error {
	switch key {
	case "SESSION_DIR":
		c.SessionDir = value
	case "CALIBRATION_DURATION_SECONDS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_DURATION_SECONDS %q: %w", value, err)
		}
		c.CalibrationDurationSeconds = v
	case "CALIBRATION_MIN_SAMPLES":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_MIN_SAMPLES %q: %w", value, err)
		}
		c.CalibrationMinSamples = v
	case "CALIBRATION_MAX_VARIANCE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_MAX_VARIANCE %q: %w", value, err)
		}
		c.CalibrationMaxVariance = v
	case "ACCEL_SAMPLE_PERIOD_MS":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ACCEL_SAMPLE_PERIOD_MS %q: %w", value, err)
		}
		c.AccelSamplePeriodMS = v
	case "GYRO_SAMPLE_PERIOD_MS":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_SAMPLE_PERIOD_MS %q: %w", value, err)
		}
		c.GyroSamplePeriodMS = v
	case "GPS_POLL_PERIOD_SECONDS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GPS_POLL_PERIOD_SECONDS %q: %w", value, err)
		}
		c.GPSPollPeriodSec = v
	case "ENABLE_GYRO":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid ENABLE_GYRO %q: %w", value, err)
		}
		c.EnableGyro = v
	case "SENSOR_CLI_COMMAND":
		c.SensorCLICommand = value
	case "SENSOR_CLI_ARGS":
		c.SensorCLIArgs = strings.Fields(value)
	case "GPS_MODE":
		if value != "poll" && value != "stream" {
			return fmt.Errorf("GPS_MODE must be 'poll' or 'stream', got %q", value)
		}
		c.GPSMode = value
	case "GPS_ORACLE_CMD":
		c.GPSOracleCmd = value
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = v
	case "ENABLE_INCIDENT_DETECTOR":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid ENABLE_INCIDENT_DETECTOR %q: %w", value, err)
		}
		c.EnableIncidentDetector = v
	case "INCIDENT_CONTEXT_SECONDS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid INCIDENT_CONTEXT_SECONDS %q: %w", value, err)
		}
		c.IncidentContextSeconds = v
	case "REPLAY_LOG_PATH":
		c.ReplayLogPath = value
	case "GPS_DECIMATION":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_DECIMATION %q: %w", value, err)
		}
		if v < 1 {
			return fmt.Errorf("GPS_DECIMATION must be >= 1, got %d", v)
		}
		c.GPSDecimation = v
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "TOPIC_FUSED":
		c.TopicFused = value
	case "TOPIC_INCIDENT":
		c.TopicIncident = value
	case "TOPIC_HEALTH":
		c.TopicHealth = value
	case "LIVE_LISTEN_ADDR":
		c.LiveListenAddr = value
	case "SHUTDOWN_GRACE_SECONDS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_GRACE_SECONDS %q: %w", value, err)
		}
		c.ShutdownGraceSeconds = v
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return nil
}

func (c *Config) validate() error {
	if c.SessionDir == "" {
		return fmt.Errorf("SESSION_DIR is required")
	}
	if c.CalibrationDurationSeconds <= 0 {
		return fmt.Errorf("CALIBRATION_DURATION_SECONDS must be positive")
	}
	if c.AccelSamplePeriodMS <= 0 {
		return fmt.Errorf("ACCEL_SAMPLE_PERIOD_MS must be positive")
	}
	if c.GPSDecimation < 1 {
		return fmt.Errorf("GPS_DECIMATION must be >= 1")
	}
	return nil
}

// InitGlobal loads the global configuration exactly once. Subsequent
// calls are no-ops; use Get to read it back.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// SetGlobal installs cfg directly, bypassing file loading — used by
// cmd/tracker after its own load-or-default step, and by tests that
// build a Config programmatically.
func SetGlobal(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
}

// Get returns the global configuration instance. InitGlobal or SetGlobal
// must be called first.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
