// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hwimu drives an MPU9250 directly over SPI using periph.io,
// for the on-device sensorcli binary that does not depend on a
// Termux:API subprocess. It mirrors the teacher's IMU source: periph
// host init, an SPI transport bound to a chip-select GPIO, full-scale
// range and DLPF configuration, then a poll loop converting raw
// register counts into physical units.
package hwimu

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

const (
	gravityMetersPerSecondSq = 9.80665
	degreesToRadians         = 3.141592653589793 / 180.0
)

// accelLSBPerG maps ACCEL_FS_SEL (0..3) to LSB-per-g sensitivity.
var accelLSBPerG = [4]float64{16384, 8192, 4096, 2048}

// gyroLSBPerDPS maps GYRO_FS_SEL (0..3) to LSB-per-(deg/s) sensitivity.
var gyroLSBPerDPS = [4]float64{131.0, 65.5, 32.8, 16.4}

// Config describes the SPI wiring and sensor ranges for one MPU9250.
type Config struct {
	SPIDevice string
	CSPin     string

	AccelRange int // 0..3, see accelLSBPerG
	GyroRange  int // 0..3, see gyroLSBPerDPS

	SampleRateDivider byte
	DLPFConfig        byte
}

// DefaultConfig returns a Config matching the teacher's default
// sensor setup (+-4g, +-500 deg/s, 1kHz/(1+div) output).
func DefaultConfig(spiDevice, csPin string) Config {
	return Config{
		SPIDevice:         spiDevice,
		CSPin:             csPin,
		AccelRange:        1,
		GyroRange:         1,
		SampleRateDivider: 9,
		DLPFConfig:        3,
	}
}

// Sensor wraps a periph.io MPU9250 bound over SPI, tracking the LSB
// scale factors needed to turn raw counts into physical units.
type Sensor struct {
	cfg Config
	imu *mpu9250.MPU9250

	accelScale float64 // m/s^2 per LSB
	gyroScale  float64 // rad/s per LSB
}

// Open initializes the periph host, binds the SPI transport to the
// configured chip-select pin, and applies range/DLPF/sample-rate
// configuration.
func Open(cfg Config) (*Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hwimu: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("hwimu: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("hwimu: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("hwimu: device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("hwimu: initialization: %w", err)
	}

	if err := imu.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("hwimu: set accel range: %w", err)
	}
	if err := imu.SetGyroRange(cfg.GyroRange); err != nil {
		return nil, fmt.Errorf("hwimu: set gyro range: %w", err)
	}
	if err := imu.SetDLPFMode(cfg.DLPFConfig); err != nil {
		return nil, fmt.Errorf("hwimu: set DLPF config: %w", err)
	}
	if err := imu.SetSampleRateDivider(cfg.SampleRateDivider); err != nil {
		return nil, fmt.Errorf("hwimu: set sample rate divider: %w", err)
	}

	if err := imu.Calibrate(); err != nil {
		return nil, fmt.Errorf("hwimu: calibrate: %w", err)
	}

	return &Sensor{
		cfg:        cfg,
		imu:        imu,
		accelScale: gravityMetersPerSecondSq / accelLSBPerG[cfg.AccelRange],
		gyroScale:  degreesToRadians / gyroLSBPerDPS[cfg.GyroRange],
	}, nil
}

// ReadAccel reads one accelerometer sample, converted to m/s^2.
func (s *Sensor) ReadAccel(timestamp float64) (types.AccelSample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return types.AccelSample{}, fmt.Errorf("hwimu: accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return types.AccelSample{}, fmt.Errorf("hwimu: accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return types.AccelSample{}, fmt.Errorf("hwimu: accel Z: %w", err)
	}
	return types.AccelSample{
		Timestamp: timestamp,
		X:         float64(ax) * s.accelScale,
		Y:         float64(ay) * s.accelScale,
		Z:         float64(az) * s.accelScale,
	}, nil
}

// ReadGyro reads one gyroscope sample, converted to rad/s.
func (s *Sensor) ReadGyro(timestamp float64) (types.GyroSample, error) {
	gx, err := s.imu.GetRotationX()
	if err != nil {
		return types.GyroSample{}, fmt.Errorf("hwimu: gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return types.GyroSample{}, fmt.Errorf("hwimu: gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return types.GyroSample{}, fmt.Errorf("hwimu: gyro Z: %w", err)
	}
	return types.GyroSample{
		Timestamp: timestamp,
		Wx:        float64(gx) * s.gyroScale,
		Wy:        float64(gy) * s.gyroScale,
		Wz:        float64(gz) * s.gyroScale,
	}, nil
}

// Run polls the sensor at period, delivering accel and gyro samples on
// the given channels until ctx is canceled. Samples are timestamped
// from the monotonic clock at read time, matching the units the rest
// of the pipeline uses for every other source.
func (s *Sensor) Run(ctx context.Context, period time.Duration, accelOut chan<- types.AccelSample, gyroOut chan<- types.GyroSample) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			ts := now.Sub(start).Seconds()

			accel, err := s.ReadAccel(ts)
			if err != nil {
				return err
			}
			gyro, err := s.ReadGyro(ts)
			if err != nil {
				return err
			}

			select {
			case accelOut <- accel:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case gyroOut <- gyro:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
