// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gpssource produces types.GpsFix values from either a
// push-mode NMEA serial stream or a pull-mode oracle command, per spec
// section 4.B. Both implementations timestamp a fix at the moment it
// becomes available to the core rather than at radio production time;
// the radio's own time, when known, is preserved in RadioTime.
package gpssource

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// StreamSource parses NMEA sentences off a serial port in push mode,
// combining RMC (position, speed, course) and GGA (altitude, fix
// quality) into types.GpsFix values, mirroring the sentence-type
// switch in the original GPS producer.
type StreamSource struct {
	port string
	baud int
	log  *logrus.Entry
}

// NewStreamSource opens port at baud on first Run call.
func NewStreamSource(port string, baud int, log *logrus.Entry) *StreamSource {
	return &StreamSource{port: port, baud: baud, log: log}
}

// Run opens the serial port and emits a GpsFix on out every time an
// RMC sentence completes a position update, until ctx is canceled.
func (s *StreamSource) Run(ctx context.Context, out chan<- types.GpsFix) error {
	opts := serial.OpenOptions{
		PortName:              s.port,
		BaudRate:              uint(s.baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("gpssource: open serial port %s: %w", s.port, err)
	}
	defer port.Close()

	reader := bufio.NewReader(port)
	lines := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			lines <- line
		}
	}()

	var fix types.GpsFix
	var altitude, hdop float64
	haveAltitude := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			return fmt.Errorf("gpssource: serial read: %w", err)

		case line, ok := <-lines:
			if !ok {
				return fmt.Errorf("gpssource: serial stream closed")
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "$") {
				continue
			}

			sentence, err := nmea.Parse(line)
			if err != nil {
				continue
			}

			switch sentence.DataType() {
			case nmea.TypeGGA:
				m := sentence.(nmea.GGA)
				altitude = m.Altitude
				hdop = m.HDOP
				haveAltitude = true

			case nmea.TypeRMC:
				m := sentence.(nmea.RMC)
				if m.Validity != "A" {
					continue
				}

				radioTime := parseRadioTime(m.Date, m.Time)
				fix = types.GpsFix{
					Timestamp: float64(time.Now().UnixNano()) / 1e9,
					Latitude:  m.Latitude,
					Longitude: m.Longitude,
					Speed:     floatPtr(knotsToMetersPerSecond(m.Speed)),
					Bearing:   floatPtr(m.Course),
				}
				if radioTime != nil {
					fix.RadioTime = radioTime
				}
				if haveAltitude {
					fix.Altitude = floatPtr(altitude)
					fix.Accuracy = floatPtr(hdop * 5.0) // rough HDOP-to-meters scaling
				}

				select {
				case out <- fix:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func knotsToMetersPerSecond(knots float64) float64 {
	return knots * 0.514444
}

func parseRadioTime(date nmea.Date, t nmea.Time) *float64 {
	if date.DD == 0 {
		return nil
	}
	tm := time.Date(2000+date.YY, time.Month(date.MM), date.DD, t.Hour, t.Minute, t.Second, t.Millisecond*1e6, time.UTC)
	secs := float64(tm.Unix()) + float64(t.Millisecond)/1000.0
	return &secs
}

func floatPtr(v float64) *float64 { return &v }
