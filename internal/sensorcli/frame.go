// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensorcli supervises the line-oriented sensor subprocess
// described in spec section 4.A: it launches a child process, parses
// its brace-balanced JSON records from stdout, and feeds typed samples
// into bounded queues, restarting the child with exponential backoff
// on failure.
package sensorcli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FrameReader accumulates child stdout into complete JSON records by
// counting brace depth, tolerating multi-line pretty-printed records
// the way the Termux sensor CLI emits them (see
// AccelerometerReader.read in the accelerometer reference reader this
// contract was modeled on: it accumulates `buffer += line` and treats
// brace_count == 0 as "record complete").
type FrameReader struct {
	scanner *bufio.Scanner
	buffer  strings.Builder
	depth   int
}

// NewFrameReader wraps r for brace-balanced record extraction.
func NewFrameReader(r io.Reader) *FrameReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &FrameReader{scanner: s}
}

// Next reads lines until one full brace-balanced record has
// accumulated, then returns its raw bytes. It returns io.EOF when the
// underlying reader is exhausted with no pending partial record.
func (f *FrameReader) Next() ([]byte, error) {
	for f.scanner.Scan() {
		line := f.scanner.Text()
		f.buffer.WriteString(line)
		f.buffer.WriteByte('\n')
		f.depth += strings.Count(line, "{") - strings.Count(line, "}")

		trimmed := strings.TrimSpace(f.buffer.String())
		if f.depth == 0 && trimmed != "" {
			record := f.buffer.String()
			f.buffer.Reset()
			return []byte(record), nil
		}
	}
	if err := f.scanner.Err(); err != nil {
		return nil, fmt.Errorf("sensorcli: read child stdout: %w", err)
	}
	return nil, io.EOF
}

// rawRecord is the shape emitted by both cmd/sensorcli-sim and
// cmd/mpu9250-sensorcli: a single top-level key naming the sensor,
// whose value carries a values array and a monotonic timestamp in
// nanoseconds, mirroring termux-sensor's `{"accel": {"values": [...]}}`
// shape that the accelerometer reference reader parses.
type rawRecord map[string]struct {
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"timestamp"`
}

// ParseRecord decodes one brace-balanced record and returns the sensor
// name (the record's sole top-level key), its values, and its
// timestamp in seconds.
func ParseRecord(raw []byte) (name string, values []float64, timestamp float64, err error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", nil, 0, fmt.Errorf("sensorcli: malformed record: %w", err)
	}
	if len(rec) != 1 {
		return "", nil, 0, fmt.Errorf("sensorcli: expected exactly one top-level key, got %d", len(rec))
	}
	for k, v := range rec {
		name = k
		values = v.Values
		timestamp = float64(v.Timestamp) / 1e9
	}
	return name, values, timestamp, nil
}
