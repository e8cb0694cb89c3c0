// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// RingHook is a logrus.Hook that retains the most recent formatted log
// lines in memory, so a crash handler can attach recent context to a
// crash report without re-reading stdout.
type RingHook struct {
	mu       sync.Mutex
	capacity int
	lines    []string
}

// NewRingHook builds a hook retaining up to capacity lines.
func NewRingHook(capacity int) *RingHook {
	return &RingHook{capacity: capacity}
}

// Levels reports that this hook fires for every log level.
func (h *RingHook) Levels() []logrus.Level { return logrus.AllLevels }

// Fire appends entry's formatted line to the ring, evicting the oldest
// once capacity is exceeded.
func (h *RingHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
	if len(h.lines) > h.capacity {
		h.lines = h.lines[len(h.lines)-h.capacity:]
	}
	return nil
}

// Lines returns a snapshot of the currently retained log lines, oldest
// first.
func (h *RingHook) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}
