// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CrashRecord captures enough state to diagnose a worker that exited
// unexpectedly: which component failed, why, and the tail of log lines
// leading up to the failure.
type CrashRecord struct {
	Component      string    `json:"component"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
	RecentLogLines []string  `json:"recent_log_lines,omitempty"`
}

// WriteCrashLog writes rec as JSON to
// sessionDir/crash_logs/session_<unix-nanos>.json, a best-effort
// diagnostic artifact separate from the regular session log so a crash
// during flush doesn't also lose the crash reason.
func WriteCrashLog(sessionDir string, rec CrashRecord) error {
	dir := filepath.Join(sessionDir, "crash_logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session: create crash log dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("session_%d.json", rec.OccurredAt.UnixNano()))
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal crash record: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session: write crash log %s: %w", path, err)
	}
	return nil
}
