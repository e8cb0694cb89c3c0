// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensorcli

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SelectSensor runs listCmd/listArgs (e.g. `sensorcli-sim -l`), splits
// its output into lines the way AccelerometerReader.awaken parses
// `termux-sensor -l`, and returns the first entry matching substr
// verbatim (case-sensitive, per spec section 4.A) that is not itself a
// derived or uncalibrated variant (those carry "_uncalibrated" or
// "derived" in their name). Returns an error if no match is found, so
// calibration can fail fast.
func SelectSensor(ctx context.Context, listCmd string, listArgs []string, substr string) (string, error) {
	cmd := exec.CommandContext(ctx, listCmd, listArgs...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("sensorcli: list sensors: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.Contains(line, substr) {
			continue
		}
		if strings.Contains(line, "uncalibrated") || strings.Contains(line, "derived") {
			continue
		}
		return line, nil
	}
	return "", fmt.Errorf("sensorcli: no raw sensor matching %q found", substr)
}
