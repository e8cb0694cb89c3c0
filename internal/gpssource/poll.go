// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gpssource

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// oracleOutput is the JSON shape a pull-mode oracle command must print
// on stdout: one fix object per invocation, or an empty object when no
// fix is currently available.
type oracleOutput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Speed     *float64 `json:"speed"`
	Bearing   *float64 `json:"bearing"`
	Accuracy  *float64 `json:"accuracy"`
	RadioTime *float64 `json:"radio_time"`
}

// PollSource invokes an oracle command once per period and parses its
// stdout into a GpsFix. Absent fixes are explicit: when the oracle
// reports no position, no value is sent for that tick (spec section
// 4.B — "the source emits None/missing").
type PollSource struct {
	command string
	args    []string
	period  time.Duration
	log     *logrus.Entry
}

// NewPollSource builds a poller that invokes command/args as an
// argument vector (never through a shell) every period.
func NewPollSource(command string, args []string, period time.Duration, log *logrus.Entry) *PollSource {
	return &PollSource{command: command, args: args, period: period, log: log}
}

// Run polls the oracle until ctx is canceled, sending a GpsFix on out
// whenever the oracle reports a position.
func (p *PollSource) Run(ctx context.Context, out chan<- types.GpsFix) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fix, ok, err := p.poll(ctx)
			if err != nil {
				p.log.WithError(err).Warn("gpssource: oracle poll failed")
				continue
			}
			if !ok {
				continue
			}
			select {
			case out <- fix:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *PollSource) poll(ctx context.Context) (types.GpsFix, bool, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	raw, err := cmd.Output()
	if err != nil {
		return types.GpsFix{}, false, fmt.Errorf("gpssource: run oracle: %w", err)
	}

	var oracle oracleOutput
	if err := json.Unmarshal(raw, &oracle); err != nil {
		return types.GpsFix{}, false, fmt.Errorf("gpssource: parse oracle output: %w", err)
	}
	if oracle.Latitude == nil || oracle.Longitude == nil {
		return types.GpsFix{}, false, nil
	}

	fix := types.GpsFix{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Latitude:  *oracle.Latitude,
		Longitude: *oracle.Longitude,
		Altitude:  oracle.Altitude,
		Speed:     oracle.Speed,
		Bearing:   oracle.Bearing,
		Accuracy:  oracle.Accuracy,
		RadioTime: oracle.RadioTime,
	}
	return fix, true, nil
}
