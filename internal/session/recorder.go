// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session implements the recorder and replay runner from spec
// section 4.I: an in-memory buffer of every reading since start that
// is written out as a gzip-compressed SessionLog periodically and on
// clean shutdown (each flush rewrites the whole file), and a replay runner
// that re-injects a recorded session deterministically.
package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// Recorder accumulates FusedReadings and TrajectoryPoints in memory
// and periodically flushes them to a gzip-compressed session log.
type Recorder struct {
	mu           sync.Mutex
	readings     []types.FusedReading
	trajectories []types.TrajectoryPoint
	metadata     types.SessionMetadata

	path        string
	flushPeriod time.Duration
	log         *logrus.Entry

	stop chan struct{}
	done chan struct{}
}

// NewRecorder builds a Recorder that will flush to path every
// flushPeriod and once more when Stop is called.
func NewRecorder(path string, flushPeriod time.Duration, metadata types.SessionMetadata, log *logrus.Entry) *Recorder {
	return &Recorder{
		path:        path,
		flushPeriod: flushPeriod,
		metadata:    metadata,
		log:         log,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// AddReading appends a FusedReading to the in-memory buffer.
func (r *Recorder) AddReading(reading types.FusedReading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, reading)
	if reading.Accel != nil {
		r.metadata.AccelSamples++
	}
	if reading.Gps != nil {
		r.metadata.GpsFixes++
	}
}

// AddTrajectoryPoint appends a TrajectoryPoint to the in-memory buffer.
func (r *Recorder) AddTrajectoryPoint(p types.TrajectoryPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trajectories = append(r.trajectories, p)
}

// Run flushes periodically until Stop is called, then performs one
// final flush before returning.
func (r *Recorder) Run() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			if err := r.flush(); err != nil {
				r.log.WithError(err).Error("recorder: final flush failed")
			}
			return
		case <-ticker.C:
			if err := r.flush(); err != nil {
				r.log.WithError(err).Warn("recorder: periodic flush failed")
			}
		}
	}
}

// Stop signals Run to flush one last time and exit, blocking until it
// has done so.
func (r *Recorder) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Recorder) flush() error {
	r.mu.Lock()
	log := &types.SessionLog{
		Readings:     append([]types.FusedReading(nil), r.readings...),
		Trajectories: append([]types.TrajectoryPoint(nil), r.trajectories...),
		Metadata:     r.metadata,
	}
	log.Metadata.Version = types.SchemaVersion
	r.mu.Unlock()

	err := types.WriteSessionLog(r.path, log)
	if err == nil {
		return nil
	}

	r.log.WithError(err).Warn("recorder: flush failed, retrying once")
	return types.WriteSessionLog(r.path, log)
}
