// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensorcli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is a single typed sample pulled off the child process, still
// tagged with its originating sensor name.
type Record struct {
	Sensor    string
	Values    []float64
	Timestamp float64
}

// Daemon supervises one long-lived sensor-CLI child process, per spec
// section 4.A: it owns the child handle, restarts on failure with
// exponential backoff, and is the sole writer into a bounded,
// drop-oldest queue of Records.
type Daemon struct {
	command string
	args    []string
	log     *logrus.Entry

	queue      chan Record
	queueCap   int
	dropCount  atomic.Uint64
	silentFor  time.Duration
	gracePause time.Duration
	backoffCap time.Duration

	mu      sync.Mutex
	lastRec time.Time
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithSilentTimeout sets T_silent: the duration of no records after
// which the supervisor considers the child hung and restarts it.
func WithSilentTimeout(d time.Duration) Option {
	return func(dm *Daemon) { dm.silentFor = d }
}

// WithShutdownGrace sets how long shutdown waits for the child to exit
// cleanly after signaling before it is force-killed.
func WithShutdownGrace(d time.Duration) Option {
	return func(dm *Daemon) { dm.gracePause = d }
}

// WithBackoffCap bounds the exponential restart backoff.
func WithBackoffCap(d time.Duration) Option {
	return func(dm *Daemon) { dm.backoffCap = d }
}

// New constructs a Daemon that will invoke command with args as an
// argument vector (never through a shell, so embedded spaces in sensor
// names survive, per spec section 4.A) and buffer up to queueCap
// Records before dropping the oldest.
func New(command string, args []string, queueCap int, log *logrus.Entry) *Daemon {
	if queueCap < 1 {
		queueCap = 1
	}
	return &Daemon{
		command:    command,
		args:       args,
		log:        log,
		queue:      make(chan Record, queueCap),
		queueCap:   queueCap,
		silentFor:  10 * time.Second,
		gracePause: 2 * time.Second,
		backoffCap: 30 * time.Second,
	}
}

// Apply applies options after construction; kept separate from New so
// callers can chain functional options without a variadic New.
func (d *Daemon) Apply(opts ...Option) *Daemon {
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Records returns the channel Records are delivered on. Callers
// forward these into internal/bus.
func (d *Daemon) Records() <-chan Record {
	return d.queue
}

// DropCount returns the number of Records dropped for queue overflow
// since Daemon construction.
func (d *Daemon) DropCount() uint64 {
	return d.dropCount.Load()
}

// Run supervises the child process until ctx is canceled. It restarts
// the child with exponential backoff on exit or stall, and returns
// once ctx is done and the child has been terminated.
func (d *Daemon) Run(ctx context.Context) error {
	backoff := 500 * time.Millisecond

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := time.Now()
		err := d.runOnce(ctx)
		ran := time.Since(started)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			d.log.WithError(err).WithField("backoff", backoff).Warn("sensor-cli child exited, restarting")
		}

		// A child that ran healthily for a while resets backoff; a
		// rapid crash loop keeps doubling it, capped at backoffCap.
		if ran > d.backoffCap {
			backoff = 500 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > d.backoffCap {
			backoff = d.backoffCap
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.command, d.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("sensorcli: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sensorcli: start %s: %w", d.command, err)
	}

	// Silence is counted from this child's start, so a child that never
	// emits a record is also presumed hung after silentFor.
	d.mu.Lock()
	d.lastRec = time.Now()
	d.mu.Unlock()

	readerDone := make(chan error, 1)
	go func() {
		readerDone <- d.readLoop(ctx, stdout)
	}()

	watchdog := time.NewTicker(d.silentFor)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			d.shutdownChild(cmd)
			<-readerDone
			return ctx.Err()

		case err := <-readerDone:
			d.shutdownChild(cmd)
			_ = cmd.Wait()
			return err

		case <-watchdog.C:
			d.mu.Lock()
			stale := time.Since(d.lastRec) > d.silentFor
			d.mu.Unlock()
			if stale {
				d.shutdownChild(cmd)
				<-readerDone
				return fmt.Errorf("sensorcli: no records for over %s, child presumed hung", d.silentFor)
			}
		}
	}
}

func (d *Daemon) readLoop(ctx context.Context, stdout io.Reader) error {
	reader := NewFrameReader(stdout)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		name, values, ts, err := ParseRecord(raw)
		if err != nil {
			d.log.WithError(err).Debug("sensorcli: discarding malformed record")
			continue
		}

		d.mu.Lock()
		d.lastRec = time.Now()
		d.mu.Unlock()

		rec := Record{Sensor: name, Values: values, Timestamp: ts}
		select {
		case d.queue <- rec:
		default:
			select {
			case <-d.queue:
				d.dropCount.Add(1)
			default:
			}
			select {
			case d.queue <- rec:
			default:
			}
		}
	}
}

func (d *Daemon) shutdownChild(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.gracePause):
		_ = cmd.Process.Kill()
	}
}
