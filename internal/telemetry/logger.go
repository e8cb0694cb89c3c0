// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry provides structured logging and health/fused-state
// egress over MQTT, following the structured-JSON logger used by the
// gonum-based fusion engine this module drew its matrix idiom from.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a JSON-formatted logrus.Logger at the given level
// ("debug", "info", "warn", "error"), writing to stdout.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}
