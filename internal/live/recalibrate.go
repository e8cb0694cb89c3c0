// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package live

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// RecalibrateFunc runs a fresh stationary-window calibration pass and
// installs the result, returning the new profile for the caller to
// report back over HTTP. cmd/tracker supplies this as a closure over
// its sensor daemon and Engine.
type RecalibrateFunc func(ctx context.Context) (types.CalibrationProfile, error)

type recalibrateResponse struct {
	OK      bool                     `json:"ok"`
	Error   string                   `json:"error,omitempty"`
	Profile *types.CalibrationProfile `json:"profile,omitempty"`
}

// HandleRecalibrate builds an HTTP handler that runs trigger on POST
// and reports the resulting profile as JSON, the same
// upgrade-then-drive-a-stateful-session shape as the teacher's
// calibration WebSocket handler, simplified to a single request/response
// round trip since re-calibration here has no multi-phase wizard.
func (s *Server) HandleRecalibrate(trigger RecalibrateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		profile, err := trigger(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			s.log.WithError(err).Warn("live: recalibration request failed")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(recalibrateResponse{OK: false, Error: err.Error()})
			return
		}

		_ = json.NewEncoder(w).Encode(recalibrateResponse{OK: true, Profile: &profile})
	}
}
