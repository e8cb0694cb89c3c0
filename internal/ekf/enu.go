// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ekf

import "math"

const earthRadiusMeters = 6371000.0

// ToENU converts a lat/lon pair into local East-North-Up meters
// relative to origin, using an equirectangular approximation. Good
// enough over the handful-of-kilometers scale a single tracking
// session covers; no third-party geodesy library in the dependency
// set covers this, so it stays on the standard math package.
func ToENU(lat, lon, originLat, originLon float64) (east, north float64) {
	latRad := originLat * math.Pi / 180.0
	dLat := (lat - originLat) * math.Pi / 180.0
	dLon := (lon - originLon) * math.Pi / 180.0

	north = dLat * earthRadiusMeters
	east = dLon * earthRadiusMeters * math.Cos(latRad)
	return east, north
}
