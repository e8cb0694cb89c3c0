package types

// FilterState6 is the linear-KF state: [px, vx, ax, py, vy, ay].
type FilterState6 struct {
	X                 [6]float64
	P                 [6][6]float64
	LastUpdateTimestamp float64
}

// FilterState15 is the ES-EKF nominal state:
//
//	[0:3]  position (ENU, meters)
//	[3:6]  velocity (ENU, m/s)
//	[6]    heading psi (rad)
//	[7]    heading rate psi-dot (rad/s)
//	[8:11] accel bias (m/s^2)
//	[11:14] gyro bias (rad/s)
//	[14]   reserved slack slot, always zero (see design note: Open
//	       Question 1 — kept as dead weight rather than collapsing to a
//	       14-dimensional filter, so the schema tag "experimental_15d"
//	       stays stable if a future error state is added here)
type FilterState15 struct {
	X                   [15]float64
	P                   [15][15]float64
	LastUpdateTimestamp float64
	// OriginLat/OriginLon anchor the local ENU tangent frame at the
	// first valid GPS fix. Fixed for the life of the filter (invariant 5).
	OriginLat, OriginLon float64
	OriginSet            bool
}

const (
	IdxPX = iota
	IdxPY
	IdxPZ
	IdxVX
	IdxVY
	IdxVZ
	IdxHeading
	IdxHeadingRate
	IdxAccelBiasX
	IdxAccelBiasY
	IdxAccelBiasZ
	IdxGyroBiasX
	IdxGyroBiasY
	IdxGyroBiasZ
	IdxSlack
)
