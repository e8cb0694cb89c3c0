package types

// EkfState15View is the serialized view of the ES-EKF nominal state used
// in a FusedReading — the "experimental_15d" field in the session log
// schema (spec section 6).
type EkfState15View struct {
	Position         [3]float64 `json:"position"`
	Velocity         [3]float64 `json:"velocity"`
	Heading          float64    `json:"heading"`
	HeadingRate      float64    `json:"heading_rate"`
	AccelBias        [3]float64 `json:"accel_bias"`
	GyroBias         [3]float64 `json:"gyro_bias"`
	CovarianceTrace  float64    `json:"covariance_trace"`
}

// Ekf6dView is the serialized view of the linear-KF state — the
// "ekf_6d" field in the session log schema.
type Ekf6dView struct {
	Position        [2]float64 `json:"position"`
	Velocity        [2]float64 `json:"velocity"`
	Acceleration    [2]float64 `json:"acceleration"`
	CovarianceTrace float64    `json:"covariance_trace"`
}

// FusedReading is one output record per tick: all raw inputs present at
// that moment plus every filter's output. Only Timestamp is required.
type FusedReading struct {
	Timestamp float64 `json:"timestamp"` // seconds since session start

	Accel *AccelSample `json:"accel,omitempty"`
	Gyro  *GyroSample  `json:"gyro,omitempty"`
	Gps   *GpsFix      `json:"gps,omitempty"`

	Experimental15D *EkfState15View `json:"experimental_15d,omitempty"`
	Ekf6D           *Ekf6dView      `json:"ekf_6d,omitempty"`

	SpecificPowerWPerKg *float64 `json:"specific_power_w_per_kg,omitempty"`
}

// TrajectoryPoint is the lightweight position-only stream consumed by
// plotting/map tools outside the core (spec section 6's "trajectories"
// array). Supplemented from original_source's plot_traj.py /
// plot_trajectories.py, which read a position stream distinct from the
// full per-tick FusedReading.
type TrajectoryPoint struct {
	Timestamp float64 `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Source    string  `json:"source"` // e.g. "gps", "ekf15"
}
