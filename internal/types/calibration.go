package types

import "time"

// CalibrationProfile is the output of the stationary-window calibration
// pass (spec section 4.C). It is immutable once installed — a
// re-calibration produces a fresh instance rather than mutating this one,
// per invariant 3.
type CalibrationProfile struct {
	AccelBiasX, AccelBiasY, AccelBiasZ float64 // m/s^2
	GravityMagnitude                  float64 // m/s^2, ~9.81
	GyroBiasX, GyroBiasY, GyroBiasZ    float64 // rad/s

	CreatedAt   time.Time
	SampleCount int
	Variance    float64 // accel variance at calibration time, summed over the three axes
	Quality     float64 // confidence score in [0, 100], higher is better
}

// Calibrate applies the per-axis accel bias to a raw reading and returns
// the calibrated vector plus the orientation-independent motion
// magnitude, max(0, |calibrated| - gravity). The full 3-vector is kept
// for filters that remove gravity themselves via estimated attitude.
func (p *CalibrationProfile) Calibrate(raw AccelSample) (calibrated [3]float64, motionMagnitude float64) {
	calibrated = [3]float64{
		raw.X - p.AccelBiasX,
		raw.Y - p.AccelBiasY,
		raw.Z - p.AccelBiasZ,
	}
	mag := vecNorm3(calibrated[0], calibrated[1], calibrated[2])
	motionMagnitude = mag - p.GravityMagnitude
	if motionMagnitude < 0 {
		motionMagnitude = 0
	}
	return calibrated, motionMagnitude
}

// CalibrateGyro subtracts the gyro bias from a raw angular-rate reading.
func (p *CalibrationProfile) CalibrateGyro(raw GyroSample) (wx, wy, wz float64) {
	return raw.Wx - p.GyroBiasX, raw.Wy - p.GyroBiasY, raw.Wz - p.GyroBiasZ
}
