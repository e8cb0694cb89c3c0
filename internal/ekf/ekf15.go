// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ekf implements the 15-state error-state EKF from spec
// section 4.F: position/velocity in a local ENU tangent frame,
// heading and heading-rate, accel and gyro biases, and one reserved
// slack slot. The Joseph-form update and Mahalanobis gating are shared
// with internal/kalman, following the same gonum.org/v1/gonum/mat
// idiom as the 6-state filter.
package ekf

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/motion-tracker/internal/kalman"
	"github.com/relabs-tech/motion-tracker/internal/types"
)

const dim = 15

// Config holds the ES-EKF tunables named in spec section 4.F.
type Config struct {
	QPos, QVel, QAccel, QHeading, QHeadingRate, QAccelBias, QGyroBias float64

	VMax            float64 // clamp |v|, default 60 m/s
	PMax            float64 // clamp tr(P), default 1e4
	VNHC            float64 // NHC engages above this speed
	RNHC            float64 // NHC pseudo-measurement variance
	VCourseMin      float64 // min speed for GPS-course velocity fallback
	KMahalanobis    float64
	GravityWellRate float64 // per-second damping toward zero on vz absent altitude evidence
}

// DefaultConfig returns the tuning resolved for Open Questions 2 and 3:
// the gravity-well damping rate is kept at the spec's ~0.80/s
// heuristic, and the NHC threshold is fixed at v_nhc=0.5 m/s,
// R_nhc=0.05 (m/s)^2.
func DefaultConfig() Config {
	return Config{
		QPos:            0.01,
		QVel:            0.1,
		QAccel:          0.5,
		QHeading:        0.01,
		QHeadingRate:    0.05,
		QAccelBias:      0.001,
		QGyroBias:       0.0005,
		VMax:            60.0,
		PMax:            1e4,
		VNHC:            0.5,
		RNHC:            0.05,
		VCourseMin:      1.0,
		KMahalanobis:    5.0,
		GravityWellRate: 0.80,
	}
}

// Filter15 is the ES-EKF over the 15-dimensional nominal state.
type Filter15 struct {
	cfg Config

	x *mat.VecDense // nominal state
	p *mat.SymDense // error covariance

	originLat, originLon float64
	originSet            bool

	rejectedUpdates uint64
	rescaleEvents   uint64
}

// NewFilter15 constructs a filter at the origin with a wide prior.
func NewFilter15(cfg Config) *Filter15 {
	f := &Filter15{cfg: cfg}
	f.x = mat.NewVecDense(dim, nil)
	pdata := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		pdata[i*dim+i] = 100.0
	}
	f.p = mat.NewSymDense(dim, pdata)
	return f
}

// SetOrigin anchors the local ENU tangent frame at the first valid GPS
// fix. Subsequent calls are no-ops (invariant: the origin is fixed for
// the life of the filter).
func (f *Filter15) SetOrigin(lat, lon float64) {
	if f.originSet {
		return
	}
	f.originLat, f.originLon = lat, lon
	f.originSet = true
}

// OriginSet reports whether SetOrigin has been called.
func (f *Filter15) OriginSet() bool { return f.originSet }

// Origin reports the anchored ENU tangent-frame origin. Only valid
// once OriginSet reports true.
func (f *Filter15) Origin() (lat, lon float64) { return f.originLat, f.originLon }

// Heading reports the current heading estimate in radians, used by
// callers (Filter6's world-frame accel rotation) that need the ES-EKF's
// orientation without pulling a full View.
func (f *Filter15) Heading() float64 { return f.x.AtVec(types.IdxHeading) }

// Predict advances the nominal state by dt, integrating heading from
// heading-rate (and gyro-z when gyroFresh), reprojecting horizontal
// velocity onto the heading (forward-only motion coupling), and
// applying the gravity-well damping to vertical velocity absent
// altitude evidence.
func (f *Filter15) Predict(dt float64, gyroZ float64, gyroFresh bool) {
	if dt <= 0 {
		return
	}

	heading := f.x.AtVec(types.IdxHeading)
	headingRate := f.x.AtVec(types.IdxHeadingRate)
	gyroBiasZ := f.x.AtVec(types.IdxGyroBiasZ)

	newHeading := heading + headingRate*dt
	if gyroFresh {
		newHeading += (gyroZ - gyroBiasZ) * dt
	}
	f.x.SetVec(types.IdxHeading, wrapAngle(newHeading))

	vx := f.x.AtVec(types.IdxVX)
	vy := f.x.AtVec(types.IdxVY)
	speed := math.Hypot(vx, vy)
	f.x.SetVec(types.IdxVX, speed*math.Cos(newHeading))
	f.x.SetVec(types.IdxVY, speed*math.Sin(newHeading))

	vz := f.x.AtVec(types.IdxVZ)
	vz *= math.Exp(-f.cfg.GravityWellRate * dt)
	f.x.SetVec(types.IdxVZ, vz)

	px := f.x.AtVec(types.IdxPX)
	py := f.x.AtVec(types.IdxPY)
	pz := f.x.AtVec(types.IdxPZ)
	f.x.SetVec(types.IdxPX, px+f.x.AtVec(types.IdxVX)*dt)
	f.x.SetVec(types.IdxPY, py+f.x.AtVec(types.IdxVY)*dt)
	f.x.SetVec(types.IdxPZ, pz+vz*dt)

	F := f.buildTransitionJacobian(dt, newHeading, speed)

	var FP mat.Dense
	FP.Mul(F, f.p)
	var FPFt mat.Dense
	FPFt.Mul(&FP, F.T())

	q := f.processNoise(dt)
	pdata := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := FPFt.At(i, j)
			if i == j {
				v += q[i]
			}
			pdata[i*dim+j] = v
			pdata[j*dim+i] = v
		}
	}
	f.p = mat.NewSymDense(dim, pdata)

	if kalman.ClampTrace(f.p, f.cfg.PMax) {
		f.rescaleEvents++
	}
}

func (f *Filter15) buildTransitionJacobian(dt, heading, speed float64) *mat.Dense {
	F := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		F.Set(i, i, 1.0)
	}

	F.Set(types.IdxPX, types.IdxVX, dt)
	F.Set(types.IdxPY, types.IdxVY, dt)
	F.Set(types.IdxPZ, types.IdxVZ, dt)

	F.Set(types.IdxVX, types.IdxHeading, -speed*math.Sin(heading)*dt)
	F.Set(types.IdxVY, types.IdxHeading, speed*math.Cos(heading)*dt)

	F.Set(types.IdxHeading, types.IdxHeadingRate, dt)
	F.Set(types.IdxHeading, types.IdxGyroBiasZ, -dt)

	F.Set(types.IdxVZ, types.IdxVZ, math.Exp(-f.cfg.GravityWellRate*dt))

	return F
}

func (f *Filter15) processNoise(dt float64) [dim]float64 {
	var q [dim]float64
	q[types.IdxPX] = f.cfg.QPos * dt
	q[types.IdxPY] = f.cfg.QPos * dt
	q[types.IdxPZ] = f.cfg.QPos * dt
	q[types.IdxVX] = f.cfg.QVel * dt
	q[types.IdxVY] = f.cfg.QVel * dt
	q[types.IdxVZ] = f.cfg.QVel * dt
	q[types.IdxHeading] = f.cfg.QHeading * dt
	q[types.IdxHeadingRate] = f.cfg.QHeadingRate * dt
	q[types.IdxAccelBiasX] = f.cfg.QAccelBias * dt
	q[types.IdxAccelBiasY] = f.cfg.QAccelBias * dt
	q[types.IdxAccelBiasZ] = f.cfg.QAccelBias * dt
	q[types.IdxGyroBiasX] = f.cfg.QGyroBias * dt
	q[types.IdxGyroBiasY] = f.cfg.QGyroBias * dt
	q[types.IdxGyroBiasZ] = f.cfg.QGyroBias * dt
	q[types.IdxSlack] = 0
	return q
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// UpdateGPSPosition applies a GPS position residual in the local ENU
// frame. lat/lon must already have an origin set via SetOrigin.
func (f *Filter15) UpdateGPSPosition(lat, lon float64, altitude *float64, sigmaHoriz float64) bool {
	east, north := ToENU(lat, lon, f.originLat, f.originLon)

	if altitude != nil {
		H := mat.NewDense(3, dim, nil)
		H.Set(0, types.IdxPX, 1)
		H.Set(1, types.IdxPY, 1)
		H.Set(2, types.IdxPZ, 1)
		z := mat.NewVecDense(3, []float64{east, north, *altitude})
		sigmaZ := sigmaHoriz * 2.0
		Rcov := mat.NewSymDense(3, []float64{
			sigmaHoriz * sigmaHoriz, 0, 0,
			0, sigmaHoriz * sigmaHoriz, 0,
			0, 0, sigmaZ * sigmaZ,
		})
		return f.applyGated(H, z, Rcov)
	}

	H := mat.NewDense(2, dim, nil)
	H.Set(0, types.IdxPX, 1)
	H.Set(1, types.IdxPY, 1)
	z := mat.NewVecDense(2, []float64{east, north})
	Rcov := mat.NewSymDense(2, []float64{sigmaHoriz * sigmaHoriz, 0, 0, sigmaHoriz * sigmaHoriz})
	return f.applyGated(H, z, Rcov)
}

// UpdateGPSVelocity applies a GPS-derived velocity measurement. When
// speed is below VCourseMin the bearing is unreliable, so only the
// speed magnitude is used with inflated lateral variance.
func (f *Filter15) UpdateGPSVelocity(speed, bearingRad float64, haveBearing bool) bool {
	if !haveBearing || speed < f.cfg.VCourseMin {
		H := mat.NewDense(1, dim, nil)
		heading := f.x.AtVec(types.IdxHeading)
		H.Set(0, types.IdxVX, math.Cos(heading))
		H.Set(0, types.IdxVY, math.Sin(heading))
		z := mat.NewVecDense(1, []float64{speed})
		Rcov := mat.NewSymDense(1, []float64{25.0})
		return f.applyGated(H, z, Rcov)
	}

	vx := speed * math.Cos(bearingRad)
	vy := speed * math.Sin(bearingRad)
	H := mat.NewDense(2, dim, nil)
	H.Set(0, types.IdxVX, 1)
	H.Set(1, types.IdxVY, 1)
	z := mat.NewVecDense(2, []float64{vx, vy})
	Rcov := mat.NewSymDense(2, []float64{1.0, 0, 0, 1.0})
	return f.applyGated(H, z, Rcov)
}

// UpdateZUPT applies a zero-velocity pseudo-measurement with a small
// R, per spec section 4.G.
func (f *Filter15) UpdateZUPT() bool {
	H := mat.NewDense(2, dim, nil)
	H.Set(0, types.IdxVX, 1)
	H.Set(1, types.IdxVY, 1)
	z := mat.NewVecDense(2, []float64{0, 0})
	Rcov := mat.NewSymDense(2, []float64{0.01, 0, 0, 0.01})
	return f.applyGated(H, z, Rcov)
}

// UpdateNHC applies the non-holonomic constraint: when moving faster
// than VNHC, the body-frame lateral velocity component is constrained
// toward zero with a small R.
func (f *Filter15) UpdateNHC() bool {
	vx := f.x.AtVec(types.IdxVX)
	vy := f.x.AtVec(types.IdxVY)
	if math.Hypot(vx, vy) <= f.cfg.VNHC {
		return false
	}

	heading := f.x.AtVec(types.IdxHeading)
	H := mat.NewDense(1, dim, nil)
	H.Set(0, types.IdxVX, -math.Sin(heading))
	H.Set(0, types.IdxVY, math.Cos(heading))
	z := mat.NewVecDense(1, []float64{0})
	Rcov := mat.NewSymDense(1, []float64{f.cfg.RNHC})
	return f.applyGated(H, z, Rcov)
}

func (f *Filter15) applyGated(H *mat.Dense, z *mat.VecDense, Rcov *mat.SymDense) bool {
	xBackup := mat.VecDenseCopyOf(f.x)
	pBackup := symDataCopy15(f.p)

	innovation, S, ok, _ := kalman.JosephUpdate(f.x, f.p, H, z, Rcov)
	if !ok {
		return false
	}

	d2, err := kalman.MahalanobisSq(innovation, S)
	if err == nil && d2 > f.cfg.KMahalanobis*f.cfg.KMahalanobis {
		f.x = xBackup
		f.p = mat.NewSymDense(dim, pBackup)
		f.rejectedUpdates++
		return false
	}

	speed := math.Hypot(f.x.AtVec(types.IdxVX), f.x.AtVec(types.IdxVY))
	if speed > f.cfg.VMax {
		f.x = xBackup
		f.p = mat.NewSymDense(dim, pBackup)
		f.rejectedUpdates++
		return false
	}

	if kalman.ClampTrace(f.p, f.cfg.PMax) {
		f.rescaleEvents++
	}
	return true
}

func symDataCopy15(s *mat.SymDense) []float64 {
	data := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			data[i*dim+j] = s.At(i, j)
		}
	}
	return data
}

// RejectedUpdateCount reports how many updates failed gating since
// construction.
func (f *Filter15) RejectedUpdateCount() uint64 { return f.rejectedUpdates }

// RescaleEventCount reports how many times P's trace was clamped.
func (f *Filter15) RescaleEventCount() uint64 { return f.rescaleEvents }

// View returns the current nominal state as an EkfState15View.
func (f *Filter15) View() types.EkfState15View {
	trace := 0.0
	for i := 0; i < dim; i++ {
		trace += f.p.At(i, i)
	}
	return types.EkfState15View{
		Position:        [3]float64{f.x.AtVec(types.IdxPX), f.x.AtVec(types.IdxPY), f.x.AtVec(types.IdxPZ)},
		Velocity:        [3]float64{f.x.AtVec(types.IdxVX), f.x.AtVec(types.IdxVY), f.x.AtVec(types.IdxVZ)},
		Heading:         f.x.AtVec(types.IdxHeading),
		HeadingRate:     f.x.AtVec(types.IdxHeadingRate),
		AccelBias:       [3]float64{f.x.AtVec(types.IdxAccelBiasX), f.x.AtVec(types.IdxAccelBiasY), f.x.AtVec(types.IdxAccelBiasZ)},
		GyroBias:        [3]float64{f.x.AtVec(types.IdxGyroBiasX), f.x.AtVec(types.IdxGyroBiasY), f.x.AtVec(types.IdxGyroBiasZ)},
		CovarianceTrace: trace,
	}
}
