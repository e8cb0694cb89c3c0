// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

// State indices for the 6-state [px, vx, ax, py, vy, ay] layout.
const (
	idxPX = iota
	idxVX
	idxAX
	idxPY
	idxVY
	idxAY
)

// Config6 holds the tunables for the 6-state filter named in spec
// section 4.E.
type Config6 struct {
	QAccel       float64 // process noise spectral density on acceleration
	SigmaGPSMin  float64
	SigmaGPSMax  float64
	KMahalanobis float64 // innovation gate, in sigma
	VCourseMin   float64 // minimum speed for GPS-derived course fallback
}

// DefaultConfig6 returns the filter tuning used when none is supplied.
func DefaultConfig6() Config6 {
	return Config6{
		QAccel:       0.5,
		SigmaGPSMin:  1.5,
		SigmaGPSMax:  50.0,
		KMahalanobis: 5.0,
		VCourseMin:   1.0,
	}
}

// Filter6 is the 6-state constant-acceleration Kalman filter over 2D
// position/velocity/acceleration.
type Filter6 struct {
	cfg   Config6
	state types.FilterState6
	x     *mat.VecDense
	p     *mat.SymDense

	rejectedUpdates uint64
}

// NewFilter6 constructs a filter initialized at the origin with a wide
// prior covariance.
func NewFilter6(cfg Config6) *Filter6 {
	f := &Filter6{cfg: cfg}
	f.x = mat.NewVecDense(6, nil)
	pdata := make([]float64, 36)
	for i := 0; i < 6; i++ {
		pdata[i*6+i] = 100.0
	}
	f.p = mat.NewSymDense(6, pdata)
	return f
}

// Predict advances the state by dt using the constant-acceleration
// transition F = block_diag(F2, F2). A non-positive dt is a no-op, per
// the tie-break rule in spec section 4.E.
func (f *Filter6) Predict(dt float64) {
	if dt <= 0 {
		return
	}

	F := mat.NewDense(6, 6, nil)
	f2 := [3][3]float64{
		{1, dt, 0.5 * dt * dt},
		{0, 1, dt},
		{0, 0, 1},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			F.Set(i, j, f2[i][j])
			F.Set(i+3, j+3, f2[i][j])
		}
	}

	var predicted mat.VecDense
	predicted.MulVec(F, f.x)
	f.x.CopyVec(&predicted)

	var FP mat.Dense
	FP.Mul(F, f.p)
	var FPFt mat.Dense
	FPFt.Mul(&FP, F.T())

	q := discreteWhiteNoiseBlock(dt, f.cfg.QAccel)
	pdata := make([]float64, 36)
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			v := FPFt.At(i, j) + q[i][j]
			pdata[i*6+j] = v
			pdata[j*6+i] = v
		}
	}
	f.p = mat.NewSymDense(6, pdata)
	f.state.LastUpdateTimestamp += dt
}

// discreteWhiteNoiseBlock builds the 6x6 discrete white-noise-on-
// acceleration process noise, block_diag of two 3x3 blocks scaled by
// qAccel^2.
func discreteWhiteNoiseBlock(dt, qAccel float64) [6][6]float64 {
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	q2 := qAccel * qAccel

	block := [3][3]float64{
		{dt4 / 4, dt3 / 2, dt2 / 2},
		{dt3 / 2, dt2, dt},
		{dt2 / 2, dt, 1},
	}
	for i := range block {
		for j := range block[i] {
			block[i][j] *= q2
		}
	}

	var out [6][6]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = block[i][j]
			out[i+3][j+3] = block[i][j]
		}
	}
	return out
}

// UpdateGPS applies a GPS position measurement, clamping sigma to
// [SigmaGPSMin, SigmaGPSMax] based on the fix's reported accuracy.
// Returns false if the innovation failed the Mahalanobis gate.
func (f *Filter6) UpdateGPS(px, py float64, accuracy *float64) bool {
	sigma := f.cfg.SigmaGPSMax
	if accuracy != nil {
		sigma = clamp(*accuracy, f.cfg.SigmaGPSMin, f.cfg.SigmaGPSMax)
	}

	H := mat.NewDense(2, 6, nil)
	H.Set(0, idxPX, 1)
	H.Set(1, idxPY, 1)

	z := mat.NewVecDense(2, []float64{px, py})
	Rcov := mat.NewSymDense(2, []float64{sigma * sigma, 0, 0, sigma * sigma})

	return f.applyGated(H, z, Rcov)
}

// UpdateAccel applies a world-frame horizontal acceleration
// measurement (already rotated out of body frame by the caller using
// the latest heading estimate).
func (f *Filter6) UpdateAccel(ax, ay, sigmaAccel float64) bool {
	H := mat.NewDense(2, 6, nil)
	H.Set(0, idxAX, 1)
	H.Set(1, idxAY, 1)

	z := mat.NewVecDense(2, []float64{ax, ay})
	Rcov := mat.NewSymDense(2, []float64{sigmaAccel * sigmaAccel, 0, 0, sigmaAccel * sigmaAccel})

	return f.applyGated(H, z, Rcov)
}

func (f *Filter6) applyGated(H *mat.Dense, z *mat.VecDense, Rcov *mat.SymDense) bool {
	xCopy := mat.VecDenseCopyOf(f.x)
	pData := symDataCopy(f.p)

	innovation, S, ok, _ := JosephUpdate(f.x, f.p, H, z, Rcov)
	if !ok {
		return false
	}

	d2, err := MahalanobisSq(innovation, S)
	if err == nil && d2 > f.cfg.KMahalanobis*f.cfg.KMahalanobis {
		f.x = xCopy
		n, _ := f.p.Dims()
		f.p = mat.NewSymDense(n, pData)
		f.rejectedUpdates++
		return false
	}
	return true
}

func symDataCopy(s *mat.SymDense) []float64 {
	n, _ := s.Dims()
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data[i*n+j] = s.At(i, j)
		}
	}
	return data
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// View returns the current state as an Ekf6dView for assembly into a
// FusedReading.
func (f *Filter6) View() types.Ekf6dView {
	trace := 0.0
	n, _ := f.p.Dims()
	for i := 0; i < n; i++ {
		trace += f.p.At(i, i)
	}
	return types.Ekf6dView{
		Position:        [2]float64{f.x.AtVec(idxPX), f.x.AtVec(idxPY)},
		Velocity:        [2]float64{f.x.AtVec(idxVX), f.x.AtVec(idxVY)},
		Acceleration:    [2]float64{f.x.AtVec(idxAX), f.x.AtVec(idxAY)},
		CovarianceTrace: trace,
	}
}

// RejectedUpdateCount reports how many updates failed the Mahalanobis
// gate since construction, exposed to observability.
func (f *Filter6) RejectedUpdateCount() uint64 { return f.rejectedUpdates }
