// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package kalman implements the 6-state constant-acceleration linear
// Kalman filter from spec section 4.E, and the Joseph-form covariance
// update shared with the 15-state ES-EKF in internal/ekf. The matrix
// idiom (mat.Dense/mat.SymDense, symmetrize-by-averaging before storing
// as SymDense) follows the fusion EKF in the reference gonum-based
// fusion engine this module was modeled on.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// JosephUpdate performs one measurement update of the form
//
//	y = z - H*x                     (innovation)
//	S = H*P*Hᵀ + R                  (innovation covariance)
//	K = P*Hᵀ*S⁻¹                    (Kalman gain)
//	x = x + K*y
//	P = (I-KH)*P*(I-KH)ᵀ + K*R*Kᵀ   (Joseph form)
//
// in place on x and P, and returns the innovation and its covariance
// (useful for Mahalanobis gating by the caller before committing). If
// S is singular, a small epsilon is added to its diagonal before
// inversion; if it is still singular the update is skipped and ok is
// false.
func JosephUpdate(x *mat.VecDense, P *mat.SymDense, H *mat.Dense, z *mat.VecDense, Rcov *mat.SymDense) (innovation *mat.VecDense, S *mat.SymDense, ok bool, err error) {
	n, _ := H.Dims()
	_ = n

	var HP mat.Dense
	HP.Mul(H, P)

	var HPHt mat.Dense
	HPHt.Mul(&HP, H.T())

	rows, cols := HPHt.Dims()
	Sdense := mat.NewDense(rows, cols, nil)
	Sdense.Add(&HPHt, Rcov)

	var Sinv mat.Dense
	if err := Sinv.Inverse(Sdense); err != nil {
		// Regularize and retry once.
		for i := 0; i < rows; i++ {
			Sdense.Set(i, i, Sdense.At(i, i)+1e-9)
		}
		if err := Sinv.Inverse(Sdense); err != nil {
			return nil, nil, false, nil
		}
	}

	var Hx mat.VecDense
	Hx.MulVec(H, x)

	y := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		y.SetVec(i, z.AtVec(i)-Hx.AtVec(i))
	}

	var PHt mat.Dense
	PHt.Mul(P, H.T())

	var K mat.Dense
	K.Mul(&PHt, &Sinv)

	var correction mat.VecDense
	correction.MulVec(&K, y)
	x.AddVec(x, &correction)

	nDim, _ := P.Dims()
	I := mat.NewDense(nDim, nDim, nil)
	for i := 0; i < nDim; i++ {
		I.Set(i, i, 1.0)
	}

	var KH mat.Dense
	KH.Mul(&K, H)

	var ImKH mat.Dense
	ImKH.Sub(I, &KH)

	var ImKHT mat.Dense
	ImKHT.CloneFrom(ImKH.T())

	var left mat.Dense
	left.Mul(&ImKH, P)

	var term1 mat.Dense
	term1.Mul(&left, &ImKHT)

	var KR mat.Dense
	KR.Mul(&K, Rcov)

	var KT mat.Dense
	KT.CloneFrom(K.T())

	var term2 mat.Dense
	term2.Mul(&KR, &KT)

	var Pnew mat.Dense
	Pnew.Add(&term1, &term2)

	symData := make([]float64, nDim*nDim)
	for i := 0; i < nDim; i++ {
		for j := i; j < nDim; j++ {
			avg := (Pnew.At(i, j) + Pnew.At(j, i)) / 2.0
			symData[i*nDim+j] = avg
			symData[j*nDim+i] = avg
		}
	}
	*P = *mat.NewSymDense(nDim, symData)

	SsymData := make([]float64, rows*rows)
	for i := 0; i < rows; i++ {
		for j := i; j < rows; j++ {
			avg := (Sdense.At(i, j) + Sdense.At(j, i)) / 2.0
			SsymData[i*rows+j] = avg
			SsymData[j*rows+i] = avg
		}
	}

	return y, mat.NewSymDense(rows, SsymData), true, nil
}

// MahalanobisSq computes yᵀ S⁻¹ y for an innovation y and its
// covariance S, used to gate updates against k_mahalanobis sigma
// (spec sections 4.E and 4.F).
func MahalanobisSq(y *mat.VecDense, S *mat.SymDense) (float64, error) {
	n, _ := S.Dims()
	Sdense := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			Sdense.Set(i, j, S.At(i, j))
		}
	}
	var Sinv mat.Dense
	if err := Sinv.Inverse(Sdense); err != nil {
		return 0, fmt.Errorf("kalman: mahalanobis: singular S: %w", err)
	}
	var Siy mat.VecDense
	Siy.MulVec(&Sinv, y)
	return mat.Dot(y, &Siy), nil
}

// ClampTrace rescales P so tr(P) <= maxTrace, reporting whether a
// rescale occurred (spec section 4.F numerical safeguards).
func ClampTrace(P *mat.SymDense, maxTrace float64) (rescaled bool) {
	n, _ := P.Dims()
	trace := 0.0
	for i := 0; i < n; i++ {
		trace += P.At(i, i)
	}
	if trace <= maxTrace || trace == 0 {
		return false
	}
	scale := maxTrace / trace
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := P.At(i, j) * scale
			data[i*n+j] = v
			data[j*n+i] = v
		}
	}
	*P = *mat.NewSymDense(n, data)
	return true
}
