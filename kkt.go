// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

// solve computes the Newton direction (dx, ds, dz, dy) solving the
// linearized KKT system against the cached factorization in ws and
// the diagonal last passed to refactor, via block elimination over the
// Schur complement cached in ws.r/ws.tLU:
//
//	u      = Q⁻¹rx
//	rhs_z  = rz - rs/d - Gu
//	rhs_y  = ry - Au                      (p > 0 only)
//	t_y    = C⁻¹rhs_y                      (p > 0 only)
//	rhs_z -= (AQ⁻¹Gᵀ)ᵀ t_y                 (p > 0 only)
//	wz     = (R + diag(1/d))⁻¹ rhs_z
//	wy     = C⁻¹(rhs_y - AQ⁻¹Gᵀ wz)        (p > 0 only)
//	dx     = -u - Q⁻¹Gᵀ wz - Q⁻¹Aᵀ wy
//	ds     = -(rs + wz)/d
//	dz     = wz
//	dy     = wy                            (p > 0 only, else nil)
//
// This is a standard two-block Schur elimination of the (z,y) rows of the
// KKT matrix, kept as two independently verifiable triangular solves (via
// cLU and tLU) rather than a single merged LU over a re-pivoted combined
// block; see DESIGN.md for why that simplification was made.
func (ws *workspace) solve(rx, rs, rz, ry *VecBatch) (dx, ds, dz, dy *VecBatch) {
	if rx.B != ws.batch || rx.N != ws.n || rs.B != ws.batch || rs.N != ws.m ||
		rz.B != ws.batch || rz.N != ws.m {
		panic(ErrShape)
	}
	if ws.p > 0 && (ry == nil || ry.B != ws.batch || ry.N != ws.p) {
		panic(ErrShape)
	}

	copy(ws.u.Data, rx.Data)
	ws.qLU.solveVec(ws.u, false, ws.workers)

	batchMatVec(ws.gu, ws.u, ws.g, false, ws.workers)
	for k := 0; k < ws.batch; k++ {
		rzk, rsk, guk, dk := rz.Row(k), rs.Row(k), ws.gu.Row(k), ws.d.Row(k)
		out := ws.rhsZ.Row(k)
		for j := range out {
			out[j] = rzk[j] - rsk[j]/dk[j] - guk[j]
		}
	}

	if ws.p > 0 {
		batchMatVec(ws.au, ws.u, ws.a, false, ws.workers)
		for k := 0; k < ws.batch; k++ {
			ryk, auk := ry.Row(k), ws.au.Row(k)
			out := ws.rhsY.Row(k)
			for j := range out {
				out[j] = ryk[j] - auk[j]
			}
		}
		copy(ws.ty.Data, ws.rhsY.Data)
		ws.cLU.solveVec(ws.ty, false, ws.workers)

		a01Ty := zeroVecBatch(ws.batch, ws.m)
		batchMatVec(a01Ty, ws.ty, ws.a01, true, ws.workers)
		for i := range ws.rhsZ.Data {
			ws.rhsZ.Data[i] -= a01Ty.Data[i]
		}
	}

	copy(ws.wz.Data, ws.rhsZ.Data)
	ws.tLU.solveVec(ws.wz, false, ws.workers)

	if ws.p > 0 {
		batchMatVec(ws.a01wz, ws.wz, ws.a01, false, ws.workers)
		for i := range ws.wy.Data {
			ws.wy.Data[i] = ws.rhsY.Data[i] - ws.a01wz.Data[i]
		}
		ws.cLU.solveVec(ws.wy, false, ws.workers)
	}

	dxOut := zeroVecBatch(ws.batch, ws.n)
	batchMatVec(dxOut, ws.wz, ws.invQGt, false, ws.workers)
	if ws.p > 0 {
		ay := zeroVecBatch(ws.batch, ws.n)
		batchMatVec(ay, ws.wy, ws.invQAt, false, ws.workers)
		for i := range dxOut.Data {
			dxOut.Data[i] += ay.Data[i]
		}
	}
	for i := range dxOut.Data {
		dxOut.Data[i] = -ws.u.Data[i] - dxOut.Data[i]
	}

	dsOut := zeroVecBatch(ws.batch, ws.m)
	for k := 0; k < ws.batch; k++ {
		rsk, wzk, dk := rs.Row(k), ws.wz.Row(k), ws.d.Row(k)
		out := dsOut.Row(k)
		for j := range out {
			out[j] = -(rsk[j] + wzk[j]) / dk[j]
		}
	}

	dzOut := ws.wz.Clone()
	var dyOut *VecBatch
	if ws.p > 0 {
		dyOut = ws.wy.Clone()
	}
	return dxOut, dsOut, dzOut, dyOut
}
