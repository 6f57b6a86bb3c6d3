// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

// workspace is the cached, per-solve state of the KKT factorization. It is
// built once by preFactor and then driven through many refactor/solve
// calls, one pair per main-loop iteration, so that
// everything not depending on the current (s, z) iterate — the
// factorization of Q, and the Schur-complement blocks built from Q, G and
// A — is computed exactly once per Solve invocation rather than on every
// iteration. This caching split is the central performance invariant of
// the whole package: see DESIGN.md for why it is preserved even though the
// block layout below uses two independently-factored Schur pieces rather
// than a single merged pivot array.
//
// Unlike mat/pool.go's process-wide sync.Pool of scratch matrices, a
// workspace belongs to exactly one Solve call and is discarded when it
// returns; nothing here is safe to share across concurrent solves.
type workspace struct {
	dims
	workers int

	g *Batch // [B,m,n], borrowed from the Problem, read-only
	a *Batch // [B,p,n], borrowed from the Problem, read-only; nil when p=0

	qLU *luBatch // size n, factors Q

	invQGt *Batch // [B,n,m] = Q⁻¹Gᵀ, cached
	invQAt *Batch // [B,n,p] = Q⁻¹Aᵀ, cached; nil when p=0

	cLU *luBatch // size p, factors C = AQ⁻¹Aᵀ; nil when p=0
	a01 *Batch   // [B,p,m] = AQ⁻¹Gᵀ; nil when p=0

	r   *Batch   // [B,m,m] = GQ⁻¹Gᵀ - (AQ⁻¹Gᵀ)ᵀC⁻¹(AQ⁻¹Gᵀ), the D-independent Schur block
	tLU *luBatch // size m, factors R + diag(1/d); refactored every iteration

	d *VecBatch // [B,m], the diagonal last passed to refactor

	// scratch reused across solve calls within the same workspace.
	u, gu, rhsZ, wz *VecBatch
	au, rhsY, ty, a01wz, wy *VecBatch
}

// preFactor builds a workspace from qp:
//  1. LU-factor Q.
//  2. invQGt = Q⁻¹Gᵀ, invQAt = Q⁻¹Aᵀ (if p>0), via triangular solves against
//     the cached Q factorization.
//  3. R, the D-independent part of the (z,y) Schur complement, built from
//     G, A and the two solves above.
//
// It returns a *NotPositiveDefiniteError naming the first batch element
// whose Q (or, when p>0, whose AQ⁻¹Aᵀ) failed to factor.
func preFactor(qp Problem, settings Settings) (*workspace, error) {
	d := probeDims(qp)
	ws := &workspace{dims: d, workers: settings.Concurrency, g: qp.G, a: qp.A}

	ws.qLU = newLUBatch(d.batch, d.n)
	if idx := ws.qLU.factor(qp.Q, ws.workers); idx >= 0 {
		return nil, &NotPositiveDefiniteError{Batch: idx}
	}

	gt := NewBatch(d.batch, d.n, d.m, nil)
	batchTranspose(gt, qp.G, ws.workers)
	ws.qLU.solve(gt, false, ws.workers) // gt: Q⁻¹Gᵀ
	ws.invQGt = gt

	gInvQGt := NewBatch(d.batch, d.m, d.m, nil)
	batchMatMul(gInvQGt, qp.G, gt, false, false, ws.workers)

	if d.p == 0 {
		ws.r = gInvQGt
		ws.tLU = newLUBatch(d.batch, d.m)
		ws.u = zeroVecBatch(d.batch, d.n)
		ws.gu = zeroVecBatch(d.batch, d.m)
		ws.rhsZ = zeroVecBatch(d.batch, d.m)
		ws.wz = zeroVecBatch(d.batch, d.m)
		return ws, nil
	}

	at := NewBatch(d.batch, d.n, d.p, nil)
	batchTranspose(at, qp.A, ws.workers)
	ws.qLU.solve(at, false, ws.workers) // at: Q⁻¹Aᵀ
	ws.invQAt = at

	c := NewBatch(d.batch, d.p, d.p, nil)
	batchMatMul(c, qp.A, at, false, false, ws.workers)
	ws.cLU = newLUBatch(d.batch, d.p)
	if idx := ws.cLU.factor(c, ws.workers); idx >= 0 {
		return nil, &NotPositiveDefiniteError{Batch: idx}
	}

	ws.a01 = NewBatch(d.batch, d.p, d.m, nil)
	batchMatMul(ws.a01, qp.A, gt, false, false, ws.workers)

	cInvA01 := ws.a01.Clone()
	ws.cLU.solve(cInvA01, false, ws.workers) // cInvA01: C⁻¹(AQ⁻¹Gᵀ)

	a01T := NewBatch(d.batch, d.m, d.p, nil)
	batchTranspose(a01T, ws.a01, ws.workers)

	schur := NewBatch(d.batch, d.m, d.m, nil)
	batchMatMul(schur, a01T, cInvA01, false, false, ws.workers)
	for i := range schur.Data {
		schur.Data[i] = gInvQGt.Data[i] - schur.Data[i]
	}
	ws.r = schur

	ws.tLU = newLUBatch(d.batch, d.m)
	ws.u = zeroVecBatch(d.batch, d.n)
	ws.gu = zeroVecBatch(d.batch, d.m)
	ws.rhsZ = zeroVecBatch(d.batch, d.m)
	ws.wz = zeroVecBatch(d.batch, d.m)
	ws.au = zeroVecBatch(d.batch, d.p)
	ws.rhsY = zeroVecBatch(d.batch, d.p)
	ws.ty = zeroVecBatch(d.batch, d.p)
	ws.a01wz = zeroVecBatch(d.batch, d.p)
	ws.wy = zeroVecBatch(d.batch, d.p)
	return ws, nil
}

// refactor rebuilds and factors T = R + diag(1/d), the only part of the
// KKT system that depends on the current iterate. d must be z/s: solve
// (kkt.go) uses the stored d in the rs/d term of the reduced right-hand
// side and recovers ds = -(rs + dz)/d from it.
func (ws *workspace) refactor(d *VecBatch) error {
	if d.B != ws.batch || d.N != ws.m {
		panic(ErrShape)
	}
	copy(ws.tLU.mat.Data, ws.r.Data)
	for k := 0; k < ws.batch; k++ {
		row := d.Row(k)
		tk := ws.tLU.mat.At(k)
		for j := 0; j < ws.m; j++ {
			tk.Data[j*tk.Stride+j] += 1.0 / row[j]
		}
	}
	ws.d = d
	if idx := ws.tLU.factorInPlace(ws.workers); idx >= 0 {
		return &RefactorError{Batch: idx}
	}
	return nil
}
