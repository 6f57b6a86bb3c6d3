// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// irWorkspace is the IterativeRefinement counterpart of workspace: instead
// of caching the D-independent Schur blocks and refactoring only a small
// m×m system each iteration, it factors the full, Tikhonov-regularized KKT
// matrix
//
//	[ Q+εI    Gᵀ       Aᵀ  ]
//	[ G     -diag(d)⁻¹+εI  0 ]
//	[ A        0         -εI ]
//
// from scratch every iteration and then improves the solve with a small
// fixed number of refinement steps. It trades the LUOptimized path's
// asymptotic advantage (cache Q and the cross blocks once) for a simpler,
// more numerically forgiving system, and exists mainly so driver.go's
// result can be cross-checked against it in tests.
type irWorkspace struct {
	dims
	workers int
	regEps  float64
	steps   int

	q, g, a *Batch // borrowed from the Problem; a is nil when p=0

	full int       // size of the stacked system: n+m(+p)
	raw  *Batch    // [B, full, full] the assembled, unfactored system, kept for residual computation
	sys  *luBatch // [B, full, full] factored copy of raw
	diag *VecBatch // [B, m], the diagonal last passed to refactor

	rhs   *Batch // [B, full, 1] right-hand side scratch
	delta *Batch // [B, full, 1] residual/refinement-correction scratch
}

func newIRWorkspace(qp Problem, settings Settings) *irWorkspace {
	d := probeDims(qp)
	full := d.n + d.m + d.p
	return &irWorkspace{
		dims:    d,
		workers: settings.Concurrency,
		regEps:  settings.RegEps,
		steps:   settings.IRSteps,
		q:       qp.Q,
		g:       qp.G,
		a:       qp.A,
		full:    full,
		raw:     NewBatch(d.batch, full, full, nil),
		sys:     newLUBatch(d.batch, full),
		rhs:     NewBatch(d.batch, full, 1, nil),
		delta:   NewBatch(d.batch, full, 1, nil),
	}
}

// assemble writes the regularized full KKT matrix for diagonal d = z/s into
// ws.raw.
func (ws *irWorkspace) assemble(d *VecBatch) {
	n, m, p, full := ws.n, ws.m, ws.p, ws.full
	parallelFor(ws.batch, ws.workers, func(k int) {
		sys := ws.raw.At(k)
		for i := range sys.Data {
			sys.Data[i] = 0
		}
		qk, gk := ws.q.At(k), ws.g.At(k)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				sys.Data[i*full+j] = qk.Data[i*qk.Stride+j]
			}
			sys.Data[i*full+i] += ws.regEps
		}
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				v := gk.Data[i*gk.Stride+j]
				sys.Data[(n+i)*full+j] = v
				sys.Data[j*full+(n+i)] = v
			}
		}
		dk := d.Row(k)
		for i := 0; i < m; i++ {
			sys.Data[(n+i)*full+(n+i)] = -1/dk[i] + ws.regEps
		}
		if p > 0 {
			ak := ws.a.At(k)
			for i := 0; i < p; i++ {
				for j := 0; j < n; j++ {
					v := ak.Data[i*ak.Stride+j]
					sys.Data[(n+m+i)*full+j] = v
					sys.Data[j*full+(n+m+i)] = v
				}
				sys.Data[(n+m+i)*full+(n+m+i)] = -ws.regEps
			}
		}
	})
}

// refactor assembles and LU-factors the regularized system for the given Q
// and diagonal d, keeping the unfactored copy in ws.raw for residual
// computation during refinement. Because the system carries a
// regularization term on every diagonal block (+ε on the Q and z blocks,
// -ε on the y block) it does not share LUOptimized's
// positive-definite assumption as tightly, and is expected to succeed even
// when the unregularized Schur complement is near-singular; a failure here
// usually means Q itself is badly broken.
func (ws *irWorkspace) refactor(d *VecBatch) error {
	ws.assemble(d)
	ws.diag = d
	copy(ws.sys.mat.Data, ws.raw.Data)
	if idx := ws.sys.factorInPlace(ws.workers); idx >= 0 {
		return &RefactorError{Batch: idx}
	}
	return nil
}

// solve solves the regularized KKT system for (rx, rs, rz, ry), folding the
// rs/d elimination into the stacked right-hand side the same way
// workspace.solve does, then applies ws.steps rounds of iterative
// refinement: residual r = b - A_reg·x, correction δ = A_reg⁻¹r, x += δ.
func (ws *irWorkspace) solve(rx, rs, rz, ry *VecBatch) (dx, ds, dz, dy *VecBatch) {
	n, m, p, full := ws.n, ws.m, ws.p, ws.full
	for k := 0; k < ws.batch; k++ {
		b := ws.rhs.At(k).Data
		rxk := rx.Row(k)
		for i := 0; i < n; i++ {
			b[i] = -rxk[i]
		}
		rzk, rsk, dk := rz.Row(k), rs.Row(k), ws.diag.Row(k)
		for i := 0; i < m; i++ {
			b[n+i] = rsk[i]/dk[i] - rzk[i]
		}
		if p > 0 {
			ryk := ry.Row(k)
			out := b[n+m : full]
			for i := range out {
				out[i] = -ryk[i]
			}
		}
	}

	sol := ws.rhs.Clone()
	ws.sys.solve(sol, false, ws.workers)

	for s := 0; s < ws.steps; s++ {
		ws.residual(sol)
		ws.sys.solve(ws.delta, false, ws.workers)
		for i := range sol.Data {
			sol.Data[i] += ws.delta.Data[i]
		}
	}

	dxOut := NewVecBatch(ws.batch, n, nil)
	dzOut := NewVecBatch(ws.batch, m, nil)
	dsOut := NewVecBatch(ws.batch, m, nil)
	var dyOut *VecBatch
	if p > 0 {
		dyOut = NewVecBatch(ws.batch, p, nil)
	}
	for k := 0; k < ws.batch; k++ {
		xk := sol.At(k).Data
		copy(dxOut.Row(k), xk[:n])
		copy(dzOut.Row(k), xk[n:n+m])
		rsk, dk := rs.Row(k), ws.diag.Row(k)
		dz := xk[n : n+m]
		outS := dsOut.Row(k)
		for i := 0; i < m; i++ {
			outS[i] = -(rsk[i] + dz[i]) / dk[i]
		}
		if p > 0 {
			copy(dyOut.Row(k), xk[n+m:full])
		}
	}
	return dxOut, dsOut, dzOut, dyOut
}

// residual overwrites ws.delta's right-hand side with b - A_reg·sol, the
// defect that the next refinement step corrects for, using the unfactored
// matrix kept in ws.raw (the factored copy in ws.sys has been overwritten
// in place by Getrf and can no longer be used for matrix-vector products).
func (ws *irWorkspace) residual(sol *Batch) {
	parallelFor(ws.batch, ws.workers, func(k int) {
		a := ws.raw.At(k)
		x := sol.At(k)
		b := ws.rhs.At(k)
		out := ws.delta.At(k)
		copy(out.Data, b.Data)
		blas64.Gemv(blas.NoTrans, -1, a, blas64.Vector{N: ws.full, Inc: 1, Data: x.Data}, 1,
			blas64.Vector{N: ws.full, Inc: 1, Data: out.Data})
	})
}
