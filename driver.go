// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// stepScale is the fraction-to-boundary safety factor applied to the raw
// step-length oracle result, keeping iterates strictly inside the
// nonnegative orthant rather than landing exactly on its boundary.
const stepScale = 0.999

// kktSolver is implemented by both workspace (LUOptimized) and irWorkspace
// (IterativeRefinement), so the main loop in Solve does not need to know
// which KKT strategy Settings.Solver selected.
type kktSolver interface {
	refactor(d *VecBatch) error
	solve(rx, rs, rz, ry *VecBatch) (dx, ds, dz, dy *VecBatch)
}

// Solve runs the batched Mehrotra predictor-corrector interior-point method
// against qp, returning the best-so-far iterate found for every
// batch element along with a Status summarizing how the run ended.
//
// The only error Solve returns is *NotPositiveDefiniteError, raised when Q
// (or, with equality constraints present, AQ⁻¹Aᵀ) cannot be factored for
// one or more batch elements during pre-factorization; every other outcome
// (iteration limit, divergence, a mid-run refactor failure) is reported
// through Result.Status instead, mirroring gonum/optimize's split between
// Minimize's error return and its Result.Status.
func Solve(qp Problem, settings Settings) (Result, error) {
	settings = settings.withDefaults()
	d := probeDims(qp)

	var solver kktSolver
	switch settings.Solver {
	case IterativeRefinement:
		solver = newIRWorkspace(qp, settings)
	default:
		ws, err := preFactor(qp, settings)
		if err != nil {
			return Result{}, err
		}
		solver = ws
	}

	x := zeroVecBatch(d.batch, d.n)
	s := zeroVecBatch(d.batch, d.m)
	z := zeroVecBatch(d.batch, d.m)
	var y *VecBatch
	if d.p > 0 {
		y = zeroVecBatch(d.batch, d.p)
	}
	ones := zeroVecBatch(d.batch, d.m)
	for i := range ones.Data {
		ones.Data[i] = 1
	}
	if err := solver.refactor(ones); err != nil {
		return Result{Status: RefactorFailed}, nil
	}
	negH := qp.H.Clone()
	floats.Scale(-1, negH.Data)
	var negB *VecBatch
	if d.p > 0 {
		negB = qp.Bv.Clone()
		floats.Scale(-1, negB.Data)
	}
	x0, s0, z0, y0 := solver.solve(qp.P, zeroVecBatch(d.batch, d.m), negH, negB)
	copy(x.Data, x0.Data)
	copy(s.Data, s0.Data)
	copy(z.Data, z0.Data)
	if d.p > 0 {
		copy(y.Data, y0.Data)
	}
	shiftToFeasible(s)
	shiftToFeasible(z)

	best := newBestTracker(d.batch, d.n, d.m, d.p)
	var iter, notImproved int
	var printer *iterPrinter
	if settings.Verbose > 0 {
		printer = newIterPrinter(settings.Output)
		printer.init()
	}

loop:
	for iter = 0; iter < settings.MaxIter; iter++ {
		rx, ry, rz, mu := residuals(qp, x, s, z, y, settings.Concurrency)

		dvec := zeroVecBatch(d.batch, d.m)
		for k := 0; k < d.batch; k++ {
			zk, sk := z.Row(k), s.Row(k)
			out := dvec.Row(k)
			for j := range out {
				out[j] = zk[j] / sk[j]
			}
		}
		if err := solver.refactor(dvec); err != nil {
			best.status = RefactorFailed
			break loop
		}

		if best.update(x, s, z, y, rx, ry, rz, mu) {
			notImproved = 0
		} else {
			notImproved++
		}
		if printer != nil {
			printer.record(iter, meanPrimalResid(rz, ry), meanDualResid(rx), floats.Sum(mu)/float64(len(mu)))
		}
		if best.allDiverged {
			break loop
		}
		if best.worst < settings.Eps {
			break loop
		}
		if notImproved >= settings.NotImprovedLim {
			break loop
		}

		// Affine (predictor) step: rs = z, since the complementarity row's
		// residual is z, not s∘z, consistent with how the row was
		// eliminated in pre-factorization.
		dxAff, dsAff, dzAff, dyAff := solver.solve(rx, z, rz, ry)
		if exceedsDirectionLimit(settings.MaxDirectionNorm, dxAff, dsAff, dzAff, dyAff) {
			best.status = Diverged
			break loop
		}

		alphaAff := clampStep(combinedStepLength(s, dsAff, z, dzAff))
		muAff := affineMu(s, dsAff, z, dzAff, alphaAff)
		sigma := make([]float64, d.batch)
		for k := range sigma {
			ratio := muAff[k] / mu[k]
			sigma[k] = ratio * ratio * ratio
		}

		// Corrector step. Because solve is linear in (rx, rs, rz, ry) for
		// a fixed factorization, solving with the summed right-hand side —
		// rs = z plus the corrector's rs term, rx/rz/ry unchanged since the
		// corrector's are zero — yields the affine direction plus the
		// corrector direction directly, so no separate addition of the two
		// directions is needed.
		rsCorr := zeroVecBatch(d.batch, d.m)
		for k := 0; k < d.batch; k++ {
			zk, sk, dsk, dzk := z.Row(k), s.Row(k), dsAff.Row(k), dzAff.Row(k)
			out := rsCorr.Row(k)
			sigMu := sigma[k] * mu[k]
			for j := range out {
				out[j] = zk[j] + (dsk[j]*dzk[j]-sigMu)/sk[j]
			}
		}

		dx, ds, dz, dy := solver.solve(rx, rsCorr, rz, ry)
		if exceedsDirectionLimit(settings.MaxDirectionNorm, dx, ds, dz, dy) {
			best.status = Diverged
			break loop
		}

		alpha := combinedStepLength(s, ds, z, dz)
		for k := range alpha {
			alpha[k] *= stepScale
		}
		alpha = clampStep(alpha)
		for k := 0; k < d.batch; k++ {
			a := alpha[k]
			axpy(x.Row(k), a, dx.Row(k))
			axpy(s.Row(k), a, ds.Row(k))
			axpy(z.Row(k), a, dz.Row(k))
			if d.p > 0 {
				axpy(y.Row(k), a, dy.Row(k))
			}
		}
	}

	status := best.status
	if status == NotTerminated {
		switch {
		case best.allDiverged:
			status = Diverged
		case best.worst < settings.Eps:
			status = Converged
		case iter >= settings.MaxIter:
			status = IterationLimit
		default:
			status = NotImproved
		}
	}

	res := Result{
		X:      best.x,
		S:      best.s,
		Z:      best.z,
		Y:      best.y,
		Status: status,
		Stats:  Stats{Iterations: iter, MaxResid: best.resid},
	}
	for _, r := range best.resid {
		if r > 1.0 {
			res.Inaccurate = true
			break
		}
	}
	if res.Inaccurate && settings.Verbose >= 0 {
		fmt.Fprintln(settings.Output, "qpth warning: returning an inaccurate solution; "+
			"the problem may be infeasible or ill-conditioned")
	}
	return res, nil
}

// residuals computes, for every batch element, the KKT residuals
//
//	rx = Qx + p + Gᵀz + Aᵀy
//	ry = Ax - b                  (only when p > 0)
//	rz = Gx + s - h
//
// and the duality measure mu = (s·z)/m.
func residuals(qp Problem, x, s, z *VecBatch, y *VecBatch, workers int) (rx, ry, rz *VecBatch, mu []float64) {
	d := probeDims(qp)
	rx = zeroVecBatch(d.batch, d.n)
	batchMatVec(rx, x, qp.Q, false, workers)
	gtz := zeroVecBatch(d.batch, d.n)
	batchMatVec(gtz, z, qp.G, true, workers)
	for i := range rx.Data {
		rx.Data[i] += qp.P.Data[i] + gtz.Data[i]
	}
	if d.p > 0 {
		aty := zeroVecBatch(d.batch, d.n)
		batchMatVec(aty, y, qp.A, true, workers)
		for i := range rx.Data {
			rx.Data[i] += aty.Data[i]
		}
		ry = zeroVecBatch(d.batch, d.p)
		batchMatVec(ry, x, qp.A, false, workers)
		for i := range ry.Data {
			ry.Data[i] -= qp.Bv.Data[i]
		}
	}
	rz = zeroVecBatch(d.batch, d.m)
	batchMatVec(rz, x, qp.G, false, workers)
	for i := range rz.Data {
		rz.Data[i] += s.Data[i] - qp.H.Data[i]
	}
	mu = make([]float64, d.batch)
	for k := 0; k < d.batch; k++ {
		mu[k] = floats.Dot(s.Row(k), z.Row(k)) / float64(d.m)
	}
	return rx, ry, rz, mu
}

// meanDualResid returns the batch mean of ‖rx‖₂, the stationarity residual.
func meanDualResid(rx *VecBatch) float64 {
	var sum float64
	for k := 0; k < rx.B; k++ {
		sum += floats.Norm(rx.Row(k), 2)
	}
	return sum / float64(rx.B)
}

// meanPrimalResid returns the batch mean of ‖rz‖₂+‖ry‖₂, the combined
// inequality and equality feasibility residual (ry is nil when p = 0).
func meanPrimalResid(rz, ry *VecBatch) float64 {
	var sum float64
	for k := 0; k < rz.B; k++ {
		r := floats.Norm(rz.Row(k), 2)
		if ry != nil {
			r += floats.Norm(ry.Row(k), 2)
		}
		sum += r
	}
	return sum / float64(rz.B)
}

// shiftToFeasible implements the standard initial-point heuristic: shift v
// so every component is strictly positive, adding 1 beyond whatever
// violation was present. It is applied separately to s and z after the
// unconstrained initial solve.
func shiftToFeasible(v *VecBatch) {
	for k := 0; k < v.B; k++ {
		row := v.Row(k)
		min, _ := floats.Min(row)
		shift := 0.0
		if min < 0 {
			shift = -min
		}
		for j := range row {
			row[j] += 1 + shift
		}
	}
}

// clampStep clips every step-length candidate to [0, 1]: values above 1
// become 1 and non-positive values become 0.
func clampStep(a []float64) []float64 {
	for i, v := range a {
		if v > 1 {
			a[i] = 1
		}
		if v <= 0 {
			a[i] = 0
		}
	}
	return a
}

// combinedStepLength returns, per batch element, min(stepLength(s, ds),
// stepLength(z, dz)) — the single combined step length applied to every one
// of (x, s, z, y) together, rather than separate primal and dual step
// lengths.
func combinedStepLength(s, ds, z, dz *VecBatch) []float64 {
	ls := stepLength(s, ds)
	lz := stepLength(z, dz)
	out := make([]float64, len(ls))
	for k := range out {
		out[k] = math.Min(ls[k], lz[k])
	}
	return out
}

// affineMu computes the duality measure that would result from taking the
// affine step at its own (unscaled) combined step length alpha:
// (s+αds)ᵀ(z+αdz) / m. Solve derives σ = (affineMu/μ)³ from it.
func affineMu(s, ds, z, dz *VecBatch, alpha []float64) []float64 {
	m := s.N
	out := make([]float64, s.B)
	for k := 0; k < s.B; k++ {
		sk, dsk, zk, dzk := s.Row(k), ds.Row(k), z.Row(k), dz.Row(k)
		a := alpha[k]
		var sum float64
		for j := 0; j < m; j++ {
			sum += (sk[j] + a*dsk[j]) * (zk[j] + a*dzk[j])
		}
		out[k] = sum / float64(m)
	}
	return out
}

// axpy computes dst += alpha*src in place.
func axpy(dst []float64, alpha float64, src []float64) {
	floats.AddScaled(dst, alpha, src)
}

// exceedsDirectionLimit reports whether any component of the Newton
// direction exceeds Settings.MaxDirectionNorm in absolute value. This
// guards the step-length oracle against the degenerate case where every
// component of a batch element's dv is step-ineligible: rather than
// silently accepting an unbounded direction, Solve treats it as divergence.
func exceedsDirectionLimit(limit float64, vecs ...*VecBatch) bool {
	for _, v := range vecs {
		if v == nil {
			continue
		}
		for _, x := range v.Data {
			if math.Abs(x) > limit {
				return true
			}
		}
	}
	return false
}
