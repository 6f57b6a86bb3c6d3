// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// divergeThreshold is the duality-measure magnitude beyond which a batch
// element is considered diverged rather than merely slow (min μ > 1e100).
const divergeThreshold = 1e100

// bestTracker holds the best-so-far iterate and residual for every batch
// element across main-loop iterations. A batched solve runs all B
// instances in lockstep (there is no cheap way to drop a converged
// instance out of a dense batched GEMM), so every instance keeps iterating
// even after it has individually converged or stalled; bestTracker is what
// lets Solve still report each instance's own best answer rather than
// whatever the lockstep loop last computed for it.
type bestTracker struct {
	x, s, z, y *VecBatch // best-so-far iterate per batch element
	resid      []float64 // best-so-far total residual per batch element

	worst       float64 // max over batch of resid
	allDiverged bool
	status      Status // set to RefactorFailed/Diverged by the caller on early exit
}

func newBestTracker(b, n, m, p int) *bestTracker {
	t := &bestTracker{
		resid: make([]float64, b),
		x:     zeroVecBatch(b, n),
		s:     zeroVecBatch(b, m),
		z:     zeroVecBatch(b, m),
	}
	if p > 0 {
		t.y = zeroVecBatch(b, p)
	}
	for k := range t.resid {
		t.resid[k] = math.Inf(1)
	}
	return t
}

// update folds one main-loop iteration's (x, s, z, y, residuals, mu) into
// the tracker, copying forward any batch element whose total residual
//
//	r = ‖rx‖₂ + ‖rz‖₂ + ‖ry‖₂ + m·μ
//
// strictly improved, and reports whether any batch element improved this
// iteration — the signal the driver's single, batch-wide notImproved
// counter is reset or incremented on. This is a single counter over the
// whole call, not one per batch element: it is incremented only when no
// batch element improves, and reset as soon as any does.
func (t *bestTracker) update(x, s, z, y, rx, ry, rz *VecBatch, mu []float64) (anyImproved bool) {
	b := x.B
	m := float64(rz.N)
	t.allDiverged = true
	for k := 0; k < b; k++ {
		resid := floats.Norm(rx.Row(k), 2) + floats.Norm(rz.Row(k), 2)
		if ry != nil {
			resid += floats.Norm(ry.Row(k), 2)
		}
		resid += m * mu[k]

		if mu[k] <= divergeThreshold {
			t.allDiverged = false
		}

		if resid < t.resid[k] {
			t.resid[k] = resid
			anyImproved = true
			copy(t.x.Row(k), x.Row(k))
			copy(t.s.Row(k), s.Row(k))
			copy(t.z.Row(k), z.Row(k))
			if t.y != nil {
				copy(t.y.Row(k), y.Row(k))
			}
		}
	}
	t.worst, _ = floats.Max(t.resid)
	return anyImproved
}
