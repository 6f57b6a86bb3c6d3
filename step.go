// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import "math"

// stepEps is the threshold below which a direction component is considered
// "sufficiently negative" to impose an upper bound on the step length.
const stepEps = 1e-12

// stepLength implements the fraction-to-boundary step-length oracle: for
// every batch element it returns the largest α such that v + α·dv stays
// componentwise nonnegative (not clamped to 1; +Inf when no component
// bounds it), computed as
//
//	α = min_j { -v_j/dv_j : dv_j < -stepEps }
//
// Components with dv_j ≥ -stepEps impose no upper bound; they
// are replaced with the batch element's largest eligible candidate (or
// +Inf if no component is eligible) before the min-reduction, so they
// never win the minimum. The caller is responsible for clamping the
// result to (0, 1] and applying any additional safety factor.
func stepLength(v, dv *VecBatch) []float64 {
	if v.B != dv.B || v.N != dv.N {
		panic(ErrShape)
	}
	out := make([]float64, v.B)
	for k := 0; k < v.B; k++ {
		vk := v.Row(k)
		dvk := dv.Row(k)
		maxCand := math.Inf(-1)
		any := false
		for j := range dvk {
			if dvk[j] < -stepEps {
				cand := -vk[j] / dvk[j]
				if cand > maxCand {
					maxCand = cand
				}
				any = true
			}
		}
		fill := math.Inf(1)
		if any {
			fill = maxCand
		}
		min := math.Inf(1)
		for j := range dvk {
			var cand float64
			if dvk[j] < -stepEps {
				cand = -vk[j] / dvk[j]
			} else {
				cand = fill
			}
			if cand < min {
				min = cand
			}
		}
		out[k] = min
	}
	return out
}
