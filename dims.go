// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

// Problem bundles the coefficient tensors of a batch of B quadratic
// programs sharing dimensions (n, m, p):
//
//	minimize    (1/2) xᵀQx + pᵀx
//	subject to  Gx ≤ h,  Ax = b
//
// A and Bv are nil when the batch has no equality constraints (p = 0); Q,
// P, G, H must never be nil.
type Problem struct {
	Q *Batch    // [B, n, n], symmetric positive definite
	P *VecBatch // [B, n]
	G *Batch    // [B, m, n]
	H *VecBatch // [B, m]
	A  *Batch    // [B, p, n], nil when p = 0
	Bv *VecBatch // [B, p], nil when p = 0
}

// dims holds the probed shape of a Problem.
type dims struct {
	n, m, p, batch int
}

// probeDims extracts (n, m, p, B) from the batched coefficient tensors of
// qp: shapes are read from G and A, and p = 0 (with A treated as
// absent) is legal. probeDims panics on an internally inconsistent Problem
// (a malformed caller input, not a runtime solver failure) rather than
// returning an error, mirroring gonum/mat's panic(ErrShape) convention for
// contract violations.
func probeDims(qp Problem) dims {
	if qp.Q == nil || qp.P == nil || qp.G == nil || qp.H == nil {
		panic(ErrShape)
	}
	b := qp.G.B
	n := qp.G.Cols
	m := qp.G.Rows
	if qp.Q.B != b || qp.Q.Rows != n || qp.Q.Cols != n {
		panic(ErrShape)
	}
	if qp.P.B != b || qp.P.N != n {
		panic(ErrShape)
	}
	if qp.H.B != b || qp.H.N != m {
		panic(ErrShape)
	}
	p := 0
	if qp.A != nil {
		if qp.Bv == nil {
			panic(ErrShape)
		}
		if qp.A.B != b || qp.A.Cols != n {
			panic(ErrShape)
		}
		p = qp.A.Rows
		if qp.Bv.B != b || qp.Bv.N != p {
			panic(ErrShape)
		}
	} else if qp.Bv != nil {
		panic(ErrShape)
	}
	return dims{n: n, m: m, p: p, batch: b}
}
