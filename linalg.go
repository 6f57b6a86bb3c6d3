// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// transposeGeneral writes srcᵀ into dst. dst must already have
// Rows == src.Cols and Cols == src.Rows.
func transposeGeneral(dst, src blas64.General) {
	if dst.Rows != src.Cols || dst.Cols != src.Rows {
		panic(ErrShape)
	}
	for i := 0; i < src.Rows; i++ {
		for j := 0; j < src.Cols; j++ {
			dst.Data[j*dst.Stride+i] = src.Data[i*src.Stride+j]
		}
	}
}

// batchTranspose fills dst (shape [B, cols, rows]) with the transpose of
// every instance of src (shape [B, rows, cols]).
func batchTranspose(dst, src *Batch, workers int) {
	if dst.B != src.B || dst.Rows != src.Cols || dst.Cols != src.Rows {
		panic(ErrShape)
	}
	parallelFor(src.B, workers, func(k int) {
		transposeGeneral(dst.At(k), src.At(k))
	})
}

// batchMatMul computes, for every batch instance, dst = op(a) * op(b) where
// op applies a transpose when the corresponding trans flag is set. dst must
// already be sized to hold the product.
func batchMatMul(dst, a, b *Batch, transA, transB bool, workers int) {
	if dst.B != a.B || dst.B != b.B {
		panic(ErrShape)
	}
	ta, tb := blas.NoTrans, blas.NoTrans
	if transA {
		ta = blas.Trans
	}
	if transB {
		tb = blas.Trans
	}
	parallelFor(dst.B, workers, func(k int) {
		blas64.Gemm(ta, tb, 1, a.At(k), b.At(k), 0, dst.At(k))
	})
}

// batchMatVec computes, for every batch instance, dst = op(a) * x where op
// applies a transpose when trans is set.
func batchMatVec(dst, x *VecBatch, a *Batch, trans bool, workers int) {
	if dst.B != a.B || x.B != a.B {
		panic(ErrShape)
	}
	t := blas.NoTrans
	if trans {
		t = blas.Trans
	}
	parallelFor(dst.B, workers, func(k int) {
		blas64.Gemv(t, 1, a.At(k), x.At(k), 0, dst.At(k))
	})
}

// luBatch is a cached batched LU factorization: the n×n matrix for every
// one of B instances, factored in place via lapack64.Getrf, alongside its
// pivot indices. It is the batched generalization of the single-instance
// pattern mat.LU/mat.QR wrap around lapack64 (see mat/qr.go's qr.qr +
// qr.tau split between factored data and auxiliary factorization state).
type luBatch struct {
	n, b int
	mat  *Batch // [b, n, n], overwritten in place by factor
	piv  []int  // [b*n], piv[k*n:(k+1)*n] is instance k's pivot vector
}

func newLUBatch(b, n int) *luBatch {
	return &luBatch{n: n, b: b, mat: NewBatch(b, n, n, nil), piv: make([]int, b*n)}
}

// pivOf returns instance k's pivot slice.
func (lu *luBatch) pivOf(k int) []int { return lu.piv[k*lu.n : (k+1)*lu.n] }

// factor copies src into lu's backing storage and LU-factors every
// instance. It returns the index of the first batch element whose
// factorization failed (singular matrix), or -1 if all succeeded.
func (lu *luBatch) factor(src *Batch, workers int) int {
	if src.B != lu.b || src.Rows != lu.n || src.Cols != lu.n {
		panic(ErrShape)
	}
	copy(lu.mat.Data, src.Data)
	return lu.factorInPlace(workers)
}

// factorInPlace LU-factors whatever is currently in lu.mat, without first
// copying from a source batch. Callers that build the matrix directly into
// lu.mat (as both refactor methods do every iteration) use this to avoid a
// redundant copy.
func (lu *luBatch) factorInPlace(workers int) int {
	failed := make([]int32, lu.b)
	parallelFor(lu.b, workers, func(k int) {
		ok := lapack64.Getrf(lu.mat.At(k), lu.pivOf(k))
		if !ok {
			failed[k] = 1
		}
	})
	for k, f := range failed {
		if f != 0 {
			return k
		}
	}
	return -1
}

// solve overwrites rhs in place with op(A)⁻¹ * rhs for every instance,
// where A is the cached factorization and op applies a transpose when
// trans is set.
func (lu *luBatch) solve(rhs *Batch, trans bool, workers int) {
	if rhs.B != lu.b || rhs.Rows != lu.n {
		panic(ErrShape)
	}
	t := blas.NoTrans
	if trans {
		t = blas.Trans
	}
	parallelFor(lu.b, workers, func(k int) {
		lapack64.Getrs(t, lu.mat.At(k), rhs.At(k), lu.pivOf(k))
	})
}

// solveVec overwrites rhs (one vector per instance) in place with
// op(A)⁻¹ * rhs.
func (lu *luBatch) solveVec(rhs *VecBatch, trans bool, workers int) {
	if rhs.B != lu.b || rhs.N != lu.n {
		panic(ErrShape)
	}
	t := blas.NoTrans
	if trans {
		t = blas.Trans
	}
	parallelFor(lu.b, workers, func(k int) {
		v := rhs.At(k)
		b := blas64.General{Rows: lu.n, Cols: 1, Stride: 1, Data: v.Data}
		lapack64.Getrs(t, lu.mat.At(k), b, lu.pivOf(k))
	})
}
