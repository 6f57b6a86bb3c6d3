// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import "gonum.org/v1/gonum/blas/blas64"

// ErrShape is used as a panic value to signal a mismatch between the
// declared and the required dimensions of a Batch or VecBatch. It is a
// programmer error (a malformed Problem), never a runtime solver failure.
var ErrShape = errString("qpth: shape mismatch")

type errString string

func (e errString) Error() string { return string(e) }

// Batch is a batch of B dense row-major matrices, each Rows×Cols, packed
// contiguously in a single backing slice. It plays the role mat.Dense's
// blas64.General plays for a single matrix, generalized with a leading
// batch dimension; see mat.CDense for the analogous single-instance
// wrap-a-blas64-type pattern this type is modeled on.
type Batch struct {
	B, Rows, Cols int
	Data          []float64
}

// NewBatch allocates a Batch of shape [b, rows, cols]. If data is non-nil
// its length must equal b*rows*cols and it is used as the backing slice.
func NewBatch(b, rows, cols int, data []float64) *Batch {
	if b <= 0 || rows <= 0 || cols <= 0 {
		panic(ErrShape)
	}
	n := b * rows * cols
	if data == nil {
		data = make([]float64, n)
	} else if len(data) != n {
		panic(ErrShape)
	}
	return &Batch{B: b, Rows: rows, Cols: cols, Data: data}
}

// At returns the k-th instance as a blas64.General sharing Batch's backing
// array: writes through the returned value are visible in m.
func (m *Batch) At(k int) blas64.General {
	stride := m.Cols
	n := m.Rows * m.Cols
	return blas64.General{
		Rows: m.Rows, Cols: m.Cols, Stride: stride,
		Data: m.Data[k*n : (k+1)*n],
	}
}

// Clone returns a deep copy of m.
func (m *Batch) Clone() *Batch {
	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	return &Batch{B: m.B, Rows: m.Rows, Cols: m.Cols, Data: data}
}

// VecBatch is a batch of B dense vectors of length N, packed contiguously.
// It is the batched analogue of mat.VecDense/blas64.Vector.
type VecBatch struct {
	B, N int
	Data []float64
}

// NewVecBatch allocates a VecBatch of shape [b, n]. If data is non-nil its
// length must equal b*n and it is used as the backing slice.
func NewVecBatch(b, n int, data []float64) *VecBatch {
	if b <= 0 || n <= 0 {
		panic(ErrShape)
	}
	sz := b * n
	if data == nil {
		data = make([]float64, sz)
	} else if len(data) != sz {
		panic(ErrShape)
	}
	return &VecBatch{B: b, N: n, Data: data}
}

// At returns the k-th instance as a blas64.Vector sharing v's backing array.
func (v *VecBatch) At(k int) blas64.Vector {
	return blas64.Vector{N: v.N, Inc: 1, Data: v.Data[k*v.N : (k+1)*v.N]}
}

// Row returns the k-th instance as a plain []float64 slice, sharing v's
// backing array. It is a convenience for call sites that want a slice
// rather than a blas64.Vector (e.g. floats.Norm, floats.Dot).
func (v *VecBatch) Row(k int) []float64 {
	return v.Data[k*v.N : (k+1)*v.N]
}

// Clone returns a deep copy of v.
func (v *VecBatch) Clone() *VecBatch {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &VecBatch{B: v.B, N: v.N, Data: data}
}

// zeroVecBatch allocates a VecBatch of shape [b, n] with all-zero data. It
// is a small helper so call sites that need a zero right-hand side (e.g.
// the corrector solve's rx/rz/ry slots) don't repeat NewVecBatch(b, n, nil).
func zeroVecBatch(b, n int) *VecBatch {
	return NewVecBatch(b, n, nil)
}
