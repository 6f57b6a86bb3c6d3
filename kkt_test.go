// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import "testing"

// checkKKTResidual verifies that (dx, ds, dz, dy) solves the Newton system
//
//	Q dx + Gᵀ dz + Aᵀ dy = -rx
//	G dx + ds            = -rz
//	A dx                 = -ry           (p > 0 only)
//	s∘dz + z∘ds           = -rsRaw
//
// to within a small tolerance, independent of how solve derived them. rsRaw is the raw
// complementarity residual; solve itself is called with rsRaw/s, matching
// the convention resolved for the first affine step (rs = z).
func checkKKTResidual(t *testing.T, qp Problem, s, z []float64, rx, rz, ry, rsRaw []float64, dx, ds, dz, dy *VecBatch) {
	t.Helper()
	n, m := qp.Q.Cols, qp.G.Rows

	lhs1 := make([]float64, n)
	Q := qp.Q.At(0)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lhs1[i] += Q.Data[i*Q.Stride+j] * dx.Row(0)[j]
		}
	}
	G := qp.G.At(0)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			lhs1[j] += G.Data[i*G.Stride+j] * dz.Row(0)[i]
		}
	}
	if qp.A != nil {
		A := qp.A.At(0)
		p := qp.A.Rows
		for i := 0; i < p; i++ {
			for j := 0; j < n; j++ {
				lhs1[j] += A.Data[i*A.Stride+j] * dy.Row(0)[i]
			}
		}
	}
	for j := 0; j < n; j++ {
		if got, want := lhs1[j], -rx[j]; !scalarClose(got, want) {
			t.Errorf("stationarity row %d: Qdx+Gᵀdz+Aᵀdy = %v, want %v", j, got, want)
		}
	}

	lhs2 := make([]float64, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			lhs2[i] += G.Data[i*G.Stride+j] * dx.Row(0)[j]
		}
		lhs2[i] += ds.Row(0)[i]
	}
	for i := 0; i < m; i++ {
		if got, want := lhs2[i], -rz[i]; !scalarClose(got, want) {
			t.Errorf("inequality row %d: Gdx+ds = %v, want %v", i, got, want)
		}
	}

	if qp.A != nil {
		A := qp.A.At(0)
		p := qp.A.Rows
		lhs3 := make([]float64, p)
		for i := 0; i < p; i++ {
			for j := 0; j < n; j++ {
				lhs3[i] += A.Data[i*A.Stride+j] * dx.Row(0)[j]
			}
		}
		for i := 0; i < p; i++ {
			if got, want := lhs3[i], -ry[i]; !scalarClose(got, want) {
				t.Errorf("equality row %d: Adx = %v, want %v", i, got, want)
			}
		}
	}

	for j := 0; j < m; j++ {
		got := s[j]*dz.Row(0)[j] + z[j]*ds.Row(0)[j]
		want := -rsRaw[j]
		if !scalarClose(got, want) {
			t.Errorf("complementarity row %d: s*dz+z*ds = %v, want %v", j, got, want)
		}
	}
}

func TestWorkspaceSolveSatisfiesNewtonSystemNoEquality(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 2, 2, []float64{2, 0, 0, 2}),
		P: NewVecBatch(1, 2, []float64{0, 0}),
		G: NewBatch(1, 1, 2, []float64{1, 0}),
		H: NewVecBatch(1, 1, []float64{5}),
	}
	ws, err := preFactor(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("preFactor: %v", err)
	}
	s := []float64{1}
	z := []float64{3}
	d := NewVecBatch(1, 1, []float64{z[0] / s[0]})
	if err := ws.refactor(d); err != nil {
		t.Fatalf("refactor: %v", err)
	}

	rx := []float64{0.1, -0.2}
	rz := []float64{0.5}
	rsRaw := []float64{0.1}
	rsInput := NewVecBatch(1, 1, []float64{rsRaw[0] / s[0]})

	dx, ds, dz, dy := ws.solve(
		NewVecBatch(1, 2, rx),
		rsInput,
		NewVecBatch(1, 1, rz),
		nil,
	)
	checkKKTResidual(t, qp, s, z, rx, rz, nil, rsRaw, dx, ds, dz, dy)
}

func TestWorkspaceSolveSatisfiesNewtonSystemWithEquality(t *testing.T) {
	qp := Problem{
		Q:  NewBatch(1, 2, 2, []float64{2, 0, 0, 2}),
		P:  NewVecBatch(1, 2, []float64{0, 0}),
		G:  NewBatch(1, 1, 2, []float64{1, 0}),
		H:  NewVecBatch(1, 1, []float64{5}),
		A:  NewBatch(1, 1, 2, []float64{1, 1}),
		Bv: NewVecBatch(1, 1, []float64{2}),
	}
	ws, err := preFactor(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("preFactor: %v", err)
	}
	s := []float64{1}
	z := []float64{3}
	d := NewVecBatch(1, 1, []float64{z[0] / s[0]})
	if err := ws.refactor(d); err != nil {
		t.Fatalf("refactor: %v", err)
	}

	rx := []float64{0.1, -0.2}
	rz := []float64{0.5}
	ry := []float64{0.2}
	rsRaw := []float64{0.1}
	rsInput := NewVecBatch(1, 1, []float64{rsRaw[0] / s[0]})

	dx, ds, dz, dy := ws.solve(
		NewVecBatch(1, 2, rx),
		rsInput,
		NewVecBatch(1, 1, rz),
		NewVecBatch(1, 1, ry),
	)
	checkKKTResidual(t, qp, s, z, rx, rz, ry, rsRaw, dx, ds, dz, dy)
}

func TestWorkspaceRefactorRejectsWrongShape(t *testing.T) {
	qp := smallProblem()
	ws, err := preFactor(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("preFactor: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("refactor did not panic on mismatched d")
		}
	}()
	ws.refactor(NewVecBatch(2, 3, []float64{1, 1, 1, 1, 1, 1}))
}

func TestPreFactorReportsNonPositiveDefiniteQ(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 2, 2, []float64{0, 0, 0, 1}), // not PD: singular, zero first column
		P: NewVecBatch(1, 2, []float64{0, 0}),
		G: NewBatch(1, 1, 2, []float64{1, 0}),
		H: NewVecBatch(1, 1, []float64{5}),
	}
	_, err := preFactor(qp, DefaultSettings())
	if err == nil {
		t.Fatal("preFactor did not report a singular Q")
	}
	if _, ok := err.(*NotPositiveDefiniteError); !ok {
		t.Fatalf("preFactor error = %v, want *NotPositiveDefiniteError", err)
	}
}
