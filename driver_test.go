// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// TestSolveUnconstrained1D: Q=[[2]], p=[-2], G=[[0]], h=[1], no equality
// constraints. The inequality row is never binding (its coefficient is
// zero), so the solve should land on the unconstrained minimizer x = 1.
func TestSolveUnconstrained1D(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 1, 1, []float64{2}),
		P: NewVecBatch(1, 1, []float64{-2}),
		G: NewBatch(1, 1, 1, []float64{0}),
		H: NewVecBatch(1, 1, []float64{1}),
	}
	res, err := Solve(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != Converged {
		t.Errorf("Status = %v, want Converged", res.Status)
	}
	if !scalarClose(res.X.Row(0)[0], 1.0) {
		t.Errorf("x = %v, want 1.0", res.X.Row(0)[0])
	}
	if res.Stats.MaxResid[0] > 1e-10 {
		t.Errorf("residual = %v, want <= 1e-10", res.Stats.MaxResid[0])
	}
}

// TestSolveBoxQP2D: Q=I2, p=0, box constraints |x1|<=1, |x2|<=1. The
// unconstrained minimum (origin) is already interior, so every inequality
// is inactive: x = 0, all slacks = 1, all multipliers = 0.
func TestSolveBoxQP2D(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 2, 2, []float64{1, 0, 0, 1}),
		P: NewVecBatch(1, 2, []float64{0, 0}),
		G: NewBatch(1, 4, 2, []float64{
			1, 0,
			-1, 0,
			0, 1,
			0, -1,
		}),
		H: NewVecBatch(1, 4, []float64{1, 1, 1, 1}),
	}
	res, err := Solve(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != Converged {
		t.Errorf("Status = %v, want Converged", res.Status)
	}
	wantX := []float64{0, 0}
	if !floats.EqualApprox(res.X.Row(0), wantX, 1e-8) {
		t.Errorf("x = %v, want %v", res.X.Row(0), wantX)
	}
	wantS := []float64{1, 1, 1, 1}
	if !floats.EqualApprox(res.S.Row(0), wantS, 1e-8) {
		t.Errorf("s = %v, want %v", res.S.Row(0), wantS)
	}
	for _, z := range res.Z.Row(0) {
		if math.Abs(z) > 1e-8 {
			t.Errorf("z = %v, want all ~0", res.Z.Row(0))
			break
		}
	}
}

// TestSolveEqualityMinNorm: Q=I2, p=0, x>=0 (via G=-I2, h=0), A=[1,1], b=1.
// The min-norm point on the simplex edge x1+x2=1 with x>=0 is x=[0.5,0.5],
// strictly interior to the inequality, so y = -0.5.
func TestSolveEqualityMinNorm(t *testing.T) {
	qp := Problem{
		Q:  NewBatch(1, 2, 2, []float64{1, 0, 0, 1}),
		P:  NewVecBatch(1, 2, []float64{0, 0}),
		G:  NewBatch(1, 2, 2, []float64{-1, 0, 0, -1}),
		H:  NewVecBatch(1, 2, []float64{0, 0}),
		A:  NewBatch(1, 1, 2, []float64{1, 1}),
		Bv: NewVecBatch(1, 1, []float64{1}),
	}
	res, err := Solve(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != Converged {
		t.Errorf("Status = %v, want Converged", res.Status)
	}
	wantX := []float64{0.5, 0.5}
	if !floats.EqualApprox(res.X.Row(0), wantX, 1e-8) {
		t.Errorf("x = %v, want %v", res.X.Row(0), wantX)
	}
	if !scalarClose(res.Y.Row(0)[0], -0.5) {
		t.Errorf("y = %v, want -0.5", res.Y.Row(0)[0])
	}
}

// TestSolveBatchIndependence packs two independent box-QP instances (same
// dimensions, different h) into one B=2 batch and checks that each batch
// element matches what solving it alone would produce — the batch
// dimension carries no coupling between instances.
func TestSolveBatchIndependence(t *testing.T) {
	single := func(h float64) (Result, error) {
		qp := Problem{
			Q: NewBatch(1, 2, 2, []float64{1, 0, 0, 1}),
			P: NewVecBatch(1, 2, []float64{0, 0}),
			G: NewBatch(1, 4, 2, []float64{
				1, 0,
				-1, 0,
				0, 1,
				0, -1,
			}),
			H: NewVecBatch(1, 4, []float64{h, h, h, h}),
		}
		return Solve(qp, DefaultSettings())
	}
	want1, err := single(1)
	if err != nil {
		t.Fatalf("single(1): %v", err)
	}
	want2, err := single(2)
	if err != nil {
		t.Fatalf("single(2): %v", err)
	}

	batched := Problem{
		Q: NewBatch(2, 2, 2, []float64{
			1, 0, 0, 1,
			1, 0, 0, 1,
		}),
		P: NewVecBatch(2, 2, []float64{0, 0, 0, 0}),
		G: NewBatch(2, 4, 2, []float64{
			1, 0, -1, 0, 0, 1, 0, -1,
			1, 0, -1, 0, 0, 1, 0, -1,
		}),
		H: NewVecBatch(2, 4, []float64{1, 1, 1, 1, 2, 2, 2, 2}),
	}
	res, err := Solve(batched, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve(batched): %v", err)
	}
	if !floats.EqualApprox(res.X.Row(0), want1.X.Row(0), 1e-6) {
		t.Errorf("batch element 0: x = %v, want %v", res.X.Row(0), want1.X.Row(0))
	}
	if !floats.EqualApprox(res.X.Row(1), want2.X.Row(0), 1e-6) {
		t.Errorf("batch element 1: x = %v, want %v", res.X.Row(1), want2.X.Row(0))
	}
}

// TestSolveInfeasible: G=[[1],[-1]], h=[-1,-1] demands x<=-1 and x>=1
// simultaneously, which is infeasible. Solve must still terminate within
// MaxIter and report an inaccurate best-so-far residual above 1.
func TestSolveInfeasible(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 1, 1, []float64{2}),
		P: NewVecBatch(1, 1, []float64{0}),
		G: NewBatch(1, 2, 1, []float64{1, -1}),
		H: NewVecBatch(1, 2, []float64{-1, -1}),
	}
	res, err := Solve(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Stats.Iterations > DefaultSettings().MaxIter {
		t.Errorf("ran %d iterations, want <= MaxIter", res.Stats.Iterations)
	}
	if res.Stats.MaxResid[0] <= 1.0 {
		t.Errorf("best residual = %v, want > 1.0 for an infeasible system", res.Stats.MaxResid[0])
	}
	if !res.Inaccurate {
		t.Error("Inaccurate = false, want true for an infeasible system")
	}
}

// TestSolveIllConditioned: Q=diag(1, 1e-8), p=[-1,-1], single loose
// inequality constraint. Despite the ill-conditioned Q, the solver should
// still converge to a modest tolerance.
func TestSolveIllConditioned(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 2, 2, []float64{1, 0, 0, 1e-8}),
		P: NewVecBatch(1, 2, []float64{-1, -1}),
		G: NewBatch(1, 1, 2, []float64{1, 1}),
		H: NewVecBatch(1, 1, []float64{10}),
	}
	res, err := Solve(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Stats.MaxResid[0] > 1e-6 {
		t.Errorf("residual = %v, want <= 1e-6", res.Stats.MaxResid[0])
	}
	// Unconstrained optimum of (1/2)(x1^2 + 1e-8 x2^2) - x1 - x2 is
	// x1=1, x2=1e8, but the inequality x1+x2<=10 binds well before that.
	// At the constrained optimum its multiplier is z = 1 - 1e-8·x2, so
	// x1 = 1 - z = 10/(1e8+1) ≈ 1e-7 (small but positive) and x2 ≈ 10.
	if res.X.Row(0)[0] <= 0 {
		t.Errorf("x1 = %v, want > 0", res.X.Row(0)[0])
	}
}

func TestSolveIterativeRefinementMatchesLUOptimized(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 2, 2, []float64{1, 0, 0, 1}),
		P: NewVecBatch(1, 2, []float64{0, 0}),
		G: NewBatch(1, 4, 2, []float64{
			1, 0,
			-1, 0,
			0, 1,
			0, -1,
		}),
		H: NewVecBatch(1, 4, []float64{1, 1, 1, 1}),
	}
	lu, err := Solve(qp, DefaultSettings())
	if err != nil {
		t.Fatalf("Solve(LUOptimized): %v", err)
	}
	irSettings := DefaultSettings()
	irSettings.Solver = IterativeRefinement
	ir, err := Solve(qp, irSettings)
	if err != nil {
		t.Fatalf("Solve(IterativeRefinement): %v", err)
	}
	if !floats.EqualApprox(lu.X.Row(0), ir.X.Row(0), 1e-5) {
		t.Errorf("x mismatch: LUOptimized %v, IterativeRefinement %v", lu.X.Row(0), ir.X.Row(0))
	}
}

func TestSolveRejectsNonPositiveDefiniteQ(t *testing.T) {
	qp := Problem{
		Q: NewBatch(1, 2, 2, []float64{0, 0, 0, 1}),
		P: NewVecBatch(1, 2, []float64{0, 0}),
		G: NewBatch(1, 1, 2, []float64{1, 0}),
		H: NewVecBatch(1, 1, []float64{5}),
	}
	_, err := Solve(qp, DefaultSettings())
	if err == nil {
		t.Fatal("Solve did not report a singular Q")
	}
}
