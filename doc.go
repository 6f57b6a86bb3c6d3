// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qpth implements a batched primal-dual interior-point solver for
// convex quadratic programs
//
//	minimize    (1/2) xᵀQx + pᵀx
//	subject to  Gx ≤ h,  Ax = b
//
// solved simultaneously for a batch of B independent instances that share
// the same dimensions (n variables, m inequality constraints, p equality
// constraints) but carry independent coefficients.
//
// The package implements the Mehrotra predictor-corrector method together
// with a block-LU factorization of the KKT system: Q and every
// cross-block built from Q, G and A are factored once per Solve call, and
// only the m×m Schur complement block that depends on the current
// iterate is refactored on every iteration, rather than a fresh
// factorization of the full KKT matrix. Q must be symmetric positive
// definite; everything else follows from [Problem] and [Settings].
//
// qpth does not differentiate through the solution, does not build (Q, p,
// G, h, A, b) from a modelling language, does not verify that Q is positive
// definite ahead of time, and does not manage device memory: those are the
// responsibility of the caller.
package qpth
