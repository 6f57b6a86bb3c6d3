// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import "fmt"

// Status reports how a Solve call terminated. It plays the same role
// gonum/optimize's Status plays for Minimize: Solve always returns a
// Result carrying a Status, and only a construction-time failure
// (NotPositiveDefiniteError) is surfaced through the error return instead.
type Status int

const (
	// NotTerminated is never returned by Solve; it exists so the zero
	// value of Status is distinguishable from every real outcome.
	NotTerminated Status = iota
	// Converged indicates the maximum total residual over the batch fell
	// below Settings.Eps.
	Converged
	// NotImproved indicates no batch element improved its best-so-far
	// residual for Settings.NotImprovedLim consecutive iterations.
	NotImproved
	// IterationLimit indicates Settings.MaxIter was reached.
	IterationLimit
	// Diverged indicates μ exceeded 1e100 for every batch element, or a
	// Newton direction exceeded Settings.MaxDirectionNorm.
	Diverged
	// RefactorFailed indicates the per-iteration KKT refactor failed
	// (typically a near-singular Schur complement); Solve recovered by
	// returning the best-so-far iterate seen up to that point.
	RefactorFailed
)

func (s Status) String() string {
	switch s {
	case NotTerminated:
		return "NotTerminated"
	case Converged:
		return "Converged"
	case NotImproved:
		return "NotImproved"
	case IterationLimit:
		return "IterationLimit"
	case Diverged:
		return "Diverged"
	case RefactorFailed:
		return "RefactorFailed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// NotPositiveDefiniteError is returned by preFactor/Solve when Q cannot be
// LU-factored for one or more batch elements. It names
// the first failing batch index so the caller does not have to re-probe
// every instance to find the offending one.
type NotPositiveDefiniteError struct {
	Batch int // index of the first batch element whose Q failed to factor
}

func (e *NotPositiveDefiniteError) Error() string {
	return fmt.Sprintf("qpth: Q is not positive definite for batch element %d: "+
		"Q must be symmetric positive definite with a non-zero diagonal", e.Batch)
}

// RefactorError records why the per-iteration KKT refactor failed.
type RefactorError struct {
	Batch int // index of the first batch element whose refactor failed
}

func (e *RefactorError) Error() string {
	return fmt.Sprintf("qpth: KKT refactor failed for batch element %d: "+
		"the Schur complement is near-singular", e.Batch)
}

// Stats records the statistics of a Solve run.
type Stats struct {
	Iterations int       // number of main-loop iterations run
	MaxResid   []float64 // final best-so-far total residual, one per batch element
}

// Result is the answer of a Solve call: the best-so-far iterate along with
// the Status and Stats describing how the run ended.
type Result struct {
	X *VecBatch // [B, n]
	S *VecBatch // [B, m]
	Z *VecBatch // [B, m]
	Y *VecBatch // [B, p], nil when p = 0

	Status     Status
	Inaccurate bool
	Stats      Stats
}
