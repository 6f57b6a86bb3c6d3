// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"io"
	"os"
)

// SolverMode selects the per-iteration KKT solve strategy.
type SolverMode int

const (
	// LUOptimized pre-factors the D-independent blocks of the KKT system
	// once and refactors only the D-dependent Schur block every iteration.
	// This is the default and the fast path.
	LUOptimized SolverMode = iota
	// IterativeRefinement factors a regularized full KKT system and
	// improves the solution with a fixed number of refinement steps every
	// iteration. It trades speed for robustness on ill-conditioned
	// problems and is mainly useful as a cross-check against LUOptimized.
	IterativeRefinement
)

func (m SolverMode) String() string {
	switch m {
	case LUOptimized:
		return "LUOptimized"
	case IterativeRefinement:
		return "IterativeRefinement"
	default:
		return "SolverMode(?)"
	}
}

// Settings controls the behavior of Solve. Solve replaces every zero-valued
// field with DefaultSettings' value, so the zero value behaves like
// DefaultSettings; call DefaultSettings to obtain one with every field
// populated, then override as needed, following the pattern of
// gonum/optimize.Settings paired with optimize.DefaultSettings.
type Settings struct {
	// Eps is the total-residual tolerance below which a batch element is
	// considered converged.
	Eps float64

	// MaxIter bounds the number of main-loop iterations.
	MaxIter int

	// NotImprovedLim is the number of consecutive non-improving iterations
	// after which Solve stops and returns the best-so-far iterates. An
	// iteration counts as non-improving only when no batch element
	// improves its best-so-far residual.
	NotImprovedLim int

	// MaxDirectionNorm bounds the infinity norm of a Newton direction
	// (dx, ds, dz, dy); a direction exceeding it is treated as divergence
	// rather than fed into the step-length oracle. This resolves the Open
	// Question of how to guard get_step against an unbounded direction
	// when every component of dv is step-ineligible (see DESIGN.md).
	MaxDirectionNorm float64

	// Solver selects the KKT solve strategy.
	Solver SolverMode

	// IRSteps is the number of refinement steps taken per iteration when
	// Solver is IterativeRefinement.
	IRSteps int

	// RegEps is the Tikhonov regularization added to the full KKT system's
	// diagonal when Solver is IterativeRefinement.
	RegEps float64

	// Concurrency bounds the number of goroutines used to process batch
	// elements in parallel; 0 means runtime.GOMAXPROCS(0), matching
	// gonum/optimize.Settings.Concurrent's convention of 0 meaning GOMAXPROCS.
	Concurrency int

	// Verbose, when > 0, causes Solve to emit one line of progress per
	// iteration to Output, in the style of gonum/optimize's Printer. When
	// Verbose >= 0, Solve also writes a one-line warning to Output if it
	// returns with Result.Inaccurate set; a negative Verbose suppresses
	// all output.
	Verbose int

	// Output is where progress lines and the inaccurate-solution warning
	// are written. A nil Output defaults to os.Stdout.
	Output io.Writer
}

// DefaultSettings returns the Settings used by Solve when the caller passes
// the zero value (eps=1e-12, maxIter=20, notImprovedLim=3).
func DefaultSettings() Settings {
	return Settings{
		Eps:              1e-12,
		MaxIter:          20,
		NotImprovedLim:   3,
		MaxDirectionNorm: 1e5,
		Solver:           LUOptimized,
		IRSteps:          1,
		RegEps:           1e-7,
		Concurrency:      0,
		Verbose:          0,
		Output:           os.Stdout,
	}
}

// withDefaults fills any zero-valued field of s with DefaultSettings' value.
// Zero is never a meaningful choice for Eps, MaxIter, NotImprovedLim,
// MaxDirectionNorm, IRSteps, or RegEps, so this is unambiguous.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Eps == 0 {
		s.Eps = d.Eps
	}
	if s.MaxIter == 0 {
		s.MaxIter = d.MaxIter
	}
	if s.NotImprovedLim == 0 {
		s.NotImprovedLim = d.NotImprovedLim
	}
	if s.MaxDirectionNorm == 0 {
		s.MaxDirectionNorm = d.MaxDirectionNorm
	}
	if s.IRSteps == 0 {
		s.IRSteps = d.IRSteps
	}
	if s.RegEps == 0 {
		s.RegEps = d.RegEps
	}
	if s.Output == nil {
		s.Output = d.Output
	}
	return s
}
