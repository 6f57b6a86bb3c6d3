// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"fmt"
	"io"
)

// iterPrinter writes one line per main-loop iteration to an io.Writer, in
// the column-format style of gonum/optimize's Printer (printer.go): a
// repeated heading followed by fixed-width value rows, rather than a
// free-form log line per iteration.
type iterPrinter struct {
	w               io.Writer
	headingInterval int
	since           int
}

func newIterPrinter(w io.Writer) *iterPrinter {
	return &iterPrinter{w: w, headingInterval: 20}
}

func (p *iterPrinter) init() {
	fmt.Fprintf(p.w, "%-8s%-16s%-16s%-16s\n", "Iter", "PrimalResid", "DualResid", "Mu")
}

// record prints the batch-mean primal residual (‖rz‖+‖ry‖), batch-mean dual
// residual (‖rx‖) and batch-mean duality measure μ for one main-loop
// iteration, reprinting the heading every headingInterval lines the same way
// opt.Printer does.
func (p *iterPrinter) record(iter int, primalResid, dualResid, mu float64) {
	if p.since >= p.headingInterval {
		p.init()
		p.since = 0
	}
	fmt.Fprintf(p.w, "%-8d%-16.6e%-16.6e%-16.6e\n", iter, primalResid, dualResid, mu)
	p.since++
}
