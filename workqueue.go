// Copyright ©2024 The qpth Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpth

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// batchQueue hands out batch-element indices [0, total) to concurrent
// workers one at a time. It is the one-dimensional analogue of gonum's
// blockWorkQueue (blas/gonum/workqueue.go), which hands out 2-D block
// coordinates to parallel BLAS kernels; here the work unit is a single
// batch index rather than a matrix tile.
type batchQueue struct {
	head  int64
	total int
}

func (q *batchQueue) reset(total int) {
	atomic.StoreInt64(&q.head, 0)
	q.total = total
}

// next returns the next unclaimed index, and ok=false once the queue is
// exhausted.
func (q *batchQueue) next() (i int, ok bool) {
	w := int(atomic.AddInt64(&q.head, 1)) - 1
	return w, w < q.total
}

// parallelFor runs fn(k) for every k in [0, total), distributed across
// workers concurrent goroutines (workers <= 0 means runtime.GOMAXPROCS(0)).
// It is the batched-dense-linear-algebra dispatch point: every
// per-batch-element operation in this package (LU factor,
// triangular solve, GEMM) is expected to funnel through here so a caller
// can bound concurrency via Settings.Concurrency.
func parallelFor(total, workers int, fn func(k int)) {
	if total <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		for k := 0; k < total; k++ {
			fn(k)
		}
		return
	}
	var q batchQueue
	q.reset(total)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				k, ok := q.next()
				if !ok {
					return
				}
				fn(k)
			}
		}()
	}
	wg.Wait()
}
