// Package parallel provides the data-parallel loop used to fan a batched
// function call out over sub-ranges of its index mask.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultThreads returns the worker count used when callers pass zero.
func DefaultThreads() int {
	return runtime.GOMAXPROCS(0)
}

// For calls fn over [0, n) split into chunks of at least grain elements.
//
// Chunks run on at most threads goroutines. When only one chunk results,
// fn runs on the calling goroutine. Chunks are disjoint and together cover
// [0, n) exactly; their execution order is unspecified.
func For(n, grain, threads int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if grain < 1 {
		grain = 1
	}
	if threads < 1 {
		threads = DefaultThreads()
	}
	chunks := Chunks(n, grain, threads)
	if len(chunks) == 1 {
		fn(0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(threads)
	for _, c := range chunks {
		g.Go(func() error {
			fn(c.Start, c.End)
			return nil
		})
	}
	_ = g.Wait()
}

// Chunk is a half-open sub-range [Start, End).
type Chunk struct {
	Start, End int
}

// Chunks partitions [0, n) into at least grain-sized ranges. It aims for a
// few chunks per thread so uneven chunks still balance.
func Chunks(n, grain, threads int) []Chunk {
	if n <= 0 {
		return nil
	}
	if grain < 1 {
		grain = 1
	}
	if threads < 1 {
		threads = 1
	}
	size := max(grain, ceilDiv(n, threads*4))
	out := make([]Chunk, 0, ceilDiv(n, size))
	for start := 0; start < n; start += size {
		out = append(out, Chunk{Start: start, End: min(start+size, n)})
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
