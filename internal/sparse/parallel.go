package sparse

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ChunkThreshold is the minimum number of rows per worker before the
// parallel path is taken. Below it the serial build wins on overhead alone.
const ChunkThreshold = 10000

// BuildParallel partitions rows into contiguous chunks, builds an index
// chain per chunk, and merges the chains by set union. Because the merge is
// commutative and associative, the result is identical to Build for any
// worker count; the fallback to the serial path is a performance choice,
// not a correctness branch.
//
// workers <= 0 uses GOMAXPROCS.
func BuildParallel(rows [][]string, cols []int, workers int) (Index, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || len(rows) < ChunkThreshold {
		return Build(rows, cols)
	}

	chunks := splitChunks(len(rows), workers)
	partials := make([]Index, len(chunks))

	var g errgroup.Group
	for i, ch := range chunks {
		g.Go(func() error {
			idx, err := Build(rows[ch.lo:ch.hi], cols)
			if err != nil {
				return err
			}
			partials[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// All workers have joined; merge strictly after the parallel phase.
	merged := NewIndex(len(cols) - 1)
	for _, p := range partials {
		if err := merged.Merge(p); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

type chunk struct {
	lo, hi int
}

// splitChunks divides [0,n) into at most k contiguous, disjoint ranges.
func splitChunks(n, k int) []chunk {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	chunks := make([]chunk, 0, k)
	size := n / k
	rem := n % k
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		chunks = append(chunks, chunk{lo: lo, hi: hi})
		lo = hi
	}
	return chunks
}
