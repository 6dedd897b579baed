// Package parallel fans independent grid computations out over goroutines.
//
// Callers hand in a function that writes only to its own index, so results
// are identical whether the work runs sequentially or in parallel.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine; each item is one grid op.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n).
// Falls back to a plain loop if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	workers := max(cfg.NumWorkers, 1)
	chunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || workers == 1 || n <= chunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+workers-1)/workers, chunk)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForPairs executes f(i, j) for every i in [0, outer) and j in [0, inner).
// Pair (i, j) is item i*inner+j, the channel ordering used by convolution
// outputs.
func ForPairs(outer, inner int, f func(i, j int), cfg Config) {
	if inner <= 0 {
		return
	}
	For(outer*inner, func(k int) {
		f(k/inner, k%inner)
	}, cfg)
}
