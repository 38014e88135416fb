// Package parallel provides the chunked worker loops used by the CPU kernels.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1, // Items are whole matrices, never single elements.
	}
}

// sequential reports whether n items should run on the calling goroutine.
func (c Config) sequential(n int) bool {
	return !c.Enabled || c.NumWorkers <= 1 || n <= 1 || n < c.MinChunkSize
}

// chunk returns the number of consecutive items per goroutine.
func (c Config) chunk(n int) int {
	return max((n+c.NumWorkers-1)/c.NumWorkers, c.MinChunkSize, 1)
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	_ = ForEach(n, cfg, func(i int) error {
		f(i)
		return nil
	})
}

// ForEach executes f(i) for i in [0, n) and returns the first error.
// Each index is visited exactly once; callers write results into slot i,
// so output order never depends on scheduling. After an error, chunks that
// have not started yet are skipped.
func ForEach(n int, cfg Config, f func(i int) error) error {
	if cfg.sequential(n) {
		for i := 0; i < n; i++ {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(cfg.NumWorkers)
	size := cfg.chunk(n)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			for i := start; i < end; i++ {
				if err := f(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
