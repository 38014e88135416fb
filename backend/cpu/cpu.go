// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host backend, built on gonum's pure-Go BLAS.
//
// Float16 operands are widened to float32, computed and narrowed back.
// Batched GEMM spreads batch entries over a bounded set of goroutines.
package cpu

import (
	internalcpu "github.com/born-ml/accel/internal/backend/cpu"
	"github.com/born-ml/accel/internal/parallel"
	"github.com/born-ml/accel/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// ParallelConfig controls the goroutine fan-out of batched kernels.
type ParallelConfig = parallel.Config

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// New creates a CPU backend with the default parallel configuration.
func New() *Backend {
	return internalcpu.New(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with cfg.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.New(cfg)
}
