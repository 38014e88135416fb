// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package accel is a device-abstracted dense linear-algebra core.
//
// An Engine discovers the GPU once, falls back to the CPU when there is
// none, and routes GEMM, GEMV, BatchedGEMM and Affine through a
// dispatcher that retries failed GPU kernels on the CPU:
//
//	e, err := accel.New(accel.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//	res, err := e.Dispatcher().GEMM(1, a, b, 0, nil)
package accel

import (
	"github.com/born-ml/accel/internal/bench"
	"github.com/born-ml/accel/internal/engine"
)

type (
	// Config controls engine construction.
	Config = engine.Config

	// Engine owns the device registry, the dispatcher and a benchmark runner.
	Engine = engine.Engine

	// Report is the outcome of a benchmark run.
	Report = bench.Report

	// BenchStats summarizes the timings of one device.
	BenchStats = bench.Stats
)

// DefaultConfig probes WebGPU, uses one CPU worker per core and accepts a
// relative error of 1e-5 in numeric checks.
func DefaultConfig() Config {
	return engine.DefaultConfig()
}

// New creates an engine and probes for GPUs.
func New(cfg Config) (*Engine, error) {
	return engine.New(cfg)
}

// Default returns the process-wide engine, created on first use with
// DefaultConfig.
func Default() (*Engine, error) {
	return engine.Default()
}
