// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package suite provides the accel entry points: availability, single
// operations, numeric self-checks, benchmarks and an MLP demo.
//
// The package-level functions run on accel.Default(). Each returns a
// Result and never panics:
//
//	fmt.Print(suite.RunGEMM(256, 256, 256))
package suite

import (
	"github.com/born-ml/accel"
	"github.com/born-ml/accel/internal/suite"
)

type (
	// Result is the outcome of an entry point.
	Result = suite.Result

	// Check is one named assertion inside a Result.
	Check = suite.Check

	// Suite runs the entry points against one engine.
	Suite = suite.Suite
)

// New creates a suite on e.
func New(e *accel.Engine) *Suite {
	return suite.New(e)
}

// CheckAvailability lists the devices and the GPU probe outcome.
func CheckAvailability() Result { return suite.CheckAvailability() }

// BenchmarkMatMul times a size x size GEMM on every device.
func BenchmarkMatMul(size, iterations int) Result {
	return suite.BenchmarkMatMul(size, iterations)
}

// RunGEMM computes A[m,k] @ B[k,n] and checks it against a reference.
func RunGEMM(m, k, n int) Result { return suite.RunGEMM(m, k, n) }

// RunGEMV computes A[m,n] @ x[n] and checks it against a reference.
func RunGEMV(m, n int) Result { return suite.RunGEMV(m, n) }

// LinalgSuite checks every operation against a reference.
func LinalgSuite(size int) Result { return suite.LinalgSuite(size) }

// CompareBackends checks that the CPU and the GPU agree and benchmarks both.
func CompareBackends(size, iterations int) Result {
	return suite.CompareBackends(size, iterations)
}

// BatchOperations checks that a batched GEMM keeps batch order.
func BatchOperations(batch, size int) Result {
	return suite.BatchOperations(batch, size)
}

// NeuralNetworkDemo runs the forward pass of a random MLP.
func NeuralNetworkDemo(batch, in, hidden, out int) Result {
	return suite.NeuralNetworkDemo(batch, in, hidden, out)
}

// ModuleCheck reports build information and a sanity GEMM.
func ModuleCheck() Result { return suite.ModuleCheck() }
