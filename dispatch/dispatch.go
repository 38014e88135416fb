// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dispatch runs GEMM, GEMV, BatchedGEMM and Affine on the best
// available device.
//
// Execute prefers the GPU and retries once on the CPU when the GPU kernel
// fails; ExecuteOn pins a device and never falls back:
//
//	d := dispatch.New(reg, cpu.New())
//	res, err := d.GEMM(1, a, b, 0, nil)
//	if err == nil && res.FellBack {
//	    log.Printf("gpu failed: %v", res.Cause)
//	}
package dispatch

import (
	"github.com/born-ml/accel/device"
	"github.com/born-ml/accel/internal/dispatch"
	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/tensor"
)

// Op identifies an operation.
type Op = ops.Kind

// Supported operations.
const (
	GEMM        Op = ops.GEMM
	GEMV        Op = ops.GEMV
	BatchedGEMM Op = ops.BatchedGEMM
	Affine      Op = ops.Affine
)

// ParseOp looks an operation up by its lower-case name.
func ParseOp(name string) (Op, bool) {
	return ops.Parse(name)
}

type (
	// Request describes one operation call.
	Request = dispatch.Request

	// Result is the outcome of a successful call.
	Result = dispatch.Result

	// Dispatcher executes Requests on the devices of a registry.
	Dispatcher = dispatch.Dispatcher

	// Stats are the cumulative counters of a Dispatcher.
	Stats = dispatch.Stats

	// State is a step of a dispatch call, as traced in the logs.
	State = dispatch.State
)

// New creates a dispatcher over registry. cpu serves the CPU device; GPU
// handles carry their own backend.
func New(registry *device.Registry, cpu tensor.Backend) *Dispatcher {
	return dispatch.New(registry, cpu)
}

// GEMMRequest builds C = alpha*A@B + beta*C.
func GEMMRequest(alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) Request {
	return dispatch.GEMMRequest(alpha, a, b, beta, c)
}

// GEMVRequest builds y = alpha*A@x + beta*y.
func GEMVRequest(alpha float64, a, x *tensor.Tensor, beta float64, y *tensor.Tensor) Request {
	return dispatch.GEMVRequest(alpha, a, x, beta, y)
}

// BatchedGEMMRequest builds C[i] = alpha*A[i]@B[i] + beta*C[i].
func BatchedGEMMRequest(alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) Request {
	return dispatch.BatchedGEMMRequest(alpha, a, b, beta, c)
}

// AffineRequest builds y = W@x + bias.
func AffineRequest(w, x, bias *tensor.Tensor) Request {
	return dispatch.AffineRequest(w, x, bias)
}
