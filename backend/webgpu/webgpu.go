// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU backend, built on WebGPU compute shaders
// through go-webgpu. Native bindings are only built on Windows; elsewhere
// New fails and Probe reports no GPU.
//
// Example:
//
//	reg := device.NewRegistry(device.WithProbe(webgpu.Probe))
//	reg.Probe()
//	defer reg.Close()
package webgpu

import (
	"github.com/born-ml/accel/device"
	"github.com/born-ml/accel/internal/backend/webgpu"
)

// Backend owns a WebGPU device and its compiled pipelines.
type Backend = webgpu.Backend

// New creates a backend on the high-performance adapter.
func New() (*Backend, error) {
	return webgpu.New()
}

// IsAvailable reports whether a WebGPU adapter can be created.
func IsAvailable() bool {
	return webgpu.IsAvailable()
}

// Probe is a device.ProbeFunc that registers one GPU per usable adapter.
func Probe() ([]device.Discovered, error) {
	return webgpu.Probe()
}
