// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device exposes device discovery and the handles tensors live on.
//
// A Registry always holds the CPU. GPUs are added by a probe that runs at
// most once; a failing or panicking probe leaves a CPU-only registry.
package device

import (
	"github.com/born-ml/accel/internal/device"
)

// Kind is the class of a device.
type Kind = device.Kind

// Device kinds.
const (
	CPU Kind = device.CPU
	GPU Kind = device.GPU
)

type (
	// Capability describes what a device can do.
	Capability = device.Capability

	// Context is the backend resource owned by a GPU handle.
	Context = device.Context

	// Handle identifies one registered device.
	Handle = device.Handle

	// Discovered is one GPU reported by a probe.
	Discovered = device.Discovered

	// ProbeFunc discovers GPUs.
	ProbeFunc = device.ProbeFunc

	// Option configures a Registry.
	Option = device.Option

	// Registry tracks the devices of the process.
	Registry = device.Registry
)

// NewRegistry creates a registry holding only the CPU. Call Probe to
// discover GPUs.
func NewRegistry(opts ...Option) *Registry {
	return device.NewRegistry(opts...)
}

// WithProbe sets the GPU discovery function.
func WithProbe(probe ProbeFunc) Option {
	return device.WithProbe(probe)
}

// WithoutGPU disables GPU discovery.
func WithoutGPU() Option {
	return device.WithoutGPU()
}
