//go:build !windows

// Package webgpu implements the GPU backend on WebGPU compute shaders.
// On this platform the native bindings are unavailable and every
// constructor reports that no GPU exists.
package webgpu

import (
	"runtime"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
)

// Backend is unavailable on this platform.
type Backend struct{}

// New always fails on this platform.
func New() (*Backend, error) {
	return nil, errs.Device("webgpu.new", nil, "webgpu backend is not built for %s", runtime.GOOS)
}

// IsAvailable reports whether a WebGPU adapter can be created.
func IsAvailable() bool {
	return false
}

// Probe reports no GPU on this platform.
func Probe() ([]device.Discovered, error) {
	_, err := New()
	return nil, err
}
