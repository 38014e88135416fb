//go:build windows

// Package webgpu implements the GPU backend on WebGPU compute shaders.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"k8s.io/klog/v2"
)

var (
	_ tensor.Backend = (*Backend)(nil)
	_ device.Context = (*Backend)(nil)
)

// Backend owns one WebGPU adapter, device and queue.
//
// The queue is not safe for concurrent submission, so every kernel holds
// mu for its full upload/dispatch/readback cycle.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	cacheMu   sync.RWMutex

	mu       sync.Mutex
	released bool
}

// New creates a new WebGPU backend.
// Returns an error if WebGPU is not available or initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = errs.Device("webgpu.new", nil, "native library not available: %v", r)
		}
	}()

	if err := wgpu.Init(); err != nil {
		return nil, errs.Device("webgpu.new", err, "loading wgpu_native")
	}

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, errs.Device("webgpu.new", err, "creating instance")
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errs.Device("webgpu.new", err, "requesting adapter")
	}

	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errs.Device("webgpu.new", err, "requesting device")
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, errs.Device("webgpu.new", nil, "device has no queue")
	}

	return &Backend{
		instance:  instance,
		adapter:   adapter,
		device:    dev,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}, nil
}

// IsAvailable reports whether a WebGPU adapter can be created.
func IsAvailable() (available bool) {
	defer func() {
		if recover() != nil {
			available = false
		}
	}()
	b, err := New()
	if err != nil {
		return false
	}
	b.Release()
	return true
}

// Probe creates one backend for the default high-performance adapter and
// reports it as a GPU device. It is the registry's GPU discovery function.
func Probe() ([]device.Discovered, error) {
	b, err := New()
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("webgpu: adapter ready")
	return []device.Discovered{{
		Capability: device.Capability{
			Backend:  "webgpu",
			Name:     "wgpu high-performance adapter",
			Features: []string{"f32", "compute"},
		},
		Context: b,
	}}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "webgpu"
}

// Release frees all GPU objects. The backend must not be used afterwards.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true

	b.cacheMu.Lock()
	for name, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, name)
	}
	for name, s := range b.shaders {
		s.Release()
		delete(b.shaders, name)
	}
	b.cacheMu.Unlock()

	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

func (b *Backend) String() string {
	return fmt.Sprintf("webgpu.Backend(released=%v)", b.released)
}
