// Package engine wires the device registry, the backends and the
// dispatcher into one process-wide instance.
package engine

import (
	"sync"

	"github.com/born-ml/accel/internal/backend/cpu"
	"github.com/born-ml/accel/internal/backend/webgpu"
	"github.com/born-ml/accel/internal/bench"
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/dispatch"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/parallel"
	"k8s.io/klog/v2"
)

// Config controls engine construction.
type Config struct {
	DisableGPU bool            // Skip GPU discovery; everything runs on the CPU.
	Parallel   parallel.Config // Fan-out of batched CPU kernels.
	Tolerance  float64         // Max relative error accepted by numeric checks.
	Seed       int64           // Seed for demo inputs and weights.

	// Probe discovers GPUs. Nil means the WebGPU backend.
	Probe device.ProbeFunc
}

// DefaultConfig returns the configuration used by Default.
func DefaultConfig() Config {
	return Config{
		Parallel:  parallel.DefaultConfig(),
		Tolerance: 1e-5,
		Seed:      42,
	}
}

// Engine owns a registry and the dispatcher built on it.
type Engine struct {
	cfg        Config
	registry   *device.Registry
	dispatcher *dispatch.Dispatcher
	runner     *bench.Runner
}

// New creates an engine and probes for GPUs.
func New(cfg Config) (*Engine, error) {
	if cfg.Tolerance <= 0 {
		return nil, errs.Shape("engine", "tolerance must be positive, got %g", cfg.Tolerance)
	}

	opts := []device.Option{device.WithProbe(webgpu.Probe)}
	switch {
	case cfg.DisableGPU:
		opts = []device.Option{device.WithoutGPU()}
	case cfg.Probe != nil:
		opts = []device.Option{device.WithProbe(cfg.Probe)}
	}
	reg := device.NewRegistry(opts...)
	reg.Probe()

	d := dispatch.New(reg, cpu.New(cfg.Parallel))
	e := &Engine{
		cfg:        cfg,
		registry:   reg,
		dispatcher: d,
		runner:     bench.NewRunner(d),
	}
	klog.V(1).Infof("engine: ready with devices %v", reg.Devices())
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Registry returns the device registry.
func (e *Engine) Registry() *device.Registry { return e.registry }

// Dispatcher returns the dispatcher.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// Runner returns the benchmark runner.
func (e *Engine) Runner() *bench.Runner { return e.runner }

// Close releases every device. Tensors created through the engine must
// not be used afterwards.
func (e *Engine) Close() {
	e.registry.Close()
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Default returns the process-wide engine, created with DefaultConfig on
// first use.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = New(DefaultConfig())
	})
	return defaultEngine, defaultErr
}
