package device

import (
	"fmt"
	"sync"

	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/ops"
	"k8s.io/klog/v2"
)

// Discovered is one GPU reported by a ProbeFunc.
type Discovered struct {
	Capability Capability
	Context    Context
}

// ProbeFunc attempts to create GPU contexts. It may fail or panic; the
// registry records either outcome as "GPU not available".
type ProbeFunc func() ([]Discovered, error)

// Option configures a Registry.
type Option func(*Registry)

// WithProbe sets the function used to discover GPUs.
func WithProbe(probe ProbeFunc) Option {
	return func(r *Registry) {
		r.probeFn = probe
	}
}

// WithoutGPU disables GPU discovery: Probe always reports no GPU.
func WithoutGPU() Option {
	return func(r *Registry) {
		r.probeFn = nil
		r.disabled = true
	}
}

// Registry holds the usable devices of the process.
//
// The CPU handle exists from construction. GPU handles are added by the
// first call to Probe and never change afterwards, so readers need no lock
// once Probe has returned.
type Registry struct {
	probeFn  ProbeFunc
	disabled bool

	cpu *Handle

	once     sync.Once
	gpus     []*Handle
	probeErr error

	closeOnce sync.Once
}

// NewRegistry creates a registry holding the CPU handle. GPUs are
// discovered by Probe.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		cpu: newHandle(CPU, 0, hostCapability(), nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe discovers GPUs the first time it is called and returns whether at
// least one GPU is usable. Later calls return the cached outcome. Probe
// never panics and never fails: problems are recorded in ProbeErr.
func (r *Registry) Probe() bool {
	r.once.Do(r.probe)
	return len(r.gpus) > 0
}

func (r *Registry) probe() {
	switch {
	case r.disabled:
		r.probeErr = errs.Device("probe", nil, "GPU discovery disabled by configuration")
	case r.probeFn == nil:
		r.probeErr = errs.Device("probe", nil, "no GPU backend configured")
	default:
		found, err := safeProbe(r.probeFn)
		if err != nil {
			r.probeErr = errs.Device("probe", err, "GPU not available")
			break
		}
		for i, d := range found {
			if d.Context == nil {
				klog.Warningf("device: probe returned GPU %d without a context, skipping", i)
				continue
			}
			r.gpus = append(r.gpus, newHandle(GPU, len(r.gpus), d.Capability, d.Context))
		}
		if len(r.gpus) == 0 {
			r.probeErr = errs.Device("probe", nil, "no GPU adapters found")
		}
	}

	if r.probeErr != nil {
		if r.disabled || r.probeFn == nil {
			klog.V(1).Infof("device: %v; using %s only", r.probeErr, r.cpu)
		} else {
			klog.Warningf("device: %v; using %s only", r.probeErr, r.cpu)
		}
		return
	}
	for _, h := range r.gpus {
		klog.V(1).Infof("device: registered %s: %s", h, h.capability)
	}
}

// safeProbe runs probe, converting panics from native libraries into errors.
func safeProbe(probe ProbeFunc) (found []Discovered, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			found = nil
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return probe()
}

// ProbeErr returns why no GPU is available, or nil if one is. It probes
// first if needed.
func (r *Registry) ProbeErr() error {
	r.Probe()
	return r.probeErr
}

// GPUAvailable reports whether a GPU was successfully probed.
func (r *Registry) GPUAvailable() bool {
	return r.Probe()
}

// CPU returns the CPU handle. It always exists.
func (r *Registry) CPU() *Handle {
	return r.cpu
}

// GPUs returns the probed GPU handles in ordinal order.
func (r *Registry) GPUs() []*Handle {
	r.Probe()
	return append([]*Handle(nil), r.gpus...)
}

// Devices returns the CPU handle followed by every GPU handle.
func (r *Registry) Devices() []*Handle {
	return append([]*Handle{r.cpu}, r.GPUs()...)
}

// Lookup returns the registered handle with the given ID.
func (r *Registry) Lookup(id string) (*Handle, error) {
	for _, h := range r.Devices() {
		if h.id == id {
			if !h.Registered() {
				return nil, errs.Device("lookup", nil, "device %s is no longer registered", id)
			}
			return h, nil
		}
	}
	return nil, errs.Device("lookup", nil, "unknown device %q", id)
}

// PreferredBackend returns the device an operation should run on: the
// first GPU when one was probed successfully, otherwise the CPU.
//
// sizeHint is accepted for size-based routing (small problems are often
// faster on the CPU) but this policy deliberately ignores it.
func (r *Registry) PreferredBackend(op ops.Kind, sizeHint int) *Handle {
	_, _ = op, sizeHint
	if r.Probe() {
		if gpu := r.gpus[0]; gpu.Registered() {
			return gpu
		}
	}
	return r.cpu
}

// Close unregisters every device and releases GPU contexts. Tensors that
// reference these devices must not be used afterwards. Close is idempotent.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		// Prevent a late first Probe from registering new GPUs.
		r.once.Do(func() {
			r.probeErr = errs.Device("probe", nil, "registry closed")
		})
		for _, h := range r.gpus {
			h.registered.Store(false)
			releaseContext(h)
		}
		r.cpu.registered.Store(false)
		klog.V(1).Infof("device: registry closed")
	})
}

func releaseContext(h *Handle) {
	defer func() {
		if rec := recover(); rec != nil {
			klog.Errorf("device: releasing %s panicked: %v", h, rec)
		}
	}()
	h.ctx.Release()
}
