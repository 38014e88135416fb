package dispatch

import (
	"fmt"
	"time"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/internal/tensor"
	"k8s.io/klog/v2"
)

// Result is the outcome of a successful call.
type Result struct {
	Output *tensor.Tensor

	// Backend is the device that produced Output; Requested is the device
	// chosen first. They differ only when FellBack is true, in which case
	// Requested is a GPU and Backend the CPU.
	Backend   *device.Handle
	Requested *device.Handle
	FellBack  bool

	Duration time.Duration

	// Cause is the GPU failure that triggered the fallback.
	Cause error
}

// resolver returns the kernel set serving a device.
type resolver func(h *device.Handle) (tensor.Backend, error)

// Dispatcher executes Requests on the devices of a registry.
//
// It is safe for concurrent use as long as each call owns its tensors.
type Dispatcher struct {
	registry *device.Registry
	table    map[device.Kind]resolver
	stats    counters
}

// New creates a dispatcher. cpu serves the CPU device; a GPU device is
// served by its own context, which must implement tensor.Backend.
func New(registry *device.Registry, cpu tensor.Backend) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		table: map[device.Kind]resolver{
			device.CPU: func(*device.Handle) (tensor.Backend, error) {
				return cpu, nil
			},
			device.GPU: contextBackend,
		},
	}
}

func contextBackend(h *device.Handle) (tensor.Backend, error) {
	if be, ok := h.Context().(tensor.Backend); ok {
		return be, nil
	}
	return nil, errs.Device("resolve", nil, "%s has no kernel backend", h)
}

// Registry returns the registry the dispatcher selects devices from.
func (d *Dispatcher) Registry() *device.Registry {
	return d.registry
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats.snapshot()
}

// Execute validates r, runs it on the preferred device and, if that device
// is a GPU and the kernel fails, reruns it once on the CPU with the
// original inputs.
//
// Returned errors are a ShapeError (invalid request, nothing was run), a
// DeviceError (an operand's device is no longer registered) or a
// ComputeError (the CPU failed, after a GPU failure when one was tried).
func (d *Dispatcher) Execute(r Request) (*Result, error) {
	call := d.stats.calls.Add(1)
	start := time.Now()

	d.trace(call, r, Validating, nil)
	shape, err := validate(r)
	if err != nil {
		return nil, d.fail(call, r, err)
	}

	d.trace(call, r, SelectingBackend, nil)
	requested := d.registry.PreferredBackend(r.Op, shape.NumElements())
	cpu := d.registry.CPU()

	d.trace(call, r, Executing, requested)
	out, err := d.run(requested, r, shape)
	if err == nil {
		return d.finish(call, r, out, requested, requested, nil, start)
	}
	if requested.Kind() == device.CPU {
		return nil, d.fail(call, r, errs.Compute(r.Op.String(), err,
			"%s failed on %s", r, requested))
	}

	gpuErr := err
	d.stats.fallbacks.Add(1)
	d.trace(call, r, FallingBack, requested)
	if declinesDType(requested, r.Inputs[0].DType()) {
		klog.V(2).Infof("dispatch: %s has no %s kernels, running on %s", requested, r.Inputs[0].DType(), cpu)
	} else {
		klog.Warningf("dispatch: %s failed on %s, falling back to %s: %v", r, requested, cpu, gpuErr)
	}

	d.trace(call, r, Executing, cpu)
	out, err = d.run(cpu, r, shape)
	if err != nil {
		return nil, d.fail(call, r, errs.Compute(r.Op.String(), err,
			"%s failed on %s (%v) and on fallback %s", r, requested, gpuErr, cpu))
	}
	return d.finish(call, r, out, cpu, requested, gpuErr, start)
}

// ExecuteOn runs r on h with no backend selection and no fallback. A
// kernel failure is returned as a DeviceError.
func (d *Dispatcher) ExecuteOn(h *device.Handle, r Request) (*Result, error) {
	call := d.stats.calls.Add(1)
	start := time.Now()

	d.trace(call, r, Validating, nil)
	shape, err := validate(r)
	if err != nil {
		return nil, d.fail(call, r, err)
	}
	if !h.Registered() {
		return nil, d.fail(call, r, errs.Device(r.Op.String(), nil, "device %s is not registered", h))
	}

	d.trace(call, r, Executing, h)
	out, err := d.run(h, r, shape)
	if err != nil {
		if !errs.IsDevice(err) {
			err = errs.Device(r.Op.String(), err, "%s failed on %s", r, h)
		}
		return nil, d.fail(call, r, err)
	}
	return d.finish(call, r, out, h, h, nil, start)
}

// GEMM executes C = alpha*A@B + beta*C.
func (d *Dispatcher) GEMM(alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) (*Result, error) {
	return d.Execute(GEMMRequest(alpha, a, b, beta, c))
}

// GEMV executes y = alpha*A@x + beta*y.
func (d *Dispatcher) GEMV(alpha float64, a, x *tensor.Tensor, beta float64, y *tensor.Tensor) (*Result, error) {
	return d.Execute(GEMVRequest(alpha, a, x, beta, y))
}

// BatchedGEMM executes a GEMM per batch entry.
func (d *Dispatcher) BatchedGEMM(alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) (*Result, error) {
	return d.Execute(BatchedGEMMRequest(alpha, a, b, beta, c))
}

// Affine executes y = W@x + bias.
func (d *Dispatcher) Affine(w, x, bias *tensor.Tensor) (*Result, error) {
	return d.Execute(AffineRequest(w, x, bias))
}

// run stages the operands onto h and invokes its kernel. The request's
// tensors are never modified: staging creates copies.
func (d *Dispatcher) run(h *device.Handle, r Request, shape tensor.Shape) (*tensor.Tensor, error) {
	resolve, ok := d.table[h.Kind()]
	if !ok {
		return nil, errs.Device(r.Op.String(), nil, "no backend for device kind %s", h.Kind())
	}
	be, err := resolve(h)
	if err != nil {
		return nil, err
	}

	var staged [3]*tensor.Tensor
	for i, t := range r.operands() {
		if staged[i], err = d.stage(t, h); err != nil {
			return nil, err
		}
	}

	d.stats.kernels.Add(1)
	out, err := invoke(be, h, r, staged)
	if err != nil {
		return nil, err
	}
	if out == nil || !out.Shape().Equal(shape) || out.Device() != h {
		return nil, errs.Device(r.Op.String(), nil, "%s returned %v, want %v on %s", be.Name(), out, shape, h)
	}
	return out, nil
}

// stage returns t if it already resides on h, or a copy on h.
func (d *Dispatcher) stage(t *tensor.Tensor, h *device.Handle) (*tensor.Tensor, error) {
	if t.Device() == h {
		return t, nil
	}
	d.stats.transfers.Add(1)
	return t.To(h)
}

// invoke calls the kernel for r.Op, converting a panic into a DeviceError.
func invoke(be tensor.Backend, h *device.Handle, r Request, in [3]*tensor.Tensor) (out *tensor.Tensor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = errs.Device(r.Op.String(), nil, "%s kernel panicked: %v", be.Name(), rec)
		}
	}()

	switch r.Op {
	case ops.GEMM:
		return be.GEMM(h, r.Alpha, in[0], in[1], r.Beta, in[2])
	case ops.GEMV:
		return be.GEMV(h, r.Alpha, in[0], in[1], r.Beta, in[2])
	case ops.BatchedGEMM:
		return be.BatchedGEMM(h, r.Alpha, in[0], in[1], r.Beta, in[2])
	case ops.Affine:
		return be.Affine(h, in[0], in[1], in[2])
	}
	return nil, errs.Shape(r.Op.String(), "unknown operation")
}

func (d *Dispatcher) finish(call uint64, r Request, out *tensor.Tensor, used, requested *device.Handle, cause error, start time.Time) (*Result, error) {
	if r.ToHost {
		host, err := d.stage(out, d.registry.CPU())
		if err != nil {
			return nil, d.fail(call, r, errs.Compute(r.Op.String(), err, "moving %s output to host", r))
		}
		out = host
	}
	res := &Result{
		Output:    out,
		Backend:   used,
		Requested: requested,
		FellBack:  cause != nil,
		Duration:  time.Since(start),
		Cause:     cause,
	}
	d.trace(call, r, Success, used)
	return res, nil
}

func (d *Dispatcher) fail(call uint64, r Request, err error) error {
	d.stats.failures.Add(1)
	d.trace(call, r, Failed, nil)
	klog.V(2).Infof("dispatch: call %d %s: %v", call, r, err)
	return err
}

func (d *Dispatcher) trace(call uint64, r Request, s State, h *device.Handle) {
	if !klog.V(3).Enabled() {
		return
	}
	where := ""
	if h != nil {
		where = fmt.Sprintf(" on %s", h)
	}
	klog.Infof("dispatch: call %d %s: %s%s", call, r.Op, s, where)
}

// dtypeFeatures are the capability features naming supported dtypes.
var dtypeFeatures = map[tensor.DataType]string{
	tensor.Float16: "f16",
	tensor.Float32: "f32",
	tensor.Float64: "f64",
}

// declinesDType reports whether h advertises its dtypes and dt is not one
// of them. A capability listing no dtype feature declines nothing.
func declinesDType(h *device.Handle, dt tensor.DataType) bool {
	c := h.Capability()
	for _, f := range dtypeFeatures {
		if c.Has(f) {
			return !c.Has(dtypeFeatures[dt])
		}
	}
	return false
}
