// Package cpu implements the host backend on top of gonum BLAS.
package cpu

import (
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/parallel"
	"github.com/born-ml/accel/internal/tensor"
)

var _ tensor.Backend = (*CPUBackend)(nil)

// CPUBackend runs every kernel through gonum's pure-Go BLAS. Float16
// operands are widened to float32 for the computation and narrowed back.
type CPUBackend struct {
	parallel parallel.Config
}

// New creates a new CPU backend. cfg controls how BatchedGEMM spreads
// batch entries across goroutines.
func New(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{parallel: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "gonum"
}

// output allocates the result tensor on dst. When beta is non-zero and
// acc is given, the result starts as a copy of acc so BLAS can accumulate
// into it; otherwise it is zero-filled.
func output(op string, shape tensor.Shape, dtype tensor.DataType, dst *device.Handle, beta float64, acc *tensor.Tensor) (*tensor.Tensor, error) {
	if beta != 0 && acc != nil {
		out, err := tensor.FromBytes(acc.Data(), shape, dtype, dst)
		if err != nil {
			return nil, errs.Compute(op, err, "allocating %v output", shape)
		}
		return out, nil
	}
	out, err := tensor.Allocate(shape, dtype, dst)
	if err != nil {
		return nil, errs.Compute(op, err, "allocating %v output", shape)
	}
	return out, nil
}

func unsupported(op string, dtype tensor.DataType) error {
	return errs.Shape(op, "dtype %s is not supported by the gonum backend", dtype)
}
