// Package dispatch routes linear-algebra operations to a device backend,
// stages operands onto that device and falls back to the CPU once when a
// GPU kernel fails.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/internal/tensor"
)

// Request describes one operation call.
//
// Operand slots by kind:
//
//	GEMM, BatchedGEMM: A, B, C
//	GEMV:              A, x, y
//	Affine:            W, x, bias
//
// C (or y) may be nil when Beta is 0; it is ignored in that case.
type Request struct {
	Op          ops.Kind
	Alpha, Beta float64
	Inputs      [3]*tensor.Tensor

	// ToHost moves the output to the CPU device after execution.
	ToHost bool
}

// GEMMRequest builds C = alpha*A@B + beta*C.
func GEMMRequest(alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) Request {
	return Request{Op: ops.GEMM, Alpha: alpha, Beta: beta, Inputs: [3]*tensor.Tensor{a, b, c}}
}

// GEMVRequest builds y = alpha*A@x + beta*y.
func GEMVRequest(alpha float64, a, x *tensor.Tensor, beta float64, y *tensor.Tensor) Request {
	return Request{Op: ops.GEMV, Alpha: alpha, Beta: beta, Inputs: [3]*tensor.Tensor{a, x, y}}
}

// BatchedGEMMRequest builds C[i] = alpha*A[i]@B[i] + beta*C[i] for every i.
func BatchedGEMMRequest(alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) Request {
	return Request{Op: ops.BatchedGEMM, Alpha: alpha, Beta: beta, Inputs: [3]*tensor.Tensor{a, b, c}}
}

// AffineRequest builds y = W@x + bias.
func AffineRequest(w, x, bias *tensor.Tensor) Request {
	return Request{Op: ops.Affine, Alpha: 1, Beta: 1, Inputs: [3]*tensor.Tensor{w, x, bias}}
}

// operands returns the tensors the kernel reads. The accumulator slot is
// dropped when beta is zero.
func (r Request) operands() []*tensor.Tensor {
	if r.Op != ops.Affine && r.Beta == 0 {
		return r.Inputs[:2]
	}
	return r.Inputs[:]
}

// shapes describes the operand shapes for error messages.
func (r Request) shapes() string {
	parts := make([]string, 0, 3)
	for _, t := range r.operands() {
		if t == nil {
			parts = append(parts, "nil")
			continue
		}
		parts = append(parts, t.Shape().String())
	}
	return strings.Join(parts, " x ")
}

func (r Request) String() string {
	return fmt.Sprintf("%s(%s)", r.Op, r.shapes())
}
