package dispatch

import (
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/internal/tensor"
)

// validate checks the request without touching any backend and returns
// the output shape. Every failure except an unregistered operand device
// is a ShapeError.
func validate(r Request) (tensor.Shape, error) {
	op := r.Op.String()
	names := operandNames(r.Op)
	if names == nil {
		return nil, errs.Shape(op, "unknown operation %d", int(r.Op))
	}

	operands := r.operands()
	for i, t := range operands {
		if t == nil {
			if i == 2 && r.Op != ops.Affine {
				return nil, errs.Shape(op, "beta is %g but %s is missing", r.Beta, names[i])
			}
			return nil, errs.Shape(op, "%s is missing", names[i])
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if t.DType() != operands[0].DType() {
			return nil, errs.Shape(op, "dtype mismatch: %s is %s, %s is %s",
				names[0], operands[0].DType(), names[i], t.DType())
		}
	}

	var acc *tensor.Tensor
	if len(operands) == 3 {
		acc = operands[2]
	}
	a, b := operands[0], operands[1]

	switch r.Op {
	case ops.GEMM:
		if err := ranks(op, names, a, 2, b, 2); err != nil {
			return nil, err
		}
		if a.Dim(1) != b.Dim(0) {
			return nil, errs.Shape(op, "inner dimensions differ: A %v, B %v", a.Shape(), b.Shape())
		}
		return expect(op, names[2], acc, tensor.Shape{a.Dim(0), b.Dim(1)})

	case ops.GEMV:
		if err := ranks(op, names, a, 2, b, 1); err != nil {
			return nil, err
		}
		if a.Dim(1) != b.Dim(0) {
			return nil, errs.Shape(op, "A %v cannot multiply x %v", a.Shape(), b.Shape())
		}
		return expect(op, names[2], acc, tensor.Shape{a.Dim(0)})

	case ops.BatchedGEMM:
		if err := ranks(op, names, a, 3, b, 3); err != nil {
			return nil, err
		}
		if a.Dim(0) != b.Dim(0) {
			return nil, errs.Shape(op, "batch sizes differ: A %v, B %v", a.Shape(), b.Shape())
		}
		if a.Dim(2) != b.Dim(1) {
			return nil, errs.Shape(op, "inner dimensions differ: A %v, B %v", a.Shape(), b.Shape())
		}
		return expect(op, names[2], acc, tensor.Shape{a.Dim(0), a.Dim(1), b.Dim(2)})

	default: // ops.Affine
		w, x, bias := a, b, acc
		if w.Rank() != 2 {
			return nil, errs.Shape(op, "W must be rank 2, got %v", w.Shape())
		}
		if bias.Rank() != 1 || bias.Dim(0) != w.Dim(0) {
			return nil, errs.Shape(op, "bias %v does not match W %v", bias.Shape(), w.Shape())
		}
		switch {
		case x.Rank() == 1 && x.Dim(0) == w.Dim(1):
			return tensor.Shape{w.Dim(0)}, nil
		case x.Rank() == 2 && x.Dim(1) == w.Dim(1):
			return tensor.Shape{x.Dim(0), w.Dim(0)}, nil
		}
		return nil, errs.Shape(op, "x %v does not match W %v", x.Shape(), w.Shape())
	}
}

func operandNames(op ops.Kind) []string {
	switch op {
	case ops.GEMM, ops.BatchedGEMM:
		return []string{"A", "B", "C"}
	case ops.GEMV:
		return []string{"A", "x", "y"}
	case ops.Affine:
		return []string{"W", "x", "bias"}
	}
	return nil
}

func ranks(op string, names []string, a *tensor.Tensor, ra int, b *tensor.Tensor, rb int) error {
	if a.Rank() != ra {
		return errs.Shape(op, "%s must be rank %d, got %v", names[0], ra, a.Shape())
	}
	if b.Rank() != rb {
		return errs.Shape(op, "%s must be rank %d, got %v", names[1], rb, b.Shape())
	}
	return nil
}

// expect checks the optional accumulator against the output shape.
func expect(op, name string, acc *tensor.Tensor, out tensor.Shape) (tensor.Shape, error) {
	if acc != nil && !acc.Shape().Equal(out) {
		return nil, errs.Shape(op, "%s is %v, want %v", name, acc.Shape(), out)
	}
	if err := out.Validate(); err != nil {
		return nil, errs.Shape(op, "output %v is not allocatable", out)
	}
	return out, nil
}
