package cpu

import (
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// GEMM computes alpha*A@B + beta*C for A [M,K], B [K,N] and optional C [M,N].
func (cpu *CPUBackend) GEMM(dst *device.Handle, alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) (*tensor.Tensor, error) {
	m, k, n := a.Dim(0), a.Dim(1), b.Dim(1)
	out, err := output("gemm", tensor.Shape{m, n}, a.DType(), dst, beta, c)
	if err != nil {
		return nil, err
	}

	switch a.DType() {
	case tensor.Float64:
		gemm64(alpha, a.AsFloat64(), b.AsFloat64(), beta, out.AsFloat64(), m, k, n)
	case tensor.Float32:
		gemm32(float32(alpha), a.AsFloat32(), b.AsFloat32(), float32(beta), out.AsFloat32(), m, k, n)
	case tensor.Float16:
		acc := widen(out.AsFloat16())
		gemm32(float32(alpha), widen(a.AsFloat16()), widen(b.AsFloat16()), float32(beta), acc, m, k, n)
		narrow(out.AsFloat16(), acc)
	default:
		return nil, unsupported("gemm", a.DType())
	}
	return out, nil
}

// GEMV computes alpha*A@x + beta*y for A [M,N], x [N] and optional y [M].
func (cpu *CPUBackend) GEMV(dst *device.Handle, alpha float64, a, x *tensor.Tensor, beta float64, y *tensor.Tensor) (*tensor.Tensor, error) {
	m, n := a.Dim(0), a.Dim(1)
	out, err := output("gemv", tensor.Shape{m}, a.DType(), dst, beta, y)
	if err != nil {
		return nil, err
	}

	switch a.DType() {
	case tensor.Float64:
		gemv64(blas.NoTrans, alpha, a.AsFloat64(), x.AsFloat64(), beta, out.AsFloat64(), m, n)
	case tensor.Float32:
		gemv32(blas.NoTrans, float32(alpha), a.AsFloat32(), x.AsFloat32(), float32(beta), out.AsFloat32(), m, n)
	case tensor.Float16:
		acc := widen(out.AsFloat16())
		gemv32(blas.NoTrans, float32(alpha), widen(a.AsFloat16()), widen(x.AsFloat16()), float32(beta), acc, m, n)
		narrow(out.AsFloat16(), acc)
	default:
		return nil, unsupported("gemv", a.DType())
	}
	return out, nil
}

// gemm32 computes c = alpha*a@b + beta*c on row-major slices.
func gemm32(alpha float32, a, b []float32, beta float32, c []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, alpha,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		beta,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c})
}

func gemm64(alpha float64, a, b []float64, beta float64, c []float64, m, k, n int) {
	blas64.Gemm(blas.NoTrans, blas.NoTrans, alpha,
		blas64.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas64.General{Rows: k, Cols: n, Stride: n, Data: b},
		beta,
		blas64.General{Rows: m, Cols: n, Stride: n, Data: c})
}

// gemv32 computes y = alpha*op(a)@x + beta*y where a is [m,n] row-major.
func gemv32(t blas.Transpose, alpha float32, a, x []float32, beta float32, y []float32, m, n int) {
	blas32.Gemv(t, alpha,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: a},
		blas32.Vector{N: len(x), Inc: 1, Data: x},
		beta,
		blas32.Vector{N: len(y), Inc: 1, Data: y})
}

func gemv64(t blas.Transpose, alpha float64, a, x []float64, beta float64, y []float64, m, n int) {
	blas64.Gemv(t, alpha,
		blas64.General{Rows: m, Cols: n, Stride: n, Data: a},
		blas64.Vector{N: len(x), Inc: 1, Data: x},
		beta,
		blas64.Vector{N: len(y), Inc: 1, Data: y})
}
