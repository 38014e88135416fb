package cpu

import (
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Affine computes W@x + bias for W [Out,In], x [In], bias [Out].
// A batched x [Batch,In] produces [Batch,Out], one row per input row.
//
// The output starts as bias (broadcast per row) and BLAS accumulates the
// product into it with beta = 1.
func (cpu *CPUBackend) Affine(dst *device.Handle, w, x, bias *tensor.Tensor) (*tensor.Tensor, error) {
	outF, inF := w.Dim(0), w.Dim(1)
	batch, shape := 1, tensor.Shape{outF}
	if x.Rank() == 2 {
		batch, shape = x.Dim(0), tensor.Shape{x.Dim(0), outF}
	}
	out, err := output("affine", shape, w.DType(), dst, 0, nil)
	if err != nil {
		return nil, err
	}

	switch w.DType() {
	case tensor.Float64:
		affine64(w.AsFloat64(), x.AsFloat64(), bias.AsFloat64(), out.AsFloat64(), batch, outF, inF)
	case tensor.Float32:
		affine32(w.AsFloat32(), x.AsFloat32(), bias.AsFloat32(), out.AsFloat32(), batch, outF, inF)
	case tensor.Float16:
		acc := make([]float32, batch*outF)
		affine32(widen(w.AsFloat16()), widen(x.AsFloat16()), widen(bias.AsFloat16()), acc, batch, outF, inF)
		narrow(out.AsFloat16(), acc)
	default:
		return nil, unsupported("affine", w.DType())
	}
	return out, nil
}

func affine32(w, x, bias, out []float32, batch, outF, inF int) {
	for r := 0; r < batch; r++ {
		copy(out[r*outF:(r+1)*outF], bias)
	}
	if batch == 1 && len(x) == inF {
		gemv32(blas.NoTrans, 1, w, x, 1, out, outF, inF)
		return
	}
	// out [B,Out] += x [B,In] @ W^T.
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: batch, Cols: inF, Stride: inF, Data: x},
		blas32.General{Rows: outF, Cols: inF, Stride: inF, Data: w},
		1,
		blas32.General{Rows: batch, Cols: outF, Stride: outF, Data: out})
}

func affine64(w, x, bias, out []float64, batch, outF, inF int) {
	for r := 0; r < batch; r++ {
		copy(out[r*outF:(r+1)*outF], bias)
	}
	if batch == 1 && len(x) == inF {
		gemv64(blas.NoTrans, 1, w, x, 1, out, outF, inF)
		return
	}
	blas64.Gemm(blas.NoTrans, blas.Trans, 1,
		blas64.General{Rows: batch, Cols: inF, Stride: inF, Data: x},
		blas64.General{Rows: outF, Cols: inF, Stride: inF, Data: w},
		1,
		blas64.General{Rows: batch, Cols: outF, Stride: outF, Data: out})
}
