package suite

import (
	"math/rand"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/tensor"
	"github.com/chewxy/math32"
)

// randomMatrix returns a Float32 host tensor with values in [-1, 1).
func randomMatrix(rng *rand.Rand, shape tensor.Shape, dev *device.Handle) (*tensor.Tensor, []float32, error) {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	t, err := tensor.FromHost(data, shape, dev)
	return t, data, err
}

// referenceGEMM is the naive triple loop over a batch of row-major
// matrices, accumulated in float64. c may be nil when beta is zero.
func referenceGEMM(alpha float32, a, b []float32, beta float32, c []float32, batch, m, k, n int) []float32 {
	out := make([]float32, batch*m*n)
	for p := 0; p < batch; p++ {
		aOff, bOff, cOff := p*m*k, p*k*n, p*m*n
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var sum float64
				for l := 0; l < k; l++ {
					sum += float64(a[aOff+i*k+l]) * float64(b[bOff+l*n+j])
				}
				v := float64(alpha) * sum
				if beta != 0 {
					v += float64(beta) * float64(c[cOff+i*n+j])
				}
				out[cOff+i*n+j] = float32(v)
			}
		}
	}
	return out
}

// referenceAffine computes x@W^T + bias row by row.
func referenceAffine(w, x, bias []float32, batch, outF, inF int) []float32 {
	out := make([]float32, batch*outF)
	for r := 0; r < batch; r++ {
		for o := 0; o < outF; o++ {
			sum := float64(bias[o])
			for i := 0; i < inF; i++ {
				sum += float64(w[o*inF+i]) * float64(x[r*inF+i])
			}
			out[r*outF+o] = float32(sum)
		}
	}
	return out
}

// relativeError returns ||got - want||_2 / ||want||_2, or ||got - want||_2
// when want is all zeros.
func relativeError(got, want []float32) float32 {
	var num, den float32
	for i := range want {
		d := got[i] - want[i]
		num += d * d
		den += want[i] * want[i]
	}
	if den == 0 {
		return math32.Sqrt(num)
	}
	return math32.Sqrt(num / den)
}

// hostValues copies a Float32 tensor to the host as []float32.
func hostValues(t *tensor.Tensor) ([]float32, error) {
	return tensor.ToHost[float32](t)
}
