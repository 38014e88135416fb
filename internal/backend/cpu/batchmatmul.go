package cpu

import (
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/parallel"
	"github.com/born-ml/accel/internal/tensor"
)

// BatchedGEMM computes GEMM for every index of the leading dimension:
// [B,M,K] @ [B,K,N] (+ [B,M,N]) -> [B,M,N].
//
// Batch entries run concurrently according to the parallel config. Each
// entry writes only its own slice of the output, so output entry i always
// comes from input entry i.
func (cpu *CPUBackend) BatchedGEMM(dst *device.Handle, alpha float64, a, b *tensor.Tensor, beta float64, c *tensor.Tensor) (*tensor.Tensor, error) {
	batch, m, k, n := a.Dim(0), a.Dim(1), a.Dim(2), b.Dim(2)
	out, err := output("batched_gemm", tensor.Shape{batch, m, n}, a.DType(), dst, beta, c)
	if err != nil {
		return nil, err
	}

	switch a.DType() {
	case tensor.Float64:
		batchedGEMM(cpu.parallel, gemm64, alpha, a.AsFloat64(), b.AsFloat64(), beta, out.AsFloat64(), batch, m, k, n)
	case tensor.Float32:
		batchedGEMM(cpu.parallel, gemm32, float32(alpha), a.AsFloat32(), b.AsFloat32(), float32(beta), out.AsFloat32(), batch, m, k, n)
	case tensor.Float16:
		acc := widen(out.AsFloat16())
		batchedGEMM(cpu.parallel, gemm32, float32(alpha), widen(a.AsFloat16()), widen(b.AsFloat16()), float32(beta), acc, batch, m, k, n)
		narrow(out.AsFloat16(), acc)
	default:
		return nil, unsupported("batched_gemm", a.DType())
	}
	return out, nil
}

func batchedGEMM[T float32 | float64](cfg parallel.Config, gemm func(alpha T, a, b []T, beta T, c []T, m, k, n int), alpha T, a, b []T, beta T, c []T, batch, m, k, n int) {
	aStride, bStride, cStride := m*k, k*n, m*n
	parallel.For(batch, func(i int) {
		gemm(alpha,
			a[i*aStride:(i+1)*aStride],
			b[i*bStride:(i+1)*bStride],
			beta,
			c[i*cStride:(i+1)*cStride],
			m, k, n)
	}, cfg)
}
