//go:build windows

package webgpu

import (
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/tensor"
)

// GEMM computes alpha*A@B + beta*C on the GPU.
func (b *Backend) GEMM(dst *device.Handle, alpha float64, a, bm *tensor.Tensor, beta float64, c *tensor.Tensor) (*tensor.Tensor, error) {
	return b.product("gemm", dst, alpha, a, bm, beta, c, 1, a.Dim(0), a.Dim(1), bm.Dim(1), tensor.Shape{a.Dim(0), bm.Dim(1)})
}

// GEMV computes alpha*A@x + beta*y on the GPU as a GEMM with N = 1.
func (b *Backend) GEMV(dst *device.Handle, alpha float64, a, x *tensor.Tensor, beta float64, y *tensor.Tensor) (*tensor.Tensor, error) {
	return b.product("gemv", dst, alpha, a, x, beta, y, 1, a.Dim(0), a.Dim(1), 1, tensor.Shape{a.Dim(0)})
}

// BatchedGEMM computes one GEMM per batch entry in a single dispatch; the
// batch index is the z dimension of the grid.
func (b *Backend) BatchedGEMM(dst *device.Handle, alpha float64, a, bm *tensor.Tensor, beta float64, c *tensor.Tensor) (*tensor.Tensor, error) {
	batch, m, k, n := a.Dim(0), a.Dim(1), a.Dim(2), bm.Dim(2)
	return b.product("batched_gemm", dst, alpha, a, bm, beta, c, batch, m, k, n, tensor.Shape{batch, m, n})
}

// Affine computes W@x + bias (or x@W^T + bias row-wise) on the GPU.
func (b *Backend) Affine(dst *device.Handle, w, x, bias *tensor.Tensor) (*tensor.Tensor, error) {
	if err := float32Only("affine", w, x, bias); err != nil {
		return nil, err
	}
	outF, inF := w.Dim(0), w.Dim(1)
	batch, shape := 1, tensor.Shape{outF}
	if x.Rank() == 2 {
		batch, shape = x.Dim(0), tensor.Shape{x.Dim(0), outF}
	}

	init := make([]byte, 0, batch*bias.ByteSize())
	for r := 0; r < batch; r++ {
		init = append(init, bias.Data()...)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := b.run(dispatch{
		name:   "affine",
		code:   affineShader,
		lhs:    w.Data(),
		rhs:    x.Data(),
		init:   init,
		params: packParams(batch, outF, inF),
		groups: [3]uint32{groups(outF), groups(batch), 1},
	})
	if err != nil {
		return nil, errs.Compute("affine", err, "webgpu dispatch for W %v, x %v", w.Shape(), x.Shape())
	}
	return tensor.FromBytes(data, shape, tensor.Float32, dst)
}

func (b *Backend) product(op string, dst *device.Handle, alpha float64, a, bm *tensor.Tensor, beta float64, c *tensor.Tensor, batch, m, k, n int, shape tensor.Shape) (*tensor.Tensor, error) {
	if err := float32Only(op, a, bm, c); err != nil {
		return nil, err
	}

	var init []byte
	if beta != 0 && c != nil {
		init = c.HostBytes()
	} else {
		init = make([]byte, shape.NumElements()*tensor.Float32.Size())
	}

	params := packParams(batch, m, k, n)
	params = appendFloat32(params, float32(alpha))
	params = appendFloat32(params, float32(beta))

	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := b.run(dispatch{
		name:   "gemm",
		code:   gemmShader,
		lhs:    a.Data(),
		rhs:    bm.Data(),
		init:   init,
		params: params,
		groups: [3]uint32{groups(n), groups(m), uint32(batch)}, //nolint:gosec // batch > 0
	})
	if err != nil {
		return nil, errs.Compute(op, err, "webgpu dispatch for %v x %v", a.Shape(), bm.Shape())
	}
	return tensor.FromBytes(data, shape, tensor.Float32, dst)
}

// float32Only rejects operands the shaders cannot read. Nil operands are
// skipped.
func float32Only(op string, ts ...*tensor.Tensor) error {
	for _, t := range ts {
		if t != nil && t.DType() != tensor.Float32 {
			return errs.Device(op, nil, "webgpu supports only float32, got %s", t.DType())
		}
	}
	return nil
}
