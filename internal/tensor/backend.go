package tensor

import "github.com/born-ml/accel/internal/device"

// Backend defines the kernels a compute backend provides. One Backend
// serves every device of a kind (CPU) or a single device (a GPU context).
//
// Implementations:
//   - backend/cpu: gonum BLAS on the host
//   - backend/webgpu: WGSL compute shaders via WebGPU
//   - MockBackend: naive reference kernels with fault injection
//
// Kernels receive inputs already validated and resident on dst, and return
// a new tensor on dst. Inputs are never modified. A kernel that cannot run
// returns an error; it must not leave partial results behind.
type Backend interface {
	// GEMM computes alpha*A@B + beta*C for A [M,K], B [K,N], C [M,N].
	// c is nil when beta == 0.
	GEMM(dst *device.Handle, alpha float64, a, b *Tensor, beta float64, c *Tensor) (*Tensor, error)

	// GEMV computes alpha*A@x + beta*y for A [M,N], x [N], y [M].
	// y is nil when beta == 0.
	GEMV(dst *device.Handle, alpha float64, a, x *Tensor, beta float64, y *Tensor) (*Tensor, error)

	// BatchedGEMM applies GEMM to every index of the leading dimension of
	// A [B,M,K], B [B,K,N], C [B,M,N]. Output index i comes from input index i.
	BatchedGEMM(dst *device.Handle, alpha float64, a, b *Tensor, beta float64, c *Tensor) (*Tensor, error)

	// Affine computes W@x + bias for W [Out,In], bias [Out] and x [In],
	// or row-wise x@W^T + bias for x [Batch,In].
	Affine(dst *device.Handle, w, x, bias *Tensor) (*Tensor, error)

	// Name returns the backend name (e.g., "gonum", "webgpu").
	Name() string
}
