// Package ops enumerates the dense linear-algebra operations accel dispatches.
package ops

// Kind identifies an operation.
type Kind int

// Supported operations.
const (
	GEMM        Kind = iota // C = αAB + βC.
	GEMV                    // y = αAx + βy.
	BatchedGEMM             // C[i] = αA[i]B[i] + βC[i] for every batch index i.
	Affine                  // y = Wx + b.
)

// All lists every operation in declaration order.
var All = []Kind{GEMM, GEMV, BatchedGEMM, Affine}

// String returns the lower-case operation name used in logs and errors.
func (k Kind) String() string {
	switch k {
	case GEMM:
		return "gemm"
	case GEMV:
		return "gemv"
	case BatchedGEMM:
		return "batched_gemm"
	case Affine:
		return "affine"
	default:
		return "unknown"
	}
}

// Parse returns the Kind whose String matches name.
func Parse(name string) (Kind, bool) {
	for _, k := range All {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}
