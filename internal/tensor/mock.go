package tensor

import (
	"sync"
	"sync/atomic"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/ops"
)

// Verify that MockBackend implements Backend and can own a GPU handle.
var (
	_ Backend        = (*MockBackend)(nil)
	_ device.Context = (*MockBackend)(nil)
)

// MockBackend is a simple backend for testing.
// It implements all operations naively in float64 for correctness
// verification, and can be told to fail or panic to exercise fallback.
type MockBackend struct {
	name string

	mu      sync.Mutex
	failErr error
	panicOn string

	calls    [4]atomic.Int64
	released atomic.Bool
}

// NewMockBackend creates a new MockBackend.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{name: name}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return m.name
}

// Release marks the mock as released.
func (m *MockBackend) Release() {
	m.released.Store(true)
}

// Released reports whether Release was called.
func (m *MockBackend) Released() bool {
	return m.released.Load()
}

// FailWith makes every subsequent kernel call return err. Pass nil to
// restore normal behavior.
func (m *MockBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// PanicWith makes every subsequent kernel call panic with msg. Pass ""
// to restore normal behavior.
func (m *MockBackend) PanicWith(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicOn = msg
}

// Calls returns how many times the kernel for op was invoked.
func (m *MockBackend) Calls(op ops.Kind) int64 {
	return m.calls[op].Load()
}

// TotalCalls returns the number of kernel invocations of any kind.
func (m *MockBackend) TotalCalls() int64 {
	var n int64
	for i := range m.calls {
		n += m.calls[i].Load()
	}
	return n
}

func (m *MockBackend) enter(op ops.Kind) error {
	m.calls[op].Add(1)
	m.mu.Lock()
	failErr, panicOn := m.failErr, m.panicOn
	m.mu.Unlock()
	if panicOn != "" {
		panic(panicOn)
	}
	return failErr
}

// GEMM computes alpha*A@B + beta*C.
func (m *MockBackend) GEMM(dst *device.Handle, alpha float64, a, b *Tensor, beta float64, c *Tensor) (*Tensor, error) {
	if err := m.enter(ops.GEMM); err != nil {
		return nil, err
	}
	rows, inner, cols := a.Dim(0), a.Dim(1), b.Dim(1)
	out := referenceGEMM(alpha, a.Values(), b.Values(), beta, valuesOrNil(c), 1, rows, inner, cols)
	return FromValues(out, Shape{rows, cols}, a.DType(), dst)
}

// GEMV computes alpha*A@x + beta*y.
func (m *MockBackend) GEMV(dst *device.Handle, alpha float64, a, x *Tensor, beta float64, y *Tensor) (*Tensor, error) {
	if err := m.enter(ops.GEMV); err != nil {
		return nil, err
	}
	rows, cols := a.Dim(0), a.Dim(1)
	out := referenceGEMM(alpha, a.Values(), x.Values(), beta, valuesOrNil(y), 1, rows, cols, 1)
	return FromValues(out, Shape{rows}, a.DType(), dst)
}

// BatchedGEMM computes GEMM for every batch index.
func (m *MockBackend) BatchedGEMM(dst *device.Handle, alpha float64, a, b *Tensor, beta float64, c *Tensor) (*Tensor, error) {
	if err := m.enter(ops.BatchedGEMM); err != nil {
		return nil, err
	}
	batch, rows, inner, cols := a.Dim(0), a.Dim(1), a.Dim(2), b.Dim(2)
	out := referenceGEMM(alpha, a.Values(), b.Values(), beta, valuesOrNil(c), batch, rows, inner, cols)
	return FromValues(out, Shape{batch, rows, cols}, a.DType(), dst)
}

// Affine computes W@x + bias, row-wise for a batched x.
func (m *MockBackend) Affine(dst *device.Handle, w, x, bias *Tensor) (*Tensor, error) {
	if err := m.enter(ops.Affine); err != nil {
		return nil, err
	}
	outF, inF := w.Dim(0), w.Dim(1)
	batch := 1
	shape := Shape{outF}
	if x.Rank() == 2 {
		batch = x.Dim(0)
		shape = Shape{batch, outF}
	}
	wv, xv, bv := w.Values(), x.Values(), bias.Values()
	out := make([]float64, batch*outF)
	for r := 0; r < batch; r++ {
		for o := 0; o < outF; o++ {
			sum := bv[o]
			for i := 0; i < inF; i++ {
				sum += wv[o*inF+i] * xv[r*inF+i]
			}
			out[r*outF+o] = sum
		}
	}
	return FromValues(out, shape, w.DType(), dst)
}

func valuesOrNil(t *Tensor) []float64 {
	if t == nil {
		return nil
	}
	return t.Values()
}

// referenceGEMM is the naive triple loop over a batch of row-major
// matrices. c may be nil, in which case beta is ignored.
func referenceGEMM(alpha float64, a, b []float64, beta float64, c []float64, batch, rows, inner, cols int) []float64 {
	out := make([]float64, batch*rows*cols)
	for n := 0; n < batch; n++ {
		aOff, bOff, cOff := n*rows*inner, n*inner*cols, n*rows*cols
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				sum := 0.0
				for k := 0; k < inner; k++ {
					sum += a[aOff+i*inner+k] * b[bOff+k*cols+j]
				}
				v := alpha * sum
				if c != nil && beta != 0 {
					v += beta * c[cOff+i*cols+j]
				}
				out[cOff+i*cols+j] = v
			}
		}
	}
	return out
}
