package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/internal/parallel"
	"github.com/born-ml/accel/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create test backend and a registered host device.
func newTestBackend(t *testing.T) (*CPUBackend, *device.Handle) {
	t.Helper()
	return New(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}),
		device.NewRegistry(device.WithoutGPU()).CPU()
}

func randomTensor(t *testing.T, rng *rand.Rand, shape tensor.Shape, dtype tensor.DataType, dev *device.Handle) *tensor.Tensor {
	t.Helper()
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = rng.Float64()*2 - 1
	}
	x, err := tensor.FromValues(values, shape, dtype, dev)
	require.NoError(t, err)
	return x
}

// relErr returns ||got-want|| / ||want||.
func relErr(got, want []float64) float64 {
	var num, den float64
	for i := range want {
		d := got[i] - want[i]
		num += d * d
		den += want[i] * want[i]
	}
	if den == 0 {
		return math.Sqrt(num)
	}
	return math.Sqrt(num / den)
}

func tolerance(dtype tensor.DataType) float64 {
	switch dtype {
	case tensor.Float16:
		return 1e-2
	case tensor.Float32:
		return 1e-5
	default:
		return 1e-12
	}
}

var dtypes = []tensor.DataType{tensor.Float16, tensor.Float32, tensor.Float64}

func TestCPUBackend_Name(t *testing.T) {
	backend, _ := newTestBackend(t)
	assert.Equal(t, "gonum", backend.Name())
}

func TestCPUBackend_GEMM_Known(t *testing.T) {
	backend, cpu := newTestBackend(t)

	a, err := tensor.FromHost([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, cpu)
	require.NoError(t, err)
	b, err := tensor.FromHost([]float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2}, cpu)
	require.NoError(t, err)

	out, err := backend.GEMM(cpu, 1, a, b, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	got, err := tensor.ToHost[float32](out)
	require.NoError(t, err)
	assert.Equal(t, []float32{58, 64, 139, 154}, got)
	assert.Same(t, cpu, out.Device())
}

func TestCPUBackend_GEMM_AlphaBeta(t *testing.T) {
	backend, cpu := newTestBackend(t)

	a, err := tensor.FromHost([]float64{1, 0, 0, 1}, tensor.Shape{2, 2}, cpu)
	require.NoError(t, err)
	b, err := tensor.FromHost([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, cpu)
	require.NoError(t, err)
	c, err := tensor.FromHost([]float64{10, 10, 10, 10}, tensor.Shape{2, 2}, cpu)
	require.NoError(t, err)

	out, err := backend.GEMM(cpu, 2, a, b, 0.5, c)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 9, 11, 13}, out.Values())
	// C is an input: it must not be modified.
	assert.Equal(t, []float64{10, 10, 10, 10}, c.Values())
}

func TestCPUBackend_GEMM_MatchesReference(t *testing.T) {
	backend, cpu := newTestBackend(t)
	ref := tensor.NewMockBackend("reference")
	rng := rand.New(rand.NewSource(42))

	for _, dtype := range dtypes {
		t.Run(dtype.String(), func(t *testing.T) {
			a := randomTensor(t, rng, tensor.Shape{17, 9}, dtype, cpu)
			b := randomTensor(t, rng, tensor.Shape{9, 13}, dtype, cpu)
			c := randomTensor(t, rng, tensor.Shape{17, 13}, dtype, cpu)

			got, err := backend.GEMM(cpu, 1.5, a, b, -0.5, c)
			require.NoError(t, err)
			want, err := ref.GEMM(cpu, 1.5, a, b, -0.5, c)
			require.NoError(t, err)
			assert.Equal(t, dtype, got.DType())
			assert.LessOrEqual(t, relErr(got.Values(), want.Values()), tolerance(dtype))
		})
	}
}

func TestCPUBackend_GEMV(t *testing.T) {
	backend, cpu := newTestBackend(t)

	a, err := tensor.FromHost([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, cpu)
	require.NoError(t, err)
	x, err := tensor.FromHost([]float32{1, 0, -1}, tensor.Shape{3}, cpu)
	require.NoError(t, err)
	y, err := tensor.FromHost([]float32{1, 1}, tensor.Shape{2}, cpu)
	require.NoError(t, err)

	out, err := backend.GEMV(cpu, 1, a, x, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, out.Shape())
	assert.Equal(t, []float64{-2, -2}, out.Values())

	out, err = backend.GEMV(cpu, 2, a, x, 3, y)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1}, out.Values())
}

func TestCPUBackend_GEMV_MatchesReference(t *testing.T) {
	backend, cpu := newTestBackend(t)
	ref := tensor.NewMockBackend("reference")
	rng := rand.New(rand.NewSource(7))

	for _, dtype := range dtypes {
		t.Run(dtype.String(), func(t *testing.T) {
			a := randomTensor(t, rng, tensor.Shape{31, 20}, dtype, cpu)
			x := randomTensor(t, rng, tensor.Shape{20}, dtype, cpu)
			y := randomTensor(t, rng, tensor.Shape{31}, dtype, cpu)

			got, err := backend.GEMV(cpu, 0.75, a, x, 2, y)
			require.NoError(t, err)
			want, err := ref.GEMV(cpu, 0.75, a, x, 2, y)
			require.NoError(t, err)
			assert.LessOrEqual(t, relErr(got.Values(), want.Values()), tolerance(dtype))
		})
	}
}

func TestCPUBackend_BatchedGEMM_MatchesReference(t *testing.T) {
	backend, cpu := newTestBackend(t)
	ref := tensor.NewMockBackend("reference")
	rng := rand.New(rand.NewSource(3))

	for _, dtype := range dtypes {
		t.Run(dtype.String(), func(t *testing.T) {
			a := randomTensor(t, rng, tensor.Shape{6, 5, 4}, dtype, cpu)
			b := randomTensor(t, rng, tensor.Shape{6, 4, 3}, dtype, cpu)

			got, err := backend.BatchedGEMM(cpu, 1, a, b, 0, nil)
			require.NoError(t, err)
			want, err := ref.BatchedGEMM(cpu, 1, a, b, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{6, 5, 3}, got.Shape())
			assert.LessOrEqual(t, relErr(got.Values(), want.Values()), tolerance(dtype))
		})
	}
}

func TestCPUBackend_BatchedGEMM_PreservesOrder(t *testing.T) {
	backend, cpu := newTestBackend(t)

	// Entry i of A is i*I, so output entry i must be i*B[i].
	const batch, n = 16, 3
	aVals := make([]float64, batch*n*n)
	bVals := make([]float64, batch*n*n)
	for i := 0; i < batch; i++ {
		for r := 0; r < n; r++ {
			aVals[i*n*n+r*n+r] = float64(i)
		}
		for j := 0; j < n*n; j++ {
			bVals[i*n*n+j] = float64(j + 1)
		}
	}
	a, err := tensor.FromValues(aVals, tensor.Shape{batch, n, n}, tensor.Float64, cpu)
	require.NoError(t, err)
	b, err := tensor.FromValues(bVals, tensor.Shape{batch, n, n}, tensor.Float64, cpu)
	require.NoError(t, err)

	out, err := backend.BatchedGEMM(cpu, 1, a, b, 0, nil)
	require.NoError(t, err)
	got := out.Values()
	for i := 0; i < batch; i++ {
		for j := 0; j < n*n; j++ {
			assert.Equal(t, float64(i*(j+1)), got[i*n*n+j], "batch %d element %d", i, j)
		}
	}
}

func TestCPUBackend_BatchedGEMM_Sequential(t *testing.T) {
	_, cpu := newTestBackend(t)
	seq := New(parallel.Config{Enabled: false})
	par := New(parallel.Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1})
	rng := rand.New(rand.NewSource(11))

	a := randomTensor(t, rng, tensor.Shape{5, 8, 8}, tensor.Float32, cpu)
	b := randomTensor(t, rng, tensor.Shape{5, 8, 8}, tensor.Float32, cpu)

	x, err := seq.BatchedGEMM(cpu, 1, a, b, 0, nil)
	require.NoError(t, err)
	y, err := par.BatchedGEMM(cpu, 1, a, b, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, x.Values(), y.Values())
}

func TestCPUBackend_Affine(t *testing.T) {
	backend, cpu := newTestBackend(t)

	w, err := tensor.FromHost([]float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2}, cpu)
	require.NoError(t, err)
	bias, err := tensor.FromHost([]float32{10, 20, 30}, tensor.Shape{3}, cpu)
	require.NoError(t, err)

	t.Run("Vector", func(t *testing.T) {
		x, err := tensor.FromHost([]float32{2, 5}, tensor.Shape{2}, cpu)
		require.NoError(t, err)
		y, err := backend.Affine(cpu, w, x, bias)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{3}, y.Shape())
		assert.Equal(t, []float64{12, 25, 37}, y.Values())
	})

	t.Run("Batch", func(t *testing.T) {
		x, err := tensor.FromHost([]float32{2, 5, 1, 1}, tensor.Shape{2, 2}, cpu)
		require.NoError(t, err)
		y, err := backend.Affine(cpu, w, x, bias)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
		assert.Equal(t, []float64{12, 25, 37, 11, 21, 32}, y.Values())
	})

	// Inputs are untouched.
	assert.Equal(t, []float64{10, 20, 30}, bias.Values())
}

func TestCPUBackend_Affine_MatchesReference(t *testing.T) {
	backend, cpu := newTestBackend(t)
	ref := tensor.NewMockBackend("reference")
	rng := rand.New(rand.NewSource(5))

	for _, dtype := range dtypes {
		t.Run(dtype.String(), func(t *testing.T) {
			w := randomTensor(t, rng, tensor.Shape{7, 11}, dtype, cpu)
			bias := randomTensor(t, rng, tensor.Shape{7}, dtype, cpu)
			x := randomTensor(t, rng, tensor.Shape{4, 11}, dtype, cpu)

			got, err := backend.Affine(cpu, w, x, bias)
			require.NoError(t, err)
			want, err := ref.Affine(cpu, w, x, bias)
			require.NoError(t, err)
			assert.LessOrEqual(t, relErr(got.Values(), want.Values()), tolerance(dtype))
		})
	}
	assert.Equal(t, int64(len(dtypes)), ref.Calls(ops.Affine))
}

func TestCPUBackend_UnregisteredDestination(t *testing.T) {
	backend := New(parallel.DefaultConfig())
	reg := device.NewRegistry(device.WithoutGPU())
	cpu := reg.CPU()

	a, err := tensor.FromHost([]float32{1}, tensor.Shape{1, 1}, cpu)
	require.NoError(t, err)
	reg.Close()

	_, err = backend.GEMM(cpu, 1, a, a, 0, nil)
	assert.Error(t, err)
}
