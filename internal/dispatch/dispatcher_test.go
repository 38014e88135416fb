package dispatch

import (
	"errors"
	"sync"
	"testing"

	"github.com/born-ml/accel/internal/backend/cpu"
	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/internal/parallel"
	"github.com/born-ml/accel/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg *device.Registry
	gpu *tensor.MockBackend // nil without GPU
	cpu *tensor.MockBackend
	d   *Dispatcher
}

// withGPU builds a dispatcher whose GPU is a mock and whose CPU is a
// second mock, so kernel calls can be counted on both sides.
func withGPU(t *testing.T) *fixture {
	t.Helper()
	gpu := tensor.NewMockBackend("mock-gpu")
	reg := device.NewRegistry(device.WithProbe(func() ([]device.Discovered, error) {
		return []device.Discovered{{Capability: device.Capability{Backend: "mock"}, Context: gpu}}, nil
	}))
	require.True(t, reg.Probe())
	host := tensor.NewMockBackend("mock-cpu")
	return &fixture{reg: reg, gpu: gpu, cpu: host, d: New(reg, host)}
}

func withoutGPU(t *testing.T, probeErr error) *fixture {
	t.Helper()
	reg := device.NewRegistry(device.WithProbe(func() ([]device.Discovered, error) {
		return nil, probeErr
	}))
	require.False(t, reg.Probe())
	host := tensor.NewMockBackend("mock-cpu")
	return &fixture{reg: reg, cpu: host, d: New(reg, host)}
}

func hostTensor(t *testing.T, reg *device.Registry, shape tensor.Shape, values ...float64) *tensor.Tensor {
	t.Helper()
	if len(values) == 0 {
		values = make([]float64, shape.NumElements())
		for i := range values {
			values[i] = float64(i%5) - 1.5
		}
	}
	return must.M1(tensor.FromValues(values, shape, tensor.Float32, reg.CPU()))
}

func TestExecute_GEMMMatchesAcrossBackends(t *testing.T) {
	f := withGPU(t)
	a := hostTensor(t, f.reg, tensor.Shape{8, 5})
	b := hostTensor(t, f.reg, tensor.Shape{5, 6})

	onGPU, err := f.d.GEMM(1, a, b, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, device.GPU, onGPU.Backend.Kind())
	assert.False(t, onGPU.FellBack)

	gonum := New(f.reg, cpu.New(parallel.DefaultConfig()))
	onCPU, err := gonum.ExecuteOn(f.reg.CPU(), GEMMRequest(1, a, b, 0, nil))
	require.NoError(t, err)

	assert.InDeltaSlice(t, onCPU.Output.Values(), onGPU.Output.Values(), 1e-5)
}

func TestExecute_ShapeMismatchTouchesNoBackend(t *testing.T) {
	f := withGPU(t)
	a := hostTensor(t, f.reg, tensor.Shape{2, 3})
	b := hostTensor(t, f.reg, tensor.Shape{4, 2})

	_, err := f.d.GEMM(1, a, b, 0, nil)
	require.Error(t, err)
	assert.True(t, errs.IsShape(err))

	stats := f.d.Stats()
	assert.Zero(t, stats.Transfers, "no device transfer may happen before validation")
	assert.Zero(t, stats.Kernels)
	assert.Zero(t, f.gpu.TotalCalls())
	assert.Zero(t, f.cpu.TotalCalls())
	assert.Equal(t, uint64(1), stats.Failures)
}

func TestExecute_NoGPUNeverFallsBack(t *testing.T) {
	for name, probeErr := range map[string]error{
		"ProbeError": errors.New("no adapter"),
		"NoDevices":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			f := withoutGPU(t, probeErr)
			a := hostTensor(t, f.reg, tensor.Shape{3, 3})
			a3 := hostTensor(t, f.reg, tensor.Shape{2, 3, 3})
			x := hostTensor(t, f.reg, tensor.Shape{3})

			for _, r := range []Request{
				GEMMRequest(1, a, a, 0, nil),
				GEMVRequest(1, a, x, 0, nil),
				BatchedGEMMRequest(1, a3, a3, 0, nil),
				AffineRequest(a, x, x),
			} {
				res, err := f.d.Execute(r)
				require.NoError(t, err, r.Op)
				assert.Equal(t, device.CPU, res.Backend.Kind(), r.Op)
				assert.Same(t, res.Backend, res.Requested)
				assert.False(t, res.FellBack, r.Op)
				assert.NoError(t, res.Cause)
			}
			assert.Zero(t, f.d.Stats().Fallbacks)
			assert.Zero(t, f.d.Stats().Transfers)
		})
	}
}

func TestExecute_ProbePanicMeansCPU(t *testing.T) {
	reg := device.NewRegistry(device.WithProbe(func() ([]device.Discovered, error) {
		panic("wgpu_native.dll not found")
	}))
	d := New(reg, tensor.NewMockBackend("mock-cpu"))
	a := hostTensor(t, reg, tensor.Shape{2, 2})

	res, err := d.GEMM(1, a, a, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, device.CPU, res.Backend.Kind())
	assert.False(t, res.FellBack)
	assert.True(t, errs.IsDevice(reg.ProbeErr()))
}

func TestExecute_FallbackOnGPUFailure(t *testing.T) {
	f := withGPU(t)
	a := hostTensor(t, f.reg, tensor.Shape{4, 3})
	b := hostTensor(t, f.reg, tensor.Shape{3, 2})

	cpuOnly, err := f.d.ExecuteOn(f.reg.CPU(), GEMMRequest(2, a, b, 0, nil))
	require.NoError(t, err)

	lost := errors.New("device lost")
	f.gpu.FailWith(lost)
	res, err := f.d.GEMM(2, a, b, 0, nil)
	require.NoError(t, err)

	assert.True(t, res.FellBack)
	assert.Equal(t, device.CPU, res.Backend.Kind())
	assert.Equal(t, device.GPU, res.Requested.Kind())
	assert.ErrorIs(t, res.Cause, lost)
	assert.Equal(t, cpuOnly.Output.Values(), res.Output.Values())
	assert.Same(t, f.reg.CPU(), res.Output.Device())

	assert.Equal(t, int64(1), f.gpu.Calls(ops.GEMM))
	assert.Equal(t, int64(2), f.cpu.Calls(ops.GEMM))
	assert.Equal(t, uint64(1), f.d.Stats().Fallbacks)
}

func TestExecute_FallbackOnGPUPanic(t *testing.T) {
	f := withGPU(t)
	a := hostTensor(t, f.reg, tensor.Shape{3, 3})
	x := hostTensor(t, f.reg, tensor.Shape{3})

	f.gpu.PanicWith("out of memory")
	res, err := f.d.GEMV(1, a, x, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.True(t, errs.IsDevice(res.Cause))
	assert.Contains(t, res.Cause.Error(), "out of memory")
}

func TestExecute_FallbackUsesOriginalInputs(t *testing.T) {
	f := withGPU(t)
	gpu := f.reg.GPUs()[0]

	// Inputs already resident on the GPU are copied to the CPU for the
	// retry; the GPU copies stay untouched.
	a := must.M1(hostTensor(t, f.reg, tensor.Shape{2, 2}, 1, 2, 3, 4).To(gpu))
	b := must.M1(hostTensor(t, f.reg, tensor.Shape{2, 2}, 1, 0, 0, 1).To(gpu))

	f.gpu.FailWith(errors.New("context lost"))
	res, err := f.d.GEMM(1, a, b, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.Equal(t, []float64{1, 2, 3, 4}, res.Output.Values())
	assert.Same(t, gpu, a.Device())
	assert.Equal(t, uint64(2), f.d.Stats().Transfers)
}

func TestExecute_DoubleFailureIsComputeError(t *testing.T) {
	f := withGPU(t)
	a := hostTensor(t, f.reg, tensor.Shape{5, 4})
	b := hostTensor(t, f.reg, tensor.Shape{4, 3})

	f.gpu.FailWith(errors.New("gpu oom"))
	f.cpu.FailWith(errors.New("cpu oom"))
	res, err := f.d.GEMM(1, a, b, 0, nil)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errs.IsCompute(err))
	assert.Contains(t, err.Error(), "gemm")
	assert.Contains(t, err.Error(), "[5,4] x [4,3]")
	assert.Contains(t, err.Error(), "gpu oom")
	assert.Contains(t, err.Error(), "cpu oom")

	// Exactly one fallback: each side ran once.
	assert.Equal(t, int64(1), f.gpu.TotalCalls())
	assert.Equal(t, int64(1), f.cpu.TotalCalls())
	assert.Equal(t, uint64(1), f.d.Stats().Failures)
}

func TestExecute_CPUFailureWithoutGPU(t *testing.T) {
	f := withoutGPU(t, nil)
	a := hostTensor(t, f.reg, tensor.Shape{2, 2})

	f.cpu.FailWith(errors.New("boom"))
	_, err := f.d.GEMM(1, a, a, 0, nil)
	assert.True(t, errs.IsCompute(err))
	assert.Zero(t, f.d.Stats().Fallbacks)
}

func TestExecute_GPUWithoutKernelsFallsBack(t *testing.T) {
	reg := device.NewRegistry(device.WithProbe(func() ([]device.Discovered, error) {
		return []device.Discovered{{Context: bareContext{}}}, nil
	}))
	d := New(reg, tensor.NewMockBackend("mock-cpu"))
	a := hostTensor(t, reg, tensor.Shape{2, 2})

	res, err := d.GEMM(1, a, a, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.True(t, errs.IsDevice(res.Cause))
}

type bareContext struct{}

func (bareContext) Name() string { return "bare" }
func (bareContext) Release()     {}

func TestExecuteOn_NoFallback(t *testing.T) {
	f := withGPU(t)
	gpu := f.reg.GPUs()[0]
	a := hostTensor(t, f.reg, tensor.Shape{2, 2})

	f.gpu.FailWith(errors.New("lost"))
	_, err := f.d.ExecuteOn(gpu, GEMMRequest(1, a, a, 0, nil))
	require.Error(t, err)
	assert.True(t, errs.IsDevice(err))
	assert.Zero(t, f.cpu.TotalCalls())
	assert.Zero(t, f.d.Stats().Fallbacks)

	f.gpu.FailWith(nil)
	res, err := f.d.ExecuteOn(gpu, GEMMRequest(1, a, a, 0, nil))
	require.NoError(t, err)
	assert.Same(t, gpu, res.Backend)
	assert.False(t, res.FellBack)
}

func TestExecuteOn_UnregisteredDevice(t *testing.T) {
	f := withGPU(t)
	gpu := f.reg.GPUs()[0]
	a := hostTensor(t, f.reg, tensor.Shape{2, 2})
	b := must.M1(a.To(gpu))

	f.reg.Close()
	_, err := f.d.ExecuteOn(gpu, GEMMRequest(1, a, b, 0, nil))
	assert.True(t, errs.IsDevice(err))
}

func TestExecute_BatchedGEMMPreservesOrder(t *testing.T) {
	reg := device.NewRegistry(device.WithoutGPU())
	d := New(reg, cpu.New(parallel.Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}))

	// A[i] = (i+1)*I, B[i] = all ones, so C[i] is filled with i+1.
	aVals := []float64{
		1, 0, 0, 1,
		2, 0, 0, 2,
		3, 0, 0, 3,
	}
	a := hostTensor(t, reg, tensor.Shape{3, 2, 2}, aVals...)
	b := hostTensor(t, reg, tensor.Shape{3, 2, 2}, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	res, err := d.BatchedGEMM(1, a, b, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2, 2}, res.Output.Shape())
	assert.Equal(t, []float64{
		1, 1, 1, 1,
		2, 2, 2, 2,
		3, 3, 3, 3,
	}, res.Output.Values())
}

func TestExecute_ToHost(t *testing.T) {
	f := withGPU(t)
	a := hostTensor(t, f.reg, tensor.Shape{2, 2})

	res, err := f.d.Execute(Request{Op: ops.GEMM, Alpha: 1, Inputs: [3]*tensor.Tensor{a, a}, ToHost: true})
	require.NoError(t, err)
	assert.Equal(t, device.GPU, res.Backend.Kind())
	assert.Same(t, f.reg.CPU(), res.Output.Device())
	// Two operands staged (A twice) plus the output moved back.
	assert.Equal(t, uint64(3), f.d.Stats().Transfers)

	res, err = f.d.GEMM(1, a, a, 0, nil)
	require.NoError(t, err)
	assert.Same(t, f.reg.GPUs()[0], res.Output.Device())
}

func TestExecute_BetaUsesAccumulator(t *testing.T) {
	f := withoutGPU(t, nil)
	a := hostTensor(t, f.reg, tensor.Shape{2, 2}, 1, 0, 0, 1)
	c := hostTensor(t, f.reg, tensor.Shape{2, 2}, 1, 1, 1, 1)

	res, err := f.d.GEMM(1, a, a, 2, c)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2, 2, 3}, res.Output.Values())

	// With beta == 0 a garbage C is ignored, shape included.
	junk := hostTensor(t, f.reg, tensor.Shape{7})
	res, err = f.d.GEMM(1, a, a, 0, junk)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 1}, res.Output.Values())
}

func TestExecute_ConcurrentCalls(t *testing.T) {
	reg := device.NewRegistry(device.WithoutGPU())
	d := New(reg, cpu.New(parallel.DefaultConfig()))

	var wg sync.WaitGroup
	results := make([][]float64, 16)
	failures := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := must.M1(tensor.FromValues([]float64{float64(i), 0, 0, float64(i)}, tensor.Shape{2, 2}, tensor.Float64, reg.CPU()))
			res, err := d.GEMM(1, a, a, 0, nil)
			if err != nil {
				failures[i] = err
				return
			}
			results[i] = res.Output.Values()
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, failures[i])
		sq := float64(i * i)
		assert.Equal(t, []float64{sq, 0, 0, sq}, results[i])
	}
	assert.Equal(t, uint64(16), d.Stats().Calls)
}

func TestDeclinesDType(t *testing.T) {
	reg := device.NewRegistry(device.WithProbe(func() ([]device.Discovered, error) {
		return []device.Discovered{
			{Capability: device.Capability{Backend: "f32-only", Features: []string{"f32", "compute"}}, Context: tensor.NewMockBackend("a")},
			{Capability: device.Capability{Backend: "untyped"}, Context: tensor.NewMockBackend("b")},
		}, nil
	}))
	require.True(t, reg.Probe())
	typed, untyped := reg.GPUs()[0], reg.GPUs()[1]

	assert.False(t, declinesDType(typed, tensor.Float32))
	assert.True(t, declinesDType(typed, tensor.Float64))
	assert.True(t, declinesDType(typed, tensor.Float16))
	for _, dt := range []tensor.DataType{tensor.Float16, tensor.Float32, tensor.Float64} {
		assert.False(t, declinesDType(untyped, dt))
	}
}

func TestExecute_UnsupportedDTypeStillFallsBack(t *testing.T) {
	gpu := tensor.NewMockBackend("f32-gpu")
	reg := device.NewRegistry(device.WithProbe(func() ([]device.Discovered, error) {
		return []device.Discovered{{Capability: device.Capability{Backend: "mock", Features: []string{"f32"}}, Context: gpu}}, nil
	}))
	require.True(t, reg.Probe())
	d := New(reg, cpu.New(parallel.DefaultConfig()))
	gpu.FailWith(errs.Device("gemm", nil, "float64 is not supported"))

	a := must.M1(tensor.FromValues([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.Float64, reg.CPU()))
	res, err := d.GEMM(1, a, a, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.Equal(t, device.CPU, res.Backend.Kind())
	assert.Equal(t, []float64{7, 10, 15, 22}, res.Output.Values())
	assert.Equal(t, uint64(1), d.Stats().Fallbacks)
}
