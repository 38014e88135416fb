package suite

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/dispatch"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/nn"
	"github.com/born-ml/accel/internal/tensor"
	"github.com/pkg/errors"
)

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// describe summarizes where a dispatch result ran.
func describe(res *dispatch.Result) string {
	if res.FellBack {
		return fmt.Sprintf("ran on %s after %s failed (%v)", res.Backend, res.Requested, res.Cause)
	}
	return fmt.Sprintf("ran on %s", res.Backend)
}

func positive(op string, dims ...int) error {
	for _, d := range dims {
		if d <= 0 {
			return errs.Shape(op, "sizes must be positive, got %v", dims)
		}
	}
	return nil
}

// CheckAvailability lists the registered devices and the GPU probe outcome.
func (s *Suite) CheckAvailability() Result {
	r := newResult("check_availability")
	reg := s.e.Registry()

	gpus := reg.GPUs()
	r.Values["devices"] = float64(len(reg.Devices()))
	r.Values["gpus"] = float64(len(gpus))
	for _, h := range reg.Devices() {
		r.check(h.ID(), h.Registered(), "%s", h.Capability())
	}

	if len(gpus) > 0 {
		r.Message = fmt.Sprintf("GPU available: %s", gpus[0].Capability())
	} else {
		r.Message = fmt.Sprintf("GPU not available, using CPU (%v)", reg.ProbeErr())
	}
	return *r
}

// BenchmarkMatMul times a size x size GEMM on every device.
func (s *Suite) BenchmarkMatMul(size, iterations int) Result {
	r := newResult("benchmark_matmul")
	if err := positive("benchmark_matmul", size); err != nil {
		return r.fail(err)
	}

	rng := s.rng()
	host := s.e.Registry().CPU()
	a, _, err := randomMatrix(rng, tensor.Shape{size, size}, host)
	if err != nil {
		return r.fail(err)
	}
	b, _, err := randomMatrix(rng, tensor.Shape{size, size}, host)
	if err != nil {
		return r.fail(err)
	}

	report, err := s.e.Runner().Run(dispatch.GEMMRequest(1, a, b, 0, nil), s.e.Registry().Devices(), iterations)
	if err != nil {
		return r.fail(err)
	}
	r.Report = report
	flops := 2 * float64(size) * float64(size) * float64(size)
	for _, st := range report.Stats {
		r.Values[st.Device.ID()+".mean_ms"] = ms(st.Mean)
		r.Values[st.Device.ID()+".warmup_ms"] = ms(st.Warmup)
		if st.Mean > 0 {
			r.Values[st.Device.ID()+".gflops"] = flops / st.Mean.Seconds() / 1e9
		}
	}
	if report.HasSpeedup {
		r.Values["speedup"] = report.Speedup
	}
	if report.Empty() {
		r.Message = fmt.Sprintf("%dx%d GEMM: no iterations requested", size, size)
	} else {
		r.Message = fmt.Sprintf("%dx%d GEMM on %d device(s), %d iterations", size, size, len(report.Stats), iterations)
	}
	return *r
}

// RunGEMM computes one A[m,k] @ B[k,n] and checks it against the reference.
func (s *Suite) RunGEMM(m, k, n int) Result {
	r := newResult("gemm")
	if err := positive("gemm", m, k, n); err != nil {
		return r.fail(err)
	}

	rng := s.rng()
	host := s.e.Registry().CPU()
	a, aData, err := randomMatrix(rng, tensor.Shape{m, k}, host)
	if err != nil {
		return r.fail(err)
	}
	b, bData, err := randomMatrix(rng, tensor.Shape{k, n}, host)
	if err != nil {
		return r.fail(err)
	}

	req := dispatch.GEMMRequest(1, a, b, 0, nil)
	req.ToHost = true
	res, err := s.e.Dispatcher().Execute(req)
	if err != nil {
		return r.fail(err)
	}
	got, err := hostValues(res.Output)
	if err != nil {
		return r.fail(err)
	}

	relErr := relativeError(got, referenceGEMM(1, aData, bData, 0, nil, 1, m, k, n))
	r.Values["rel_error"] = float64(relErr)
	r.Values["duration_ms"] = ms(res.Duration)
	r.Values["fell_back"] = boolValue(res.FellBack)
	r.check("matches reference", float64(relErr) < s.e.Config().Tolerance, "relative error %.3g", relErr)
	r.Message = fmt.Sprintf("[%d,%d] @ [%d,%d] %s", m, k, k, n, describe(res))
	return *r
}

// RunGEMV computes one A[m,n] @ x[n] and checks it against the reference.
func (s *Suite) RunGEMV(m, n int) Result {
	r := newResult("gemv")
	if err := positive("gemv", m, n); err != nil {
		return r.fail(err)
	}

	rng := s.rng()
	host := s.e.Registry().CPU()
	a, aData, err := randomMatrix(rng, tensor.Shape{m, n}, host)
	if err != nil {
		return r.fail(err)
	}
	x, xData, err := randomMatrix(rng, tensor.Shape{n}, host)
	if err != nil {
		return r.fail(err)
	}

	req := dispatch.GEMVRequest(1, a, x, 0, nil)
	req.ToHost = true
	res, err := s.e.Dispatcher().Execute(req)
	if err != nil {
		return r.fail(err)
	}
	got, err := hostValues(res.Output)
	if err != nil {
		return r.fail(err)
	}

	relErr := relativeError(got, referenceGEMM(1, aData, xData, 0, nil, 1, m, n, 1))
	r.Values["rel_error"] = float64(relErr)
	r.Values["duration_ms"] = ms(res.Duration)
	r.Values["fell_back"] = boolValue(res.FellBack)
	r.check("matches reference", float64(relErr) < s.e.Config().Tolerance, "relative error %.3g", relErr)
	r.Message = fmt.Sprintf("[%d,%d] @ [%d] %s", m, n, n, describe(res))
	return *r
}

// LinalgSuite runs every operation, with and without accumulation, on
// size-based shapes and checks each against the reference.
func (s *Suite) LinalgSuite(size int) Result {
	r := newResult("linalg_suite")
	if err := positive("linalg_suite", size); err != nil {
		return r.fail(err)
	}

	rng := s.rng()
	host := s.e.Registry().CPU()
	m, k, n, batch := size, size/2+1, size+1, 3
	tol := s.e.Config().Tolerance

	type operand struct {
		t    *tensor.Tensor
		data []float32
	}
	mk := func(shape ...int) operand {
		t, data, err := randomMatrix(rng, shape, host)
		if err != nil {
			panic(err) // shapes above are always valid
		}
		return operand{t, data}
	}
	a, b, c := mk(m, k), mk(k, n), mk(m, n)
	x, y := mk(k), mk(m)
	ba, bb, bc := mk(batch, m, k), mk(batch, k, n), mk(batch, m, n)
	w, bias, xs := mk(n, k), mk(n), mk(batch, k)

	cases := []struct {
		name string
		req  dispatch.Request
		want []float32
	}{
		{"gemm", dispatch.GEMMRequest(1, a.t, b.t, 0, nil),
			referenceGEMM(1, a.data, b.data, 0, nil, 1, m, k, n)},
		{"gemm_alpha_beta", dispatch.GEMMRequest(0.5, a.t, b.t, -2, c.t),
			referenceGEMM(0.5, a.data, b.data, -2, c.data, 1, m, k, n)},
		{"gemv", dispatch.GEMVRequest(1, a.t, x.t, 0, nil),
			referenceGEMM(1, a.data, x.data, 0, nil, 1, m, k, 1)},
		{"gemv_alpha_beta", dispatch.GEMVRequest(2, a.t, x.t, 1, y.t),
			referenceGEMM(2, a.data, x.data, 1, y.data, 1, m, k, 1)},
		{"batched_gemm", dispatch.BatchedGEMMRequest(1, ba.t, bb.t, 0.25, bc.t),
			referenceGEMM(1, ba.data, bb.data, 0.25, bc.data, batch, m, k, n)},
		{"affine_vector", dispatch.AffineRequest(w.t, x.t, bias.t),
			referenceAffine(w.data, x.data, bias.data, 1, n, k)},
		{"affine_batch", dispatch.AffineRequest(w.t, xs.t, bias.t),
			referenceAffine(w.data, xs.data, bias.data, batch, n, k)},
	}

	var worst float32
	for _, tc := range cases {
		tc.req.ToHost = true
		res, err := s.e.Dispatcher().Execute(tc.req)
		if err != nil {
			r.check(tc.name, false, "%v", err)
			continue
		}
		got, err := hostValues(res.Output)
		if err != nil {
			r.check(tc.name, false, "%v", err)
			continue
		}
		relErr := relativeError(got, tc.want)
		worst = max(worst, relErr)
		r.Values[tc.name+".rel_error"] = float64(relErr)
		r.check(tc.name, float64(relErr) < tol, "relative error %.3g, %s", relErr, describe(res))
	}

	// Invalid shapes must be rejected before any backend runs.
	before := s.e.Dispatcher().Stats()
	_, err := s.e.Dispatcher().GEMM(1, b.t, b.t, 0, nil)
	after := s.e.Dispatcher().Stats()
	rejected := errs.IsShape(err) && after.Kernels == before.Kernels && after.Transfers == before.Transfers
	r.check("shape_mismatch_rejected", rejected, "[%d,%d] @ [%d,%d]: %v", k, n, k, n, err)

	r.Values["max_rel_error"] = float64(worst)
	passed := 0
	for _, c := range r.Checks {
		if c.OK {
			passed++
		}
	}
	r.Message = fmt.Sprintf("%d/%d checks passed (tolerance %g)", passed, len(r.Checks), tol)
	return *r
}

// CompareBackends checks that the CPU and the GPU agree on a size x size
// GEMM and benchmarks both.
func (s *Suite) CompareBackends(size, iterations int) Result {
	r := newResult("compare_backends")
	if err := positive("compare_backends", size); err != nil {
		return r.fail(err)
	}
	reg := s.e.Registry()
	gpus := reg.GPUs()
	if len(gpus) == 0 {
		r.check("gpu", true, "skipped: %v", reg.ProbeErr())
		r.Message = "GPU not available, nothing to compare"
		return *r
	}
	cpu, gpu := reg.CPU(), gpus[0]

	rng := s.rng()
	a, _, err := randomMatrix(rng, tensor.Shape{size, size}, cpu)
	if err != nil {
		return r.fail(err)
	}
	b, _, err := randomMatrix(rng, tensor.Shape{size, size}, cpu)
	if err != nil {
		return r.fail(err)
	}
	req := dispatch.GEMMRequest(1, a, b, 0, nil)
	req.ToHost = true

	outputs := make(map[device.Kind][]float32, 2)
	for _, h := range []*device.Handle{cpu, gpu} {
		res, err := s.e.Dispatcher().ExecuteOn(h, req)
		if err != nil {
			return r.fail(errors.WithMessagef(err, "comparing on %s", h))
		}
		if outputs[h.Kind()], err = hostValues(res.Output); err != nil {
			return r.fail(err)
		}
	}
	relErr := relativeError(outputs[device.GPU], outputs[device.CPU])
	r.Values["rel_error"] = float64(relErr)
	r.check("cpu_gpu_agree", float64(relErr) < s.e.Config().Tolerance, "relative error %.3g", relErr)

	report, err := s.e.Runner().Run(req, []*device.Handle{cpu, gpu}, iterations)
	if err != nil {
		return r.fail(err)
	}
	r.Report = report
	if report.HasSpeedup {
		r.Values["speedup"] = report.Speedup
		r.Message = fmt.Sprintf("%dx%d GEMM: GPU is %.2fx the CPU speed", size, size, report.Speedup)
	} else {
		r.Message = fmt.Sprintf("%dx%d GEMM: results agree, no timing samples", size, size)
	}
	return *r
}

// BatchOperations runs a batched GEMM with distinct per-entry inputs and
// checks that output entry i is the product of input entry i.
func (s *Suite) BatchOperations(batch, size int) Result {
	r := newResult("batch_operations")
	if err := positive("batch_operations", batch, size); err != nil {
		return r.fail(err)
	}

	rng := s.rng()
	host := s.e.Registry().CPU()
	a, aData, err := randomMatrix(rng, tensor.Shape{batch, size, size}, host)
	if err != nil {
		return r.fail(err)
	}
	// Scale entry i by i+1 so that a reordering could not go unnoticed.
	for i := 0; i < batch; i++ {
		entry := aData[i*size*size : (i+1)*size*size]
		for j := range entry {
			entry[j] *= float32(i + 1)
		}
	}
	if a, err = tensor.FromHost(aData, a.Shape(), host); err != nil {
		return r.fail(err)
	}
	b, bData, err := randomMatrix(rng, tensor.Shape{batch, size, size}, host)
	if err != nil {
		return r.fail(err)
	}

	req := dispatch.BatchedGEMMRequest(1, a, b, 0, nil)
	req.ToHost = true
	res, err := s.e.Dispatcher().Execute(req)
	if err != nil {
		return r.fail(err)
	}
	got, err := hostValues(res.Output)
	if err != nil {
		return r.fail(err)
	}

	want := referenceGEMM(1, aData, bData, 0, nil, batch, size, size, size)
	stride := size * size
	inOrder := true
	for i := 0; i < batch; i++ {
		relErr := relativeError(got[i*stride:(i+1)*stride], want[i*stride:(i+1)*stride])
		if float64(relErr) >= s.e.Config().Tolerance {
			inOrder = false
			r.check(fmt.Sprintf("entry_%d", i), false, "relative error %.3g", relErr)
		}
	}
	r.check("order_preserved", inOrder, "%d entries of [%d,%d]", batch, size, size)
	r.Values["batch"] = float64(batch)
	r.Values["duration_ms"] = ms(res.Duration)
	r.Message = fmt.Sprintf("%d x [%d,%d] @ [%d,%d] %s", batch, size, size, size, size, describe(res))
	return *r
}

// NeuralNetworkDemo runs the forward pass of a freshly initialized
// in -> hidden -> out MLP on a random batch.
func (s *Suite) NeuralNetworkDemo(batch, in, hidden, out int) Result {
	r := newResult("neural_network_demo")
	if err := positive("neural_network_demo", batch, in, hidden, out); err != nil {
		return r.fail(err)
	}

	rng := s.rng()
	model, err := nn.NewMLP(s.e.Dispatcher(), rng, in, hidden, out)
	if err != nil {
		return r.fail(err)
	}
	x, err := nn.Uniform(rng, -1, 1, tensor.Shape{batch, in}, s.e.Registry().CPU())
	if err != nil {
		return r.fail(err)
	}

	start := time.Now()
	probs, err := model.Forward(x)
	if err != nil {
		return r.fail(err)
	}
	elapsed := time.Since(start)

	data, err := hostValues(probs)
	if err != nil {
		return r.fail(err)
	}
	normalized := true
	for row := 0; row < batch; row++ {
		var sum float32
		for _, p := range data[row*out : (row+1)*out] {
			sum += p
		}
		if diff := sum - 1; diff > 1e-4 || diff < -1e-4 {
			normalized = false
		}
	}
	r.check("softmax_rows_sum_to_one", normalized, "output %v", probs.Shape())

	var where []string
	for i, l := range nn.Linears(model) {
		if res := l.LastResult(); res != nil {
			where = append(where, fmt.Sprintf("layer %d %s", i+1, describe(res)))
			r.Values[fmt.Sprintf("layer%d.fell_back", i+1)] = boolValue(res.FellBack)
		}
	}
	r.Values["parameters"] = float64(nn.CountParameters(model))
	r.Values["duration_ms"] = ms(elapsed)
	r.Message = fmt.Sprintf("MLP %d-%d-%d on batch %d: %s", in, hidden, out, batch, strings.Join(where, "; "))
	return *r
}

// modules are the dependencies whose presence ModuleCheck reports.
var modules = []string{
	"gonum.org/v1/gonum",
	"github.com/go-webgpu/webgpu",
	"github.com/x448/float16",
	"github.com/chewxy/math32",
	"golang.org/x/sync",
	"golang.org/x/sys",
	"github.com/pbnjay/memory",
	"k8s.io/klog/v2",
	"github.com/pkg/errors",
}

// ModuleCheck reports build information, linked dependency versions and a
// one-shot sanity GEMM through the dispatcher.
func (s *Suite) ModuleCheck() Result {
	r := newResult("module_check")
	r.Values["num_cpu"] = float64(runtime.NumCPU())

	info, ok := debug.ReadBuildInfo()
	versions := make(map[string]string)
	if ok {
		for _, dep := range info.Deps {
			versions[dep.Path] = dep.Version
		}
		r.check("build_info", true, "%s built with %s", info.Main.Path, info.GoVersion)
	} else {
		r.check("build_info", true, "not available, %s", runtime.Version())
	}
	linked := 0
	for _, m := range modules {
		if v, found := versions[m]; found {
			linked++
			r.check(m, true, "%s", v)
		}
	}
	r.Values["linked_modules"] = float64(linked)

	host := s.e.Registry().CPU()
	a, err := tensor.FromHost([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, host)
	if err != nil {
		return r.fail(err)
	}
	req := dispatch.GEMMRequest(1, a, a, 0, nil)
	req.ToHost = true
	res, err := s.e.Dispatcher().Execute(req)
	if err != nil {
		return r.fail(err)
	}
	got, err := hostValues(res.Output)
	if err != nil {
		return r.fail(err)
	}
	want := []float32{7, 10, 15, 22}
	r.check("sanity_gemm", relativeError(got, want) < 1e-6, "%v, %s", got, describe(res))

	r.Message = fmt.Sprintf("%s/%s, %d device(s), dispatcher %s",
		runtime.GOOS, runtime.GOARCH, len(s.e.Registry().Devices()), s.e.Dispatcher().Stats())
	return *r
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
