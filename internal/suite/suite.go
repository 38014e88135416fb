// Package suite implements the accel entry points: availability, single
// operations, numeric self-checks, benchmarks and the MLP demo. Each entry
// point takes sizes and returns a Result; none of them panics or returns a
// bare error.
package suite

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/born-ml/accel/internal/bench"
	"github.com/born-ml/accel/internal/engine"
)

// Check is one named assertion inside a Result.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Result is the outcome of an entry point.
type Result struct {
	Name    string
	OK      bool
	Message string

	// Values holds numeric outputs (durations in milliseconds, errors,
	// counts) keyed by name.
	Values map[string]float64

	// Report is set by the benchmarking entry points.
	Report *bench.Report

	Checks []Check

	// Err is the failure behind OK == false, if any.
	Err error
}

func newResult(name string) *Result {
	return &Result{Name: name, OK: true, Values: make(map[string]float64)}
}

// check records an assertion; a failing one fails the result.
func (r *Result) check(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
	if !ok {
		r.OK = false
	}
}

// fail marks the result failed because of err.
func (r *Result) fail(err error) Result {
	r.OK = false
	r.Err = err
	r.Message = err.Error()
	return *r
}

// String renders the result for terminal output.
func (r Result) String() string {
	var sb strings.Builder
	status := "OK"
	if !r.OK {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "[%s] %s: %s\n", status, r.Name, r.Message)
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "    %-28s %g\n", k, r.Values[k])
	}
	for _, c := range r.Checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(&sb, "    %-4s %s: %s\n", mark, c.Name, c.Detail)
	}
	if r.Report != nil && !r.Report.Empty() {
		sb.WriteString(indent(r.Report.String(), "    "))
	}
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "")
}

// Suite runs the entry points against one engine.
type Suite struct {
	e *engine.Engine
}

// New creates a suite on e.
func New(e *engine.Engine) *Suite {
	return &Suite{e: e}
}

func (s *Suite) rng() *rand.Rand {
	//nolint:gosec // Deterministic demo inputs.
	return rand.New(rand.NewSource(s.e.Config().Seed))
}

// onDefault runs f on a suite over the process-wide engine.
func onDefault(name string, f func(*Suite) Result) Result {
	e, err := engine.Default()
	if err != nil {
		return newResult(name).fail(err)
	}
	return f(New(e))
}

// CheckAvailability runs Suite.CheckAvailability on the default engine.
func CheckAvailability() Result {
	return onDefault("check_availability", (*Suite).CheckAvailability)
}

// BenchmarkMatMul runs Suite.BenchmarkMatMul on the default engine.
func BenchmarkMatMul(size, iterations int) Result {
	return onDefault("benchmark_matmul", func(s *Suite) Result { return s.BenchmarkMatMul(size, iterations) })
}

// RunGEMM runs Suite.RunGEMM on the default engine.
func RunGEMM(m, k, n int) Result {
	return onDefault("gemm", func(s *Suite) Result { return s.RunGEMM(m, k, n) })
}

// RunGEMV runs Suite.RunGEMV on the default engine.
func RunGEMV(m, n int) Result {
	return onDefault("gemv", func(s *Suite) Result { return s.RunGEMV(m, n) })
}

// LinalgSuite runs Suite.LinalgSuite on the default engine.
func LinalgSuite(size int) Result {
	return onDefault("linalg_suite", func(s *Suite) Result { return s.LinalgSuite(size) })
}

// CompareBackends runs Suite.CompareBackends on the default engine.
func CompareBackends(size, iterations int) Result {
	return onDefault("compare_backends", func(s *Suite) Result { return s.CompareBackends(size, iterations) })
}

// BatchOperations runs Suite.BatchOperations on the default engine.
func BatchOperations(batch, size int) Result {
	return onDefault("batch_operations", func(s *Suite) Result { return s.BatchOperations(batch, size) })
}

// NeuralNetworkDemo runs Suite.NeuralNetworkDemo on the default engine.
func NeuralNetworkDemo(batch, in, hidden, out int) Result {
	return onDefault("neural_network_demo", func(s *Suite) Result { return s.NeuralNetworkDemo(batch, in, hidden, out) })
}

// ModuleCheck runs Suite.ModuleCheck on the default engine.
func ModuleCheck() Result {
	return onDefault("module_check", (*Suite).ModuleCheck)
}
