// Package bench times dispatcher operations on explicitly chosen devices.
package bench

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/dispatch"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/ops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Executor runs a request on a given device without fallback.
// *dispatch.Dispatcher implements it.
type Executor interface {
	ExecuteOn(h *device.Handle, r dispatch.Request) (*dispatch.Result, error)
}

// Runner benchmarks requests through an Executor.
type Runner struct {
	exec Executor
}

// NewRunner creates a runner.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Stats summarizes the timings of one device.
//
// The first iteration is a warm-up: its duration is kept in Warmup and is
// not part of Samples or of any aggregate, so one-time costs (shader
// compilation, pipeline creation, page faults) do not skew the numbers.
type Stats struct {
	Device  *device.Handle
	Warmup  time.Duration
	Samples []time.Duration

	Min, Max, Mean, Median, Total time.Duration
}

// Report is the result of one Run.
type Report struct {
	Op         ops.Kind
	Iterations int
	Stats      []Stats

	// Speedup is CPU mean / GPU mean; valid only when HasSpeedup.
	Speedup    float64
	HasSpeedup bool
}

// Empty reports whether nothing was measured.
func (r *Report) Empty() bool {
	return len(r.Stats) == 0
}

// For returns the stats of the first device of the given kind.
func (r *Report) For(kind device.Kind) (Stats, bool) {
	for _, s := range r.Stats {
		if s.Device.Kind() == kind {
			return s, true
		}
	}
	return Stats{}, false
}

// Run executes r iterations times on each device in order.
//
// iterations == 0 yields an empty report. Any dispatcher error aborts the
// whole run; no partial report is returned.
func (rn *Runner) Run(r dispatch.Request, devices []*device.Handle, iterations int) (*Report, error) {
	if iterations < 0 {
		return nil, errs.Shape("bench", "iterations must be >= 0, got %d", iterations)
	}
	report := &Report{Op: r.Op, Iterations: iterations}
	if iterations == 0 {
		return report, nil
	}

	for _, h := range devices {
		s := Stats{Device: h, Samples: make([]time.Duration, 0, iterations-1)}
		for i := 0; i < iterations; i++ {
			res, err := rn.exec.ExecuteOn(h, r)
			if err != nil {
				return nil, errors.Wrapf(err, "benchmark %s on %s, iteration %d", r.Op, h, i)
			}
			if i == 0 {
				s.Warmup = res.Duration
				continue
			}
			s.Samples = append(s.Samples, res.Duration)
		}
		s.aggregate()
		klog.V(1).Infof("bench: %s on %s: mean %v over %d samples (warm-up %v)", r.Op, h, s.Mean, len(s.Samples), s.Warmup)
		report.Stats = append(report.Stats, s)
	}

	cpu, okCPU := report.For(device.CPU)
	gpu, okGPU := report.For(device.GPU)
	if okCPU && okGPU && len(cpu.Samples) > 0 && gpu.Mean > 0 {
		report.Speedup = float64(cpu.Mean) / float64(gpu.Mean)
		report.HasSpeedup = true
	}
	return report, nil
}

func (s *Stats) aggregate() {
	if len(s.Samples) == 0 {
		return
	}
	sorted := slices.Clone(s.Samples)
	slices.Sort(sorted)
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	for _, d := range sorted {
		s.Total += d
	}
	s.Mean = s.Total / time.Duration(len(sorted))
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		s.Median = sorted[mid]
	} else {
		s.Median = (sorted[mid-1] + sorted[mid]) / 2
	}
}

func (s Stats) String() string {
	if len(s.Samples) == 0 {
		return fmt.Sprintf("%-8s warm-up %v, no samples", s.Device.ID(), s.Warmup)
	}
	return fmt.Sprintf("%-8s min %-12v max %-12v mean %-12v median %-12v (n=%d, warm-up %v)",
		s.Device.ID(), s.Min, s.Max, s.Mean, s.Median, len(s.Samples), s.Warmup)
}

func (r *Report) String() string {
	if r.Empty() {
		return fmt.Sprintf("%s: no iterations", r.Op)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %d iterations (first is warm-up):\n", r.Op, r.Iterations)
	for _, s := range r.Stats {
		fmt.Fprintf(&sb, "  %s\n", s)
	}
	if r.HasSpeedup {
		fmt.Fprintf(&sb, "  speedup (cpu/gpu): %.2fx\n", r.Speedup)
	}
	return sb.String()
}
