// accel runs the linear-algebra entry points from the command line and
// prints their results.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/born-ml/accel"
	"github.com/born-ml/accel/backend/cpu"
	"github.com/born-ml/accel/suite"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

var (
	flagCPUOnly    = flag.Bool("cpu", false, "Skip GPU discovery and run everything on the CPU")
	flagWorkers    = flag.Int("workers", 0, "Goroutines used by batched CPU kernels; 0 means one per CPU")
	flagTolerance  = flag.Float64("tolerance", 1e-5, "Maximum relative error accepted by the numeric checks")
	flagSeed       = flag.Int64("seed", 42, "Seed of the random inputs and weights")
	flagSize       = flag.Int("size", 256, "Matrix size of bench, compare, linalg and batch")
	flagIterations = flag.Int("iterations", 10, "Benchmark iterations, the first one being a warm-up")
	flagBatch      = flag.Int("batch", 8, "Batch size of batch and mlp")
	flagM          = flag.Int("m", 128, "Rows of A for gemm and gemv")
	flagK          = flag.Int("k", 256, "Inner dimension for gemm")
	flagN          = flag.Int("n", 64, "Columns of B for gemm, length of x for gemv")
	flagIn         = flag.Int("in", 784, "MLP input features")
	flagHidden     = flag.Int("hidden", 128, "MLP hidden units")
	flagOut        = flag.Int("out", 10, "MLP classes")
)

var commands = []struct {
	name, help string
	run        func(s *suite.Suite) suite.Result
}{
	{"devices", "List devices and the GPU probe outcome", (*suite.Suite).CheckAvailability},
	{"gemm", "Multiply A[m,k] by B[k,n] and check the result", func(s *suite.Suite) suite.Result {
		return s.RunGEMM(*flagM, *flagK, *flagN)
	}},
	{"gemv", "Multiply A[m,n] by x[n] and check the result", func(s *suite.Suite) suite.Result {
		return s.RunGEMV(*flagM, *flagN)
	}},
	{"linalg", "Check every operation against a reference", func(s *suite.Suite) suite.Result {
		return s.LinalgSuite(*flagSize)
	}},
	{"batch", "Check that batched GEMM keeps batch order", func(s *suite.Suite) suite.Result {
		return s.BatchOperations(*flagBatch, *flagSize)
	}},
	{"bench", "Benchmark GEMM on every device", func(s *suite.Suite) suite.Result {
		return s.BenchmarkMatMul(*flagSize, *flagIterations)
	}},
	{"compare", "Compare CPU and GPU results and speed", func(s *suite.Suite) suite.Result {
		return s.CompareBackends(*flagSize, *flagIterations)
	}},
	{"mlp", "Run the forward pass of a random MLP", func(s *suite.Suite) suite.Result {
		return s.NeuralNetworkDemo(*flagBatch, *flagIn, *flagHidden, *flagOut)
	}},
	{"check", "Print build information and run a sanity GEMM", (*suite.Suite).ModuleCheck},
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `accel %s runs dense linear algebra on the GPU when one is available
and on the CPU otherwise.

$ accel [flags] <command>...

Commands:
`, version)
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.help)
		}
		fmt.Fprintf(os.Stderr, "  %-10s %s\n  %-10s %s\n\nFlags:\n", "all", "Run every command", "version", "Show version")
		flag.PrintDefaults()
	}
	klog.InitFlags(flag.CommandLine)
	flag.Parse()
	defer klog.Flush()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Printf("accel %s\n", version)
		return
	}

	cfg := accel.DefaultConfig()
	cfg.DisableGPU = *flagCPUOnly
	cfg.Tolerance = *flagTolerance
	cfg.Seed = *flagSeed
	if *flagWorkers > 0 {
		cfg.Parallel = cpu.DefaultParallelConfig()
		cfg.Parallel.NumWorkers = *flagWorkers
	}
	e := must.M1(accel.New(cfg))
	defer e.Close()
	s := suite.New(e)

	failed := false
	for _, name := range args {
		ran := false
		for _, c := range commands {
			if name == c.name || name == "all" {
				r := c.run(s)
				fmt.Print(r)
				failed = failed || !r.OK
				ran = true
			}
		}
		if !ran {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
			flag.Usage()
			failed = true
		}
	}
	fmt.Printf("\ndispatcher: %s\n", e.Dispatcher().Stats())

	if failed {
		klog.Flush()
		e.Close()
		os.Exit(1)
	}
}
