package device

import (
	"runtime"

	"github.com/pbnjay/memory"
	"golang.org/x/sys/cpu"
)

// hostCapability describes the CPU the process runs on.
func hostCapability() Capability {
	return Capability{
		Backend:     "gonum",
		Name:        runtime.GOARCH,
		Features:    cpuFeatures(),
		MemoryBytes: memory.TotalMemory(),
		Cores:       runtime.NumCPU(),
	}
}

// cpuFeatures lists the SIMD features relevant to BLAS kernels.
func cpuFeatures() []string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE42 {
			features = append(features, "sse4.2")
		}
		if cpu.X86.HasAVX {
			features = append(features, "avx")
		}
		if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
		}
		if cpu.X86.HasFMA {
			features = append(features, "fma")
		}
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "neon")
		}
		if cpu.ARM64.HasFPHP {
			features = append(features, "fp16")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	return features
}
