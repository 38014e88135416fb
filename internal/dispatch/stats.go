package dispatch

import (
	"fmt"
	"sync/atomic"
)

// Stats are cumulative dispatcher counters.
type Stats struct {
	Calls     uint64 // Execute and ExecuteOn invocations.
	Transfers uint64 // Tensors copied between devices, including ToHost.
	Kernels   uint64 // Kernel invocations, including failed ones.
	Fallbacks uint64 // GPU failures retried on the CPU.
	Failures  uint64 // Calls that returned an error.
}

func (s Stats) String() string {
	return fmt.Sprintf("calls=%d transfers=%d kernels=%d fallbacks=%d failures=%d",
		s.Calls, s.Transfers, s.Kernels, s.Fallbacks, s.Failures)
}

type counters struct {
	calls, transfers, kernels, fallbacks, failures atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Calls:     c.calls.Load(),
		Transfers: c.transfers.Load(),
		Kernels:   c.kernels.Load(),
		Fallbacks: c.fallbacks.Load(),
		Failures:  c.failures.Load(),
	}
}
