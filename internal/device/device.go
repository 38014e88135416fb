// Package device models compute devices and the process-wide registry that
// discovers them.
package device

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Kind is the class of a compute device.
type Kind int

// Supported device kinds.
const (
	CPU Kind = iota
	GPU
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Capability describes what a device offers. It is informational: the
// selection policy only looks at Kind.
type Capability struct {
	Backend     string   // Kernel provider, e.g. "gonum" or "webgpu".
	Name        string   // Adapter or architecture name.
	Features    []string // Feature flags, e.g. "avx2", "fma", "f32".
	MemoryBytes uint64   // Device (or host) memory, 0 if unknown.
	Cores       int      // Logical cores for CPUs, 0 if unknown.
}

// Has reports whether feature is listed in the capability.
func (c Capability) Has(feature string) bool {
	for _, f := range c.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// String formats the capability on one line.
func (c Capability) String() string {
	var sb strings.Builder
	sb.WriteString(c.Backend)
	if c.Name != "" {
		fmt.Fprintf(&sb, " (%s)", c.Name)
	}
	if c.Cores > 0 {
		fmt.Fprintf(&sb, ", %d cores", c.Cores)
	}
	if c.MemoryBytes > 0 {
		fmt.Fprintf(&sb, ", %.1f GiB", float64(c.MemoryBytes)/(1<<30))
	}
	if len(c.Features) > 0 {
		fmt.Fprintf(&sb, ", [%s]", strings.Join(c.Features, " "))
	}
	return sb.String()
}

// Context is a backend-specific resource owned by a device handle, such as
// a GPU device and queue. It is released when the registry is closed.
type Context interface {
	Name() string
	Release()
}

// Handle represents one compute device. Handles are created by a Registry
// and never mutated afterwards, except for the registration flag which is
// cleared once at teardown.
type Handle struct {
	id         string
	kind       Kind
	ordinal    int
	capability Capability
	ctx        Context
	registered atomic.Bool
}

func newHandle(kind Kind, ordinal int, capability Capability, ctx Context) *Handle {
	h := &Handle{
		id:         fmt.Sprintf("%s:%d", strings.ToLower(kind.String()), ordinal),
		kind:       kind,
		ordinal:    ordinal,
		capability: capability,
		ctx:        ctx,
	}
	h.registered.Store(true)
	return h
}

// ID returns the opaque device identifier ("cpu:0", "gpu:0", ...).
func (h *Handle) ID() string { return h.id }

// Kind returns the device kind.
func (h *Handle) Kind() Kind { return h.kind }

// Ordinal returns the device index among devices of the same kind.
func (h *Handle) Ordinal() int { return h.ordinal }

// Capability returns the device capability descriptor.
func (h *Handle) Capability() Capability { return h.capability }

// Context returns the backend resource owned by the handle. It is nil for
// the CPU handle.
func (h *Handle) Context() Context { return h.ctx }

// Registered reports whether the handle still belongs to an open registry.
// A nil handle is never registered.
func (h *Handle) Registered() bool {
	return h != nil && h.registered.Load()
}

// String implements fmt.Stringer.
func (h *Handle) String() string {
	if h == nil {
		return "<nil device>"
	}
	return h.id
}
