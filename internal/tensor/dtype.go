// Package tensor provides the dense, device-tagged buffers that accel
// operations consume and produce.
package tensor

import "github.com/x448/float16"

// Element is the constraint for host slices that can back a tensor.
type Element interface {
	float16.Float16 | float32 | float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// Valid reports whether dt is a supported data type.
func (dt DataType) Valid() bool {
	return dt == Float16 || dt == Float32 || dt == Float64
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// DataTypeOf returns the DataType matching T.
func DataTypeOf[T Element]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float16.Float16:
		return Float16
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported type")
	}
}
