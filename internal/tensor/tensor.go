package tensor

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/x448/float16"
)

// Tensor is a dense row-major buffer tagged with the device it resides on.
//
// A Tensor exclusively owns its buffer and holds a non-owning reference to
// its device. Shape, dtype and device never change after creation:
// transfers and operations return new tensors.
type Tensor struct {
	shape  Shape
	dtype  DataType
	device *device.Handle
	data   []byte
}

// Allocate creates a zero-filled tensor on dev.
func Allocate(shape Shape, dtype DataType, dev *device.Handle) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if !dtype.Valid() {
		return nil, errs.Shape("allocate", "unsupported dtype %d", int(dtype))
	}
	size, err := byteSize(shape, dtype)
	if err != nil {
		return nil, err
	}
	if !dev.Registered() {
		return nil, errs.Device("allocate", nil, "device %s is not registered", dev)
	}
	return &Tensor{
		shape:  shape.Clone(),
		dtype:  dtype,
		device: dev,
		data:   make([]byte, size),
	}, nil
}

// byteSize returns the buffer length of a valid shape of dtype.
func byteSize(shape Shape, dtype DataType) (int, error) {
	n := shape.NumElements()
	if n > math.MaxInt/dtype.Size() {
		return 0, errs.Shape("allocate", "shape %v of %s exceeds the addressable size", shape, dtype)
	}
	return n * dtype.Size(), nil
}

// FromBytes copies a host buffer of little-endian elements into a new
// tensor on dev. len(buf) must equal product(shape) * dtype.Size().
func FromBytes(buf []byte, shape Shape, dtype DataType, dev *device.Handle) (*Tensor, error) {
	t, err := Allocate(shape, dtype, dev)
	if err != nil {
		return nil, err
	}
	if len(buf) != len(t.data) {
		return nil, errs.Shape("from_host", "buffer has %d bytes, shape %v of %s needs %d",
			len(buf), shape, dtype, len(t.data))
	}
	copy(t.data, buf)
	return t, nil
}

// FromHost copies a host slice into a new tensor on dev. The dtype is the
// one matching T; len(buf) must equal product(shape).
func FromHost[T Element](buf []T, shape Shape, dev *device.Handle) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(buf) != shape.NumElements() {
		return nil, errs.Shape("from_host", "buffer has %d elements, shape %v needs %d",
			len(buf), shape, shape.NumElements())
	}
	return FromBytes(bytesOf(buf), shape, DataTypeOf[T](), dev)
}

// FromValues converts float64 values to dtype and stores them in a new
// tensor on dev.
func FromValues(values []float64, shape Shape, dtype DataType, dev *device.Handle) (*Tensor, error) {
	t, err := Allocate(shape, dtype, dev)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, errs.Shape("from_host", "buffer has %d elements, shape %v needs %d",
			len(values), shape, t.NumElements())
	}
	t.SetValues(values)
	return t, nil
}

// ToHost returns a host copy of t's elements. It fails only when T does not
// match the tensor's dtype.
func ToHost[T Element](t *Tensor) ([]T, error) {
	if want := DataTypeOf[T](); want != t.dtype {
		return nil, errs.Shape("to_host", "tensor dtype is %s, requested %s", t.dtype, want)
	}
	out := make([]T, t.NumElements())
	copy(bytesOf(out), t.data)
	return out, nil
}

// HostBytes returns a copy of the raw element bytes.
func (t *Tensor) HostBytes() []byte {
	return append([]byte(nil), t.data...)
}

// To copies t onto dev and returns the copy. The source is left untouched,
// even when dev is t's own device.
func (t *Tensor) To(dev *device.Handle) (*Tensor, error) {
	if !dev.Registered() {
		return nil, errs.Device("transfer", nil, "destination device %s is not registered", dev)
	}
	return &Tensor{
		shape:  t.shape.Clone(),
		dtype:  t.dtype,
		device: dev,
		data:   append([]byte(nil), t.data...),
	}, nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Dim returns the size of dimension i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Device returns the device the tensor resides on.
func (t *Tensor) Device() *device.Handle {
	return t.device
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return len(t.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (t *Tensor) Data() []byte {
	return t.data
}

// Validate checks the tensor invariants: buffer length matches the shape
// and the device is still registered.
func (t *Tensor) Validate() error {
	if t == nil {
		return errs.Shape("validate", "nil tensor")
	}
	if err := t.shape.Validate(); err != nil {
		return err
	}
	want, err := byteSize(t.shape, t.dtype)
	if err != nil {
		return err
	}
	if len(t.data) != want {
		return errs.Shape("validate", "buffer has %d bytes, shape %v of %s needs %d", len(t.data), t.shape, t.dtype, want)
	}
	if !t.device.Registered() {
		return errs.Device("validate", nil, "tensor device %s is not registered", t.device)
	}
	return nil
}

// String describes the tensor without its data.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%v, %s, %s)", t.shape, t.dtype, t.device)
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (t *Tensor) AsFloat32() []float32 {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (t *Tensor) AsFloat64() []float64 {
	if t.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsFloat16 interprets the data as []float16.Float16.
// Panics if the tensor's dtype is not Float16.
func (t *Tensor) AsFloat16() []float16.Float16 {
	if t.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Values returns the elements converted to float64.
func (t *Tensor) Values() []float64 {
	out := make([]float64, t.NumElements())
	switch t.dtype {
	case Float16:
		for i, v := range t.AsFloat16() {
			out[i] = float64(v.Float32())
		}
	case Float32:
		for i, v := range t.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, t.AsFloat64())
	}
	return out
}

// SetValues overwrites the elements with values converted to the tensor's
// dtype. len(values) must equal NumElements.
func (t *Tensor) SetValues(values []float64) {
	switch t.dtype {
	case Float16:
		dst := t.AsFloat16()
		for i, v := range values {
			dst[i] = float16.Fromfloat32(float32(v))
		}
	case Float32:
		dst := t.AsFloat32()
		for i, v := range values {
			dst[i] = float32(v)
		}
	case Float64:
		copy(t.AsFloat64(), values)
	}
}

// bytesOf reinterprets a slice of elements as its bytes without copying.
func bytesOf[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	//nolint:gosec // unsafe.Slice over the slice's own backing array
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}
