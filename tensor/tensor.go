// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor type of accel: a dense,
// row-major, device-resident array of Float16, Float32 or Float64 values.
//
// Example:
//
//	reg := device.NewRegistry()
//	a, _ := tensor.FromHost([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, reg.CPU())
//	host, _ := tensor.ToHost[float32](a)
package tensor

import (
	"github.com/born-ml/accel/device"
	"github.com/born-ml/accel/internal/tensor"
)

// Element is the constraint satisfied by the host element types.
type Element = tensor.Element

// DataType identifies the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Float16 DataType = tensor.Float16
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} is a batch of two 3x4 matrices.
type Shape = tensor.Shape

// Tensor is a dense array resident on one device.
type Tensor = tensor.Tensor

// Allocate creates a zero-filled tensor on dev.
func Allocate(shape Shape, dtype DataType, dev *device.Handle) (*Tensor, error) {
	return tensor.Allocate(shape, dtype, dev)
}

// FromHost copies buf into a new tensor on dev.
func FromHost[T Element](buf []T, shape Shape, dev *device.Handle) (*Tensor, error) {
	return tensor.FromHost(buf, shape, dev)
}

// FromValues converts values to dtype and stores them in a new tensor on dev.
func FromValues(values []float64, shape Shape, dtype DataType, dev *device.Handle) (*Tensor, error) {
	return tensor.FromValues(values, shape, dtype, dev)
}

// ToHost copies the contents of t into a new host slice.
func ToHost[T Element](t *Tensor) ([]T, error) {
	return tensor.ToHost[T](t)
}

// DataTypeOf returns the DataType of T.
func DataTypeOf[T Element]() DataType {
	return tensor.DataTypeOf[T]()
}
