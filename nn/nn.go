// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides inference-only neural network layers whose dense
// products run through a dispatcher.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	model, _ := nn.NewMLP(d, rng, 784, 128, 10)
//	probs, _ := model.Forward(batch)
package nn

import (
	"math/rand"

	"github.com/born-ml/accel/device"
	"github.com/born-ml/accel/dispatch"
	"github.com/born-ml/accel/internal/nn"
	"github.com/born-ml/accel/tensor"
)

type (
	// Module is the base interface for all neural network components.
	Module = nn.Module

	// Parameter is a named parameter tensor.
	Parameter = nn.Parameter

	// Linear is a fully connected layer executed as one Affine operation.
	Linear = nn.Linear

	// ReLU applies max(0, x) element-wise.
	ReLU = nn.ReLU

	// Softmax normalizes each row into a probability distribution.
	Softmax = nn.Softmax

	// Sequential chains modules.
	Sequential = nn.Sequential
)

// NewLinear creates a Linear layer with Xavier weights and zero bias.
func NewLinear(d *dispatch.Dispatcher, rng *rand.Rand, inFeatures, outFeatures int) (*Linear, error) {
	return nn.NewLinear(d, rng, inFeatures, outFeatures)
}

// NewLinearFrom creates a Linear layer from existing weight [out, in] and
// bias [out] tensors.
func NewLinearFrom(d *dispatch.Dispatcher, weight, bias *tensor.Tensor) (*Linear, error) {
	return nn.NewLinearFrom(d, weight, bias)
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return nn.NewReLU() }

// NewSoftmax creates a row-wise Softmax.
func NewSoftmax() *Softmax { return nn.NewSoftmax() }

// NewSequential chains modules.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewMLP builds Linear(in, hidden) -> ReLU -> Linear(hidden, out) -> Softmax.
func NewMLP(d *dispatch.Dispatcher, rng *rand.Rand, in, hidden, out int) (*Sequential, error) {
	return nn.NewMLP(d, rng, in, hidden, out)
}

// CountParameters returns the number of scalar parameters of m.
func CountParameters(m Module) int {
	return nn.CountParameters(m)
}

// Xavier returns a Float32 tensor drawn from the Glorot uniform distribution.
func Xavier(rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape, dev *device.Handle) (*tensor.Tensor, error) {
	return nn.Xavier(rng, fanIn, fanOut, shape, dev)
}

// Linears returns the Linear layers of s in order.
func Linears(s *Sequential) []*Linear {
	return nn.Linears(s)
}
