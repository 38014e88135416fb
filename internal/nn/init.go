package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
//
// Parameters:
//   - rng: Random source; a fixed seed gives reproducible weights
//   - fanIn: Number of input units
//   - fanOut: Number of output units
//   - shape: Shape of the weight tensor
//   - dev: Device the tensor is created on
//
// Returns a Float32 tensor initialized with Xavier distribution.
func Xavier(rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape, dev *device.Handle) (*tensor.Tensor, error) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t, err := tensor.Allocate(shape, tensor.Float32, dev)
	if err != nil {
		return nil, err
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t, nil
}

// Zeros creates a Float32 tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape, dev *device.Handle) (*tensor.Tensor, error) {
	return tensor.Allocate(shape, tensor.Float32, dev)
}

// Uniform creates a Float32 tensor with values drawn from U(lo, hi).
func Uniform(rng *rand.Rand, lo, hi float32, shape tensor.Shape, dev *device.Handle) (*tensor.Tensor, error) {
	t, err := tensor.Allocate(shape, tensor.Float32, dev)
	if err != nil {
		return nil, err
	}
	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // Using math/rand for demo inputs (not security-critical)
		data[i] = lo + rng.Float32()*(hi-lo)
	}
	return t, nil
}
