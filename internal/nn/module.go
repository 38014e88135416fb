// Package nn implements the inference-only neural network modules used by
// the accel demos.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight and bias tensors
//   - Linear: Fully connected layer executed as an Affine operation
//   - Activations: ReLU, Softmax
//   - Sequential: Container for stacking layers
//   - NewMLP: A two-layer perceptron built from the above
//
// There is no autograd and no training: parameters are initialized once and
// only the forward pass exists.
package nn

import (
	"github.com/born-ml/accel/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters
//
// Modules can be composed to build larger networks:
//
//	model := nn.NewSequential(
//	    linear1,
//	    nn.NewReLU(),
//	    linear2,
//	)
type Module interface {
	// Forward computes the module output. Inputs and outputs are Float32
	// tensors resident on the host.
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns the module's parameters, or nil.
	Parameters() []*Parameter
}

// Parameter is a named parameter tensor, such as a weight or a bias.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter creates a new parameter.
//
// Parameters:
//   - name: Descriptive name for this parameter (e.g., "linear1.weight")
//   - t: The initialized parameter tensor
//
// Returns a new Parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// CountParameters returns the total number of scalar parameters of m.
func CountParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.tensor.NumElements()
	}
	return n
}
