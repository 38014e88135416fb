package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/accel/internal/dispatch"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features] or [in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features] or [out_features]
//
// Forward runs as one Affine operation through the dispatcher, so the
// layer executes on the GPU when one is available and falls back to the
// CPU otherwise. Parameters live on the host; the dispatcher stages them.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	dispatcher  *dispatch.Dispatcher

	last *dispatch.Result
}

// NewLinear creates a new Linear layer.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros.
//
// Parameters:
//   - d: Dispatcher that executes the forward pass
//   - rng: Random source for the weights
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//
// Returns a new Linear layer.
func NewLinear(d *dispatch.Dispatcher, rng *rand.Rand, inFeatures, outFeatures int) (*Linear, error) {
	host := d.Registry().CPU()

	w, err := Xavier(rng, inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, host)
	if err != nil {
		return nil, err
	}
	b, err := Zeros(tensor.Shape{outFeatures}, host)
	if err != nil {
		return nil, err
	}
	return NewLinearFrom(d, w, b)
}

// NewLinearFrom creates a Linear layer from existing weight [out, in] and
// bias [out] tensors.
func NewLinearFrom(d *dispatch.Dispatcher, weight, bias *tensor.Tensor) (*Linear, error) {
	if weight.Rank() != 2 || bias.Rank() != 1 || bias.Dim(0) != weight.Dim(0) {
		return nil, errs.Shape("linear", "weight %v and bias %v do not form a layer", weight.Shape(), bias.Shape())
	}
	return &Linear{
		inFeatures:  weight.Dim(1),
		outFeatures: weight.Dim(0),
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		dispatcher:  d,
	}, nil
}

// Forward computes the output of the linear layer.
//
// Performs: y = x @ W.T + b
//
// Input shape: [batch_size, in_features] or [in_features]
// Output shape: [batch_size, out_features] or [out_features], on the host.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	r := dispatch.AffineRequest(l.weight.tensor, input, l.bias.tensor)
	r.ToHost = true

	res, err := l.dispatcher.Execute(r)
	if err != nil {
		return nil, err
	}
	l.last = res
	return res.Output, nil
}

// LastResult returns the dispatch result of the most recent Forward call,
// or nil. Not synchronized: read it from the goroutine that called Forward.
func (l *Linear) LastResult() *dispatch.Result {
	return l.last
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// String returns a string representation of the layer.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}
