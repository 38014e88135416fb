package nn

import (
	"github.com/born-ml/accel/internal/tensor"
	"github.com/chewxy/math32"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	data, err := tensor.ToHost[float32](input)
	if err != nil {
		return nil, err
	}
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return tensor.FromHost(data, input.Shape(), input.Device())
}

// Parameters returns nil (ReLU has no parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// Softmax normalizes the last dimension into probabilities.
//
// Applies: softmax(x)_i = exp(x_i - max(x)) / sum_j exp(x_j - max(x))
//
// Subtracting the row maximum keeps exp from overflowing.
type Softmax struct{}

// NewSoftmax creates a new Softmax module.
func NewSoftmax() *Softmax {
	return &Softmax{}
}

// Forward applies softmax along the last dimension.
func (s *Softmax) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	data, err := tensor.ToHost[float32](input)
	if err != nil {
		return nil, err
	}
	cols := input.Dim(-1)
	for start := 0; start < len(data); start += cols {
		row := data[start : start+cols]
		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = math32.Max(maxVal, v)
		}
		var sum float32
		for i, v := range row {
			row[i] = math32.Exp(v - maxVal)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
	return tensor.FromHost(data, input.Shape(), input.Device())
}

// Parameters returns nil (Softmax has no parameters).
func (s *Softmax) Parameters() []*Parameter {
	return nil
}
