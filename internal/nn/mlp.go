package nn

import (
	"math/rand"

	"github.com/born-ml/accel/internal/dispatch"
)

// NewMLP builds a classifier Linear(in, hidden) -> ReLU -> Linear(hidden, out)
// -> Softmax whose linear layers run through d.
func NewMLP(d *dispatch.Dispatcher, rng *rand.Rand, in, hidden, out int) (*Sequential, error) {
	l1, err := NewLinear(d, rng, in, hidden)
	if err != nil {
		return nil, err
	}
	l2, err := NewLinear(d, rng, hidden, out)
	if err != nil {
		return nil, err
	}
	return NewSequential(l1, NewReLU(), l2, NewSoftmax()), nil
}

// Linears returns the Linear layers of s in order.
func Linears(s *Sequential) []*Linear {
	var out []*Linear
	for _, m := range s.modules {
		if l, ok := m.(*Linear); ok {
			out = append(out, l)
		}
	}
	return out
}
