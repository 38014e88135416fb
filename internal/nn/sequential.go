package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/accel/internal/tensor"
	"github.com/pkg/errors"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential(
//	    linear1,
//	    nn.NewReLU(),
//	    linear2,
//	)
//
//	output, err := model.Forward(input)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence. It stops at the first error,
// annotated with the failing module's index.
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	output := input
	for i, module := range s.modules {
		var err error
		if output, err = module.Forward(output); err != nil {
			return nil, errors.WithMessagef(err, "module %d (%T)", i, module)
		}
	}
	return output, nil
}

// Parameters returns the parameters of all modules, in order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at index.
func (s *Sequential) Module(index int) Module {
	return s.modules[index]
}

// String lists the contained modules.
func (s *Sequential) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&sb, "  (%d): %v\n", i, m)
	}
	sb.WriteString(")")
	return sb.String()
}
