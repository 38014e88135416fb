package dispatch

import (
	"testing"

	"github.com/born-ml/accel/internal/device"
	"github.com/born-ml/accel/internal/errs"
	"github.com/born-ml/accel/internal/ops"
	"github.com/born-ml/accel/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	reg := device.NewRegistry(device.WithoutGPU())
	z := func(shape ...int) *tensor.Tensor {
		return must.M1(tensor.Allocate(shape, tensor.Float32, reg.CPU()))
	}
	f64 := must.M1(tensor.Allocate(tensor.Shape{3, 4}, tensor.Float64, reg.CPU()))

	tests := []struct {
		name string
		req  Request
		want tensor.Shape // nil means ShapeError
	}{
		{"gemm", GEMMRequest(1, z(2, 3), z(3, 4), 0, nil), tensor.Shape{2, 4}},
		{"gemm with C", GEMMRequest(1, z(2, 3), z(3, 4), 1, z(2, 4)), tensor.Shape{2, 4}},
		{"gemm inner mismatch", GEMMRequest(1, z(2, 3), z(4, 4), 0, nil), nil},
		{"gemm rank", GEMMRequest(1, z(2, 3, 1), z(3, 4), 0, nil), nil},
		{"gemm missing C", GEMMRequest(1, z(2, 3), z(3, 4), 0.5, nil), nil},
		{"gemm bad C", GEMMRequest(1, z(2, 3), z(3, 4), 1, z(4, 2)), nil},
		{"gemm dtype", GEMMRequest(1, z(2, 3), f64, 0, nil), nil},
		{"gemm missing B", GEMMRequest(1, z(2, 3), nil, 0, nil), nil},
		{"gemv", GEMVRequest(1, z(5, 3), z(3), 0, nil), tensor.Shape{5}},
		{"gemv with y", GEMVRequest(2, z(5, 3), z(3), 1, z(5)), tensor.Shape{5}},
		{"gemv mismatch", GEMVRequest(1, z(5, 3), z(5), 0, nil), nil},
		{"gemv matrix x", GEMVRequest(1, z(5, 3), z(3, 1), 0, nil), nil},
		{"gemv bad y", GEMVRequest(1, z(5, 3), z(3), 1, z(3)), nil},
		{"batched", BatchedGEMMRequest(1, z(4, 2, 3), z(4, 3, 5), 0, nil), tensor.Shape{4, 2, 5}},
		{"batched batch mismatch", BatchedGEMMRequest(1, z(4, 2, 3), z(3, 3, 5), 0, nil), nil},
		{"batched inner mismatch", BatchedGEMMRequest(1, z(4, 2, 3), z(4, 2, 5), 0, nil), nil},
		{"batched rank", BatchedGEMMRequest(1, z(2, 3), z(3, 5), 0, nil), nil},
		{"affine vector", AffineRequest(z(4, 3), z(3), z(4)), tensor.Shape{4}},
		{"affine batch", AffineRequest(z(4, 3), z(6, 3), z(4)), tensor.Shape{6, 4}},
		{"affine x mismatch", AffineRequest(z(4, 3), z(4), z(4)), nil},
		{"affine bias mismatch", AffineRequest(z(4, 3), z(3), z(3)), nil},
		{"affine missing bias", AffineRequest(z(4, 3), z(3), nil), nil},
		{"unknown op", Request{Op: ops.Kind(42)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validate(tt.req)
			if tt.want == nil {
				require.Error(t, err)
				assert.True(t, errs.IsShape(err), "%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_UnregisteredOperand(t *testing.T) {
	reg := device.NewRegistry(device.WithoutGPU())
	a := must.M1(tensor.Allocate(tensor.Shape{2, 2}, tensor.Float32, reg.CPU()))
	reg.Close()

	_, err := validate(GEMMRequest(1, a, a, 0, nil))
	assert.True(t, errs.IsDevice(err))
}

func TestRequest_String(t *testing.T) {
	reg := device.NewRegistry(device.WithoutGPU())
	a := must.M1(tensor.Allocate(tensor.Shape{2, 3}, tensor.Float32, reg.CPU()))
	b := must.M1(tensor.Allocate(tensor.Shape{3, 4}, tensor.Float32, reg.CPU()))

	assert.Equal(t, "gemm([2,3] x [3,4])", GEMMRequest(1, a, b, 0, nil).String())
	assert.Equal(t, "gemm([2,3] x [3,4] x nil)", GEMMRequest(1, a, b, 1, nil).String())
	assert.Equal(t, "Executing", Executing.String())
	assert.Equal(t, "Unknown", State(99).String())
}
