package webgpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackParams(t *testing.T) {
	buf := packParams(2, 3, 4, 5)
	buf = appendFloat32(buf, 1.5)
	buf = appendFloat32(buf, 0)

	assert.Len(t, buf, 24)
	for i, want := range []uint32{2, 3, 4, 5} {
		assert.Equal(t, want, binary.LittleEndian.Uint32(buf[4*i:]))
	}
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(buf[20:])))
}

func TestShadersDeclareBindings(t *testing.T) {
	for name, code := range map[string]string{"gemm": gemmShader, "affine": affineShader} {
		for _, binding := range []string{"@binding(0)", "@binding(1)", "@binding(2)", "@binding(3)"} {
			assert.Contains(t, code, binding, name)
		}
		assert.Contains(t, code, "@workgroup_size(8, 8, 1)", name)
	}
	assert.Equal(t, 8, tile)
}
