package webgpu

import (
	"encoding/binary"
	"math"
)

// packParams encodes dims as consecutive little-endian u32 fields of a
// WGSL uniform struct.
func packParams(dims ...int) []byte {
	buf := make([]byte, 0, 4*len(dims)+8)
	for _, d := range dims {
		//nolint:gosec // G115: dimensions are validated positive
		buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
	}
	return buf
}

// appendFloat32 appends an f32 uniform field.
func appendFloat32(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}
