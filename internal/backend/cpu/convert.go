package cpu

import "github.com/x448/float16"

// widen converts half-precision values to float32.
func widen(src []float16.Float16) []float32 {
	dst := make([]float32, len(src))
	for i, v := range src {
		dst[i] = v.Float32()
	}
	return dst
}

// narrow writes float32 values back as half precision, rounding to nearest even.
func narrow(dst []float16.Float16, src []float32) {
	for i, v := range src {
		dst[i] = float16.Fromfloat32(v)
	}
}
