// SPDX-License-Identifier: EPL-2.0

package utils

const int16Scale = 32768.0

// Float32ToInt16 clamps x to [-1, 1] and scales it to the int16 range.
func Float32ToInt16(x float32) int16 {
	v := x * int16Scale
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	default:
		return int16(v)
	}
}

// Int16ToFloat32 maps an int16 sample onto [-1, 1).
func Int16ToFloat32(v int16) float32 {
	return float32(v) / int16Scale
}

// Int16LEToFloat32 converts little-endian 16-bit PCM in src into dst and
// returns the number of samples written.
func Int16LEToFloat32(dst []float32, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := range n {
		dst[i] = Int16ToFloat32(int16(uint16(src[2*i]) | uint16(src[2*i+1])<<8))
	}

	return n
}
