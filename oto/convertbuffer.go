package oto

import (
	"encoding/binary"
	"math"

	"github.com/vsariola/lumix"
)

// Float32LE appends buf to dst as interleaved little-endian float32 samples.
func Float32LE(buf lumix.AudioBuffer, dst []byte) []byte {
	for _, v := range buf.Flat() {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// FloatBufferTo16BitLE appends buf to dst as interleaved 16-bit little-endian
// integers, clamping the samples to [-1,1].
func FloatBufferTo16BitLE(buf lumix.AudioBuffer, dst []byte) []byte {
	for _, v := range buf.Flat() {
		var uv int16
		if v < -1.0 {
			uv = -math.MaxInt16
		} else if v > 1.0 {
			uv = math.MaxInt16
		} else {
			uv = int16(v * math.MaxInt16)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(uv))
	}
	return dst
}
