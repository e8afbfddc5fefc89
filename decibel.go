package lumix

import "math"

// Decibel is a level in dB, relative to full scale.
type Decibel float64

// MinDecibel is reported for silence instead of -Inf.
const MinDecibel Decibel = -120

// Linear converts dB to a linear gain factor, 10^(dB/20).
func (d Decibel) Linear() float32 {
	return float32(math.Pow(10, float64(d)/20))
}

// ToDecibel converts a linear amplitude to dB, clamped to MinDecibel.
func ToDecibel(amplitude float32) Decibel {
	if amplitude <= 0 {
		return MinDecibel
	}
	d := Decibel(20 * math.Log10(float64(amplitude)))
	if d < MinDecibel {
		return MinDecibel
	}
	return d
}
