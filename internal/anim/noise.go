package anim

import "math"

// multiSine is the low-frequency pseudo-noise used for head sway and
// micro-saccades: three detuned sines summed and normalized to roughly [-1,1].
func multiSine(t, offset float32) float32 {
	t += offset

	n1 := float32(math.Sin(float64(t)))
	n2 := float32(math.Sin(float64(t*2.3+1.7))) * 0.5
	n3 := float32(math.Sin(float64(t*4.1+3.2))) * 0.25

	return (n1 + n2 + n3) / 1.75
}
