package dsp

import "math"

// DecodePCM16 converts little-endian 16-bit signed PCM bytes to normalized
// float32 samples. A trailing odd byte is dropped.
func DecodePCM16(data []byte) []float32 {
	samples := make([]float32, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(data[i]) | int16(data[i+1])<<8
		samples = append(samples, float32(s)/32768.0)
	}
	return samples
}

// RMS computes root-mean-square energy of normalized samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
