// Package dsp turns raw audio frames into the amplitude and band-energy
// readings that drive lip-sync classification.
package dsp

import "math"

// Analyzer defaults mirror a 256-bin short-time spectrum with exponential
// per-bin smoothing and a -90..-10 dB display range.
const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.3
	DefaultMinDecibels = -90.0
	DefaultMaxDecibels = -10.0
	DefaultSampleRate  = 16000
)

// Band boundaries in Hz for the five energy scalars.
var bandRanges = [5][2]float64{
	{20, 250},    // bass
	{250, 500},   // low-mid
	{500, 2000},  // mid
	{2000, 4000}, // high-mid
	{4000, 8000}, // high
}

// BandEnergies holds the five normalized band scalars, each in [0,1].
type BandEnergies struct {
	Bass    float64
	LowMid  float64
	Mid     float64
	HighMid float64
	High    float64
}

// Total sums all five bands.
func (b BandEnergies) Total() float64 {
	return b.Bass + b.LowMid + b.Mid + b.HighMid + b.High
}

// Frame is one analysis result: overall amplitude plus band energies.
type Frame struct {
	Amplitude float64
	Bands     BandEnergies
}

// Analyzer computes per-frame magnitude spectra over a fixed window. The only
// state between frames is the smoothing buffer and preallocated scratch;
// one instance serves one audio stream.
type Analyzer struct {
	fftSize    int
	sampleRate int
	smoothing  float64
	minDB      float64
	maxDB      float64

	window   []float64
	real     []float64
	imag     []float64
	smoothed []float64
}

// NewAnalyzer creates an analyzer for the given sample rate with default
// window size and smoothing.
func NewAnalyzer(sampleRate int) *Analyzer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	a := &Analyzer{
		fftSize:    DefaultFFTSize,
		sampleRate: sampleRate,
		smoothing:  DefaultSmoothing,
		minDB:      DefaultMinDecibels,
		maxDB:      DefaultMaxDecibels,
		real:       make([]float64, DefaultFFTSize),
		imag:       make([]float64, DefaultFFTSize),
		smoothed:   make([]float64, DefaultFFTSize/2),
	}
	// Hamming window.
	a.window = make([]float64, a.fftSize)
	for i := range a.window {
		a.window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(a.fftSize-1))
	}
	return a
}

// FFTSize returns the analysis window length in samples.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// Reset clears the smoothing state between utterances.
func (a *Analyzer) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

// Analyze processes one window of mono samples in [-1,1] and returns the
// frame reading. Short input is zero-padded; extra samples beyond the window
// are ignored. No allocation happens here.
func (a *Analyzer) Analyze(samples []float32) Frame {
	n := a.fftSize
	for i := 0; i < n; i++ {
		if i < len(samples) {
			a.real[i] = float64(samples[i]) * a.window[i]
		} else {
			a.real[i] = 0
		}
		a.imag[i] = 0
	}

	fft(a.real, a.imag)

	// Normalized magnitudes through the dB range, exponentially smoothed
	// per bin against the previous frame.
	bins := n / 2
	var ampSum float64
	for i := 0; i < bins; i++ {
		mag := math.Hypot(a.real[i], a.imag[i]) / float64(n)
		db := a.minDB
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		norm := (db - a.minDB) / (a.maxDB - a.minDB)
		if norm < 0 {
			norm = 0
		} else if norm > 1 {
			norm = 1
		}
		a.smoothed[i] = a.smoothing*a.smoothed[i] + (1-a.smoothing)*norm
		ampSum += a.smoothed[i]
	}

	frame := Frame{Amplitude: ampSum / float64(bins)}
	binHz := float64(a.sampleRate) / float64(n)

	bands := [5]float64{}
	for bi, r := range bandRanges {
		lo := int(r[0] / binHz)
		hi := int(r[1] / binHz)
		if hi >= bins {
			hi = bins - 1
		}
		if lo > hi {
			continue
		}
		var sum float64
		for i := lo; i <= hi; i++ {
			sum += a.smoothed[i]
		}
		bands[bi] = sum / float64(hi-lo+1)
	}
	frame.Bands = BandEnergies{
		Bass:    bands[0],
		LowMid:  bands[1],
		Mid:     bands[2],
		HighMid: bands[3],
		High:    bands[4],
	}
	return frame
}

// fft computes an in-place iterative radix-2 transform. Lengths are always a
// power of two here (the window size is fixed at construction).
func fft(re, im []float64) {
	n := len(re)
	if n < 2 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				angle := step * float64(k)
				wr, wi := math.Cos(angle), math.Sin(angle)
				i1 := start + k
				i2 := i1 + half
				tr := re[i2]*wr - im[i2]*wi
				ti := re[i2]*wi + im[i2]*wr
				re[i2] = re[i1] - tr
				im[i2] = im[i1] - ti
				re[i1] += tr
				im[i1] += ti
			}
		}
	}
}
