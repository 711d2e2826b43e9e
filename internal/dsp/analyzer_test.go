package dsp

import (
	"math"
	"testing"
)

func sine(freq float64, n, sampleRate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestAnalyze_SineLandsInItsBand(t *testing.T) {
	tests := []struct {
		name string
		freq float64
		pick func(BandEnergies) float64
	}{
		{"bass", 120, func(b BandEnergies) float64 { return b.Bass }},
		{"low-mid", 350, func(b BandEnergies) float64 { return b.LowMid }},
		{"mid", 1000, func(b BandEnergies) float64 { return b.Mid }},
		{"high-mid", 3000, func(b BandEnergies) float64 { return b.HighMid }},
		{"high", 6000, func(b BandEnergies) float64 { return b.High }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(DefaultSampleRate)
			samples := sine(tt.freq, DefaultFFTSize, DefaultSampleRate)

			// A few frames to let the smoothing settle.
			var frame Frame
			for i := 0; i < 10; i++ {
				frame = a.Analyze(samples)
			}

			got := tt.pick(frame.Bands)
			others := frame.Bands.Total() - got
			if got <= others/4 {
				t.Errorf("band energy %f not dominant (others sum %f)", got, others)
			}
		})
	}
}

func TestAnalyze_SilenceIsZero(t *testing.T) {
	a := NewAnalyzer(DefaultSampleRate)
	frame := a.Analyze(make([]float32, DefaultFFTSize))
	if frame.Amplitude != 0 {
		t.Errorf("silence amplitude = %f", frame.Amplitude)
	}
	if frame.Bands.Total() != 0 {
		t.Errorf("silence band total = %f", frame.Bands.Total())
	}
}

func TestAnalyze_ShortInputZeroPadded(t *testing.T) {
	a := NewAnalyzer(DefaultSampleRate)
	frame := a.Analyze(sine(1000, 64, DefaultSampleRate))
	if frame.Amplitude <= 0 {
		t.Error("short input produced no amplitude")
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	a := NewAnalyzer(DefaultSampleRate)
	frame := a.Analyze(nil)
	if frame.Amplitude != 0 {
		t.Errorf("nil input amplitude = %f", frame.Amplitude)
	}
}

func TestAnalyze_SmoothingCarriesBetweenFrames(t *testing.T) {
	a := NewAnalyzer(DefaultSampleRate)
	samples := sine(1000, DefaultFFTSize, DefaultSampleRate)

	first := a.Analyze(samples)
	second := a.Analyze(samples)
	if second.Amplitude <= first.Amplitude {
		t.Errorf("smoothing did not accumulate: %f then %f", first.Amplitude, second.Amplitude)
	}

	// After the tone stops, energy decays rather than cutting off.
	after := a.Analyze(make([]float32, DefaultFFTSize))
	if after.Amplitude <= 0 || after.Amplitude >= second.Amplitude {
		t.Errorf("decay amplitude = %f, want between 0 and %f", after.Amplitude, second.Amplitude)
	}
}

func TestReset_ClearsSmoothing(t *testing.T) {
	a := NewAnalyzer(DefaultSampleRate)
	a.Analyze(sine(1000, DefaultFFTSize, DefaultSampleRate))
	a.Reset()
	frame := a.Analyze(make([]float32, DefaultFFTSize))
	if frame.Amplitude != 0 {
		t.Errorf("amplitude after reset = %f, want 0", frame.Amplitude)
	}
}

func TestFFT_ParsevalSanity(t *testing.T) {
	// A pure tone's spectrum concentrates at its bin.
	const n = 256
	re := make([]float64, n)
	im := make([]float64, n)
	binFreq := 16.0
	for i := range re {
		re[i] = math.Cos(2 * math.Pi * binFreq * float64(i) / n)
	}

	fft(re, im)

	peak := math.Hypot(re[16], im[16])
	if peak < float64(n)/2*0.99 {
		t.Errorf("peak magnitude %f, want ~%d", peak, n/2)
	}
	for i := 1; i < n/2; i++ {
		if i == 16 {
			continue
		}
		if mag := math.Hypot(re[i], im[i]); mag > 1e-6 {
			t.Errorf("leakage at bin %d: %f", i, mag)
		}
	}
}

func TestDecodePCM16(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []float32
	}{
		{"zero", []byte{0x00, 0x00}, []float32{0}},
		{"max positive", []byte{0xFF, 0x7F}, []float32{32767.0 / 32768.0}},
		{"min negative", []byte{0x00, 0x80}, []float32{-1}},
		{"odd trailing byte dropped", []byte{0x00, 0x00, 0xAB}, []float32{0}},
		{"empty", nil, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodePCM16(tt.data)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("sample %d = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f", got)
	}
	if got := RMS([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("RMS = %f, want 0.5", got)
	}
}
