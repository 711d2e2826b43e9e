package anim

import (
	"math"
	"testing"
)

func TestEvalCurve(t *testing.T) {
	curve := []EmotionCurvePoint{
		{Time: 0.0, Emotion: EmotionHappy, Intensity: 0.4},
		{Time: 0.5, Emotion: EmotionHappy, Intensity: 1.0},
		{Time: 1.0, Emotion: EmotionNeutral, Intensity: 0.2},
	}

	tests := []struct {
		name          string
		t             float32
		wantEmotion   Emotion
		wantIntensity float32
	}{
		{"at start", 0.0, EmotionHappy, 0.4},
		{"segment midpoint eases halfway", 0.25, EmotionHappy, 0.7},
		{"at keyframe", 0.5, EmotionHappy, 1.0},
		{"second segment adopts leading emotion", 0.75, EmotionHappy, 0.6},
		// The final segment still carries its leading emotion; only the
		// intensity lands on the last keyframe's value.
		{"at end", 1.0, EmotionHappy, 0.2},
		{"clamped below", -0.5, EmotionHappy, 0.4},
		{"clamped above", 1.5, EmotionHappy, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emotion, intensity, ok := evalCurve(curve, tt.t)
			if !ok {
				t.Fatal("evalCurve reported no result")
			}
			if emotion != tt.wantEmotion {
				t.Errorf("emotion = %s, want %s", emotion, tt.wantEmotion)
			}
			if math.Abs(float64(intensity-tt.wantIntensity)) > 1e-5 {
				t.Errorf("intensity = %f, want %f", intensity, tt.wantIntensity)
			}
		})
	}
}

func TestEvalCurve_Empty(t *testing.T) {
	if _, _, ok := evalCurve(nil, 0.5); ok {
		t.Error("empty curve reported a result")
	}
}

func TestEmotionTarget_UnknownIsNeutralPose(t *testing.T) {
	target := EmotionTarget(Emotion("bogus"))
	for i, w := range target {
		if w != 0 {
			t.Errorf("unknown emotion drives channel %s: %f", BlendshapeNames[i], w)
		}
	}
}

func TestEmotionTargets_AllBounded(t *testing.T) {
	for emotion, target := range emotionTargets {
		for i, w := range target {
			if w < 0 || w > 1 {
				t.Errorf("%s channel %s out of range: %f", emotion, BlendshapeNames[i], w)
			}
		}
	}
}

func TestSmoothstep(t *testing.T) {
	if smoothstep(0) != 0 || smoothstep(1) != 1 {
		t.Error("smoothstep endpoints wrong")
	}
	if got := smoothstep(0.5); math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("smoothstep(0.5) = %f", got)
	}
	// Eases: slower than linear near the ends.
	if smoothstep(0.1) >= 0.1 {
		t.Errorf("smoothstep(0.1) = %f, want < 0.1", smoothstep(0.1))
	}
}
