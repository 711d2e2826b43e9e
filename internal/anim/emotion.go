package anim

// Emotion is the symbolic affect driving the face. The domain is closed:
// emotion targets live in a fixed table keyed by this type.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionCurious   Emotion = "curious"
	EmotionFocused   Emotion = "focused"
	EmotionPlayful   Emotion = "playful"
	EmotionConcerned Emotion = "concerned"
	EmotionConfident Emotion = "confident"
)

// EmotionCurvePoint is one keyframe of an emotion arc over an utterance.
// Time is normalized to [0,1] across the curve's duration.
type EmotionCurvePoint struct {
	Time      float32
	Emotion   Emotion
	Intensity float32
}

func buildTarget(pairs ...struct {
	idx BlendshapeIndex
	w   float32
}) BlendshapeVector {
	var v BlendshapeVector
	for _, p := range pairs {
		v.Set(p.idx, p.w)
	}
	return v
}

func bw(idx BlendshapeIndex, w float32) struct {
	idx BlendshapeIndex
	w   float32
} {
	return struct {
		idx BlendshapeIndex
		w   float32
	}{idx, w}
}

// emotionTargets maps each emotion to its full-intensity blendshape pose.
// The tick loop overlays these scaled by intensity; it never mutates them.
var emotionTargets = map[Emotion]BlendshapeVector{
	EmotionNeutral: {},
	EmotionHappy: buildTarget(
		bw(MouthSmileLeft, 0.55),
		bw(MouthSmileRight, 0.55),
		bw(CheekSquintLeft, 0.3),
		bw(CheekSquintRight, 0.3),
		bw(EyeSquintLeft, 0.15),
		bw(EyeSquintRight, 0.15),
		bw(BrowInnerUp, 0.1),
	),
	EmotionSad: buildTarget(
		bw(BrowInnerUp, 0.45),
		bw(BrowDownLeft, 0.1),
		bw(BrowDownRight, 0.1),
		bw(MouthFrownLeft, 0.35),
		bw(MouthFrownRight, 0.35),
		bw(EyeSquintLeft, 0.1),
		bw(EyeSquintRight, 0.1),
		bw(MouthShrugLower, 0.2),
	),
	EmotionAngry: buildTarget(
		bw(BrowDownLeft, 0.5),
		bw(BrowDownRight, 0.5),
		bw(EyeSquintLeft, 0.3),
		bw(EyeSquintRight, 0.3),
		bw(NoseSneerLeft, 0.25),
		bw(NoseSneerRight, 0.25),
		bw(MouthPressLeft, 0.3),
		bw(MouthPressRight, 0.3),
		bw(JawForward, 0.15),
	),
	EmotionSurprised: buildTarget(
		bw(BrowInnerUp, 0.55),
		bw(BrowOuterUpLeft, 0.45),
		bw(BrowOuterUpRight, 0.45),
		bw(EyeWideLeft, 0.5),
		bw(EyeWideRight, 0.5),
		bw(JawOpen, 0.3),
	),
	EmotionCurious: buildTarget(
		bw(BrowInnerUp, 0.3),
		bw(BrowOuterUpLeft, 0.25),
		bw(EyeWideLeft, 0.2),
		bw(EyeWideRight, 0.2),
		bw(MouthSmileLeft, 0.1),
		bw(MouthPucker, 0.1),
	),
	EmotionFocused: buildTarget(
		bw(BrowDownLeft, 0.25),
		bw(BrowDownRight, 0.25),
		bw(EyeSquintLeft, 0.2),
		bw(EyeSquintRight, 0.2),
		bw(MouthPressLeft, 0.15),
		bw(MouthPressRight, 0.15),
	),
	EmotionPlayful: buildTarget(
		bw(MouthSmileLeft, 0.5),
		bw(MouthSmileRight, 0.35),
		bw(BrowOuterUpLeft, 0.3),
		bw(CheekSquintLeft, 0.25),
		bw(CheekSquintRight, 0.2),
		bw(EyeSquintLeft, 0.1),
	),
	EmotionConcerned: buildTarget(
		bw(BrowInnerUp, 0.4),
		bw(BrowDownLeft, 0.2),
		bw(BrowDownRight, 0.2),
		bw(MouthFrownLeft, 0.2),
		bw(MouthFrownRight, 0.2),
		bw(MouthPressLeft, 0.15),
		bw(MouthPressRight, 0.15),
	),
	EmotionConfident: buildTarget(
		bw(MouthSmileLeft, 0.3),
		bw(MouthSmileRight, 0.3),
		bw(CheekSquintLeft, 0.15),
		bw(CheekSquintRight, 0.15),
		bw(EyeSquintLeft, 0.1),
		bw(EyeSquintRight, 0.1),
		bw(BrowDownLeft, 0.05),
		bw(BrowDownRight, 0.05),
	),
}

// EmotionTarget returns the full-intensity pose for e, or the neutral pose
// for unknown labels. Malformed upstream input must never halt animation.
func EmotionTarget(e Emotion) BlendshapeVector {
	if t, ok := emotionTargets[e]; ok {
		return t
	}
	return BlendshapeVector{}
}

// IsKnownEmotion reports whether e is in the closed emotion domain.
func IsKnownEmotion(e Emotion) bool {
	_, ok := emotionTargets[e]
	return ok
}

func smoothstep(t float32) float32 {
	t = clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

// evalCurve resolves the emotion and intensity at normalized time t by
// locating the bracketing keyframe pair and easing intensity between them
// with a smoothstep. The segment's leading emotion is adopted whole; only
// intensity interpolates.
func evalCurve(points []EmotionCurvePoint, t float32) (Emotion, float32, bool) {
	if len(points) == 0 {
		return EmotionNeutral, 0, false
	}
	t = clamp(t, 0, 1)

	if t <= points[0].Time {
		return points[0].Emotion, clamp(points[0].Intensity, 0, 1), true
	}
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		if t >= a.Time && t <= b.Time {
			span := b.Time - a.Time
			var p float32
			if span > 0 {
				p = smoothstep((t - a.Time) / span)
			}
			return a.Emotion, clamp(lerp(a.Intensity, b.Intensity, p), 0, 1), true
		}
	}
	last := points[len(points)-1]
	return last.Emotion, clamp(last.Intensity, 0, 1), true
}
