package anim

// BlendshapeIndex addresses one channel of the ARKit-style weight vector.
type BlendshapeIndex int

const (
	BrowDownLeft BlendshapeIndex = iota
	BrowDownRight
	BrowInnerUp
	BrowOuterUpLeft
	BrowOuterUpRight
	CheekPuff
	CheekSquintLeft
	CheekSquintRight
	EyeBlinkLeft
	EyeBlinkRight
	EyeLookDownLeft
	EyeLookDownRight
	EyeLookInLeft
	EyeLookInRight
	EyeLookOutLeft
	EyeLookOutRight
	EyeLookUpLeft
	EyeLookUpRight
	EyeSquintLeft
	EyeSquintRight
	EyeWideLeft
	EyeWideRight
	JawForward
	JawLeft
	JawOpen
	JawRight
	MouthClose
	MouthDimpleLeft
	MouthDimpleRight
	MouthFrownLeft
	MouthFrownRight
	MouthFunnel
	MouthLeft
	MouthLowerDownLeft
	MouthLowerDownRight
	MouthPressLeft
	MouthPressRight
	MouthPucker
	MouthRight
	MouthRollLower
	MouthRollUpper
	MouthShrugLower
	MouthShrugUpper
	MouthSmileLeft
	MouthSmileRight
	MouthStretchLeft
	MouthStretchRight
	MouthUpperUpLeft
	MouthUpperUpRight
	NoseSneerLeft
	NoseSneerRight
	TongueOut
	BlendshapeCount
)

// BlendshapeNames follows the ARKit naming used by the renderer's morph targets.
var BlendshapeNames = [BlendshapeCount]string{
	"browDownLeft",
	"browDownRight",
	"browInnerUp",
	"browOuterUpLeft",
	"browOuterUpRight",
	"cheekPuff",
	"cheekSquintLeft",
	"cheekSquintRight",
	"eyeBlinkLeft",
	"eyeBlinkRight",
	"eyeLookDownLeft",
	"eyeLookDownRight",
	"eyeLookInLeft",
	"eyeLookInRight",
	"eyeLookOutLeft",
	"eyeLookOutRight",
	"eyeLookUpLeft",
	"eyeLookUpRight",
	"eyeSquintLeft",
	"eyeSquintRight",
	"eyeWideLeft",
	"eyeWideRight",
	"jawForward",
	"jawLeft",
	"jawOpen",
	"jawRight",
	"mouthClose",
	"mouthDimpleLeft",
	"mouthDimpleRight",
	"mouthFrownLeft",
	"mouthFrownRight",
	"mouthFunnel",
	"mouthLeft",
	"mouthLowerDownLeft",
	"mouthLowerDownRight",
	"mouthPressLeft",
	"mouthPressRight",
	"mouthPucker",
	"mouthRight",
	"mouthRollLower",
	"mouthRollUpper",
	"mouthShrugLower",
	"mouthShrugUpper",
	"mouthSmileLeft",
	"mouthSmileRight",
	"mouthStretchLeft",
	"mouthStretchRight",
	"mouthUpperUpLeft",
	"mouthUpperUpRight",
	"noseSneerLeft",
	"noseSneerRight",
	"tongueOut",
}

// BlendshapeVector holds one weight per channel, always clamped to [0,1].
type BlendshapeVector [BlendshapeCount]float32

func (w *BlendshapeVector) Set(idx BlendshapeIndex, value float32) {
	w[idx] = clamp(value, 0, 1)
}

func (w *BlendshapeVector) Get(idx BlendshapeIndex) float32 {
	return w[idx]
}

// Raise sets the channel to the greater of its current value and value.
// Visemes and emotion both want to own the mouth; max-combine keeps them
// from canceling each other.
func (w *BlendshapeVector) Raise(idx BlendshapeIndex, value float32) {
	if v := clamp(value, 0, 1); v > w[idx] {
		w[idx] = v
	}
}

// AddTo layers value additively onto the channel.
func (w *BlendshapeVector) AddTo(idx BlendshapeIndex, value float32) {
	w[idx] = clamp(w[idx]+value, 0, 1)
}

func (w *BlendshapeVector) Reset() {
	for i := range w {
		w[i] = 0
	}
}

// Overlay writes every non-zero channel of src scaled by factor, overwriting
// whatever is present.
func (w *BlendshapeVector) Overlay(src *BlendshapeVector, factor float32) {
	for i := range src {
		if src[i] != 0 {
			w[i] = clamp(src[i]*factor, 0, 1)
		}
	}
}

// ClampAll bounds every channel to [0,1]. Compose rules keep values in range
// already; this is the defensive pass before the vector leaves the core.
func (w *BlendshapeVector) ClampAll() {
	for i := range w {
		w[i] = clamp(w[i], 0, 1)
	}
}

func (w *BlendshapeVector) ToSlice() []float32 {
	return w[:]
}

func BlendshapeIndexFromName(name string) BlendshapeIndex {
	for i, n := range BlendshapeNames {
		if n == name {
			return BlendshapeIndex(i)
		}
	}
	return -1
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
