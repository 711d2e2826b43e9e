package anim

import "math"

// MicroExpressionKind identifies one of the transient facial flickers layered
// on top of the primary expression.
type MicroExpressionKind string

const (
	MicroBrowFlash     MicroExpressionKind = "brow_flash"
	MicroLipCornerPull MicroExpressionKind = "lip_corner_pull"
	MicroNoseWrinkle   MicroExpressionKind = "nose_wrinkle"
	MicroEyeSquint     MicroExpressionKind = "eye_squint"
	MicroLipPress      MicroExpressionKind = "lip_press"
)

var microKinds = []MicroExpressionKind{
	MicroBrowFlash,
	MicroLipCornerPull,
	MicroNoseWrinkle,
	MicroEyeSquint,
	MicroLipPress,
}

// microDurationScale stretches the randomized 200-600ms base duration per kind.
var microDurationScale = map[MicroExpressionKind]float32{
	MicroBrowFlash:     0.8,
	MicroLipCornerPull: 1.0,
	MicroNoseWrinkle:   0.7,
	MicroEyeSquint:     1.2,
	MicroLipPress:      1.0,
}

// microChannels lists the channels each kind drives, with per-channel scale.
var microChannels = map[MicroExpressionKind][]struct {
	idx   BlendshapeIndex
	scale float32
}{
	MicroBrowFlash: {
		{BrowOuterUpLeft, 1.0},
		{BrowOuterUpRight, 1.0},
		{BrowInnerUp, 0.6},
	},
	MicroLipCornerPull: {
		{MouthSmileLeft, 1.0},
		{MouthDimpleLeft, 0.5},
	},
	MicroNoseWrinkle: {
		{NoseSneerLeft, 1.0},
		{NoseSneerRight, 1.0},
		{CheekSquintLeft, 0.4},
	},
	MicroEyeSquint: {
		{EyeSquintLeft, 1.0},
		{EyeSquintRight, 1.0},
	},
	MicroLipPress: {
		{MouthPressLeft, 1.0},
		{MouthPressRight, 1.0},
	},
}

// MicroExpression is one active flicker instance. Times are on the core's
// internal millisecond clock.
type MicroExpression struct {
	Kind      MicroExpressionKind
	Intensity float32
	Duration  float64
	StartedAt float64
}

func (m *MicroExpression) expired(now float64) bool {
	return now-m.StartedAt > m.Duration
}

// apply layers the flicker's contribution additively. Envelope rises then
// falls as sin(progress*pi), never a linear decay.
func (m *MicroExpression) apply(now float64, out *BlendshapeVector) {
	progress := (now - m.StartedAt) / m.Duration
	if progress < 0 || progress > 1 {
		return
	}
	envelope := float32(math.Sin(progress * math.Pi))
	contribution := m.Intensity * envelope

	for _, ch := range microChannels[m.Kind] {
		out.AddTo(ch.idx, contribution*ch.scale)
	}
}
