// Package anim drives the persona's facial performance: a per-frame state
// machine blending conversational state, emotion, archetype idle behavior,
// and lip-sync into one bounded blendshape vector.
package anim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
)

// State is the discrete conversational phase. All four values are always
// legal; any state may follow any other.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

// Gesture is a one-shot head motion layered onto the pose targets.
type Gesture string

const (
	GestureNod   Gesture = "nod"
	GestureTilt  Gesture = "tilt"
	GestureShake Gesture = "shake"
)

// Blink follows a fixed 150ms curve: squared ease-in to full closure over the
// first half, squared ease-out over the second. The shape is what reads as a
// natural blink; the interval between blinks is what the archetype tunes.
const (
	blinkCloseMs = 75.0
	blinkTotalMs = 150.0
)

const (
	emotionValley      = 0.1
	visemeValley       = 0.1
	headSmoothing      = 0.12
	gazeSmoothing      = 0.18
	defaultTransition  = 0.08
	defaultVisemeBlend = 0.35
	glanceRadius       = 0.35
)

// FrameOutput is what the external renderer consumes once per tick.
type FrameOutput struct {
	Weights          BlendshapeVector
	Head             mgl32.Vec3 // pitch, yaw, roll in radians
	Gaze             mgl32.Vec2
	IsBlinking       bool
	State            State
	Emotion          Emotion
	EmotionIntensity float32
}

// runtimeState is every mutable animation variable. It is owned exclusively
// by the Core and advanced only inside Tick; there is no ambient global.
type runtimeState struct {
	now float64 // internal clock, ms, advanced only by Tick

	state      State
	stateStart float64

	currentEmotion  Emotion
	targetEmotion   Emotion
	intensity       float32
	targetIntensity float32
	transitionSpeed float32
	energy          float32

	curve         []EmotionCurvePoint
	curveStart    float64
	curveDuration float64

	archetype Archetype

	micro       []MicroExpression
	nextMicroAt float64

	breathingRate  float32
	breathingDepth float32
	breathingPhase float32
	breathingMult  float32

	eyeContactEnabled  bool
	eyeContactStrength float32
	lookingAtCamera    bool
	nextGazeToggleAt   float64
	glanceX, glanceY   float32

	gazeX, gazeY             float32
	targetGazeX, targetGazeY float32

	headPitch, headYaw, headRoll       float32
	targetPitch, targetYaw, targetRoll float32

	gesturePitch, gestureYaw, gestureRoll float32

	currentViseme      VisemeShape
	targetViseme       VisemeShape
	visemeWeight       float32
	targetVisemeWeight float32
	visemeBlendSpeed   float32

	audioAmplitude float32

	blinking    bool
	blinkStart  float64
	nextBlinkAt float64

	noiseOffsets [8]float32

	out FrameOutput
}

// Core owns one persona session's RuntimeState and advances it once per
// render frame. Setters may be called from the playback goroutine; Tick runs
// on the host loop. One mutex covers the single-writer state.
type Core struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger zerolog.Logger
	st     runtimeState
}

// Option configures a Core at construction.
type Option func(*Core)

// WithRand injects the RNG used for blink, gaze, and micro-expression
// scheduling. Tests pass a fixed seed for deterministic timers.
func WithRand(rng *rand.Rand) Option {
	return func(c *Core) { c.rng = rng }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Core) { c.logger = logger.With().Str("component", "anim").Logger() }
}

func WithArchetype(a Archetype) Option {
	return func(c *Core) { c.applyArchetype(a) }
}

// NewCore creates a session core in the idle state with a neutral face.
func NewCore(opts ...Option) *Core {
	c := &Core{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: zerolog.Nop(),
	}
	c.st = runtimeState{
		state:              StateIdle,
		currentEmotion:     EmotionNeutral,
		targetEmotion:      EmotionNeutral,
		transitionSpeed:    defaultTransition,
		energy:             1.0,
		breathingMult:      1.0,
		eyeContactEnabled:  true,
		eyeContactStrength: 0.7,
		lookingAtCamera:    true,
		currentViseme:      VisemeSil,
		targetViseme:       VisemeSil,
		visemeBlendSpeed:   defaultVisemeBlend,
	}
	c.applyArchetype(ArchetypeWarm)
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.st.noiseOffsets {
		c.st.noiseOffsets[i] = c.rng.Float32() * 100
	}
	c.st.nextBlinkAt = c.randRangeMs(c.st.archetype.BlinkIntervalMin, c.st.archetype.BlinkIntervalMax)
	c.st.nextGazeToggleAt = c.randMs(5000, 10000)
	c.scheduleMicro()
	return c
}

func (c *Core) applyArchetype(a Archetype) {
	c.st.archetype = a
	c.st.breathingRate = a.BreathingRate
	c.st.breathingDepth = a.BreathingDepth
}

// SetState records the new conversational phase. No transition guards exist;
// behavioral differentiation happens inside Tick.
func (c *Core) SetState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.st.state = state
	c.st.stateStart = c.st.now

	switch state {
	case StateSpeaking:
		c.st.breathingMult = 1.3
	case StateThinking:
		c.st.breathingMult = 0.8
	case StateListening:
		c.st.breathingMult = 1.1
	default:
		c.st.breathingMult = 1.0
	}

	if state == StateListening || state == StateSpeaking {
		c.st.lookingAtCamera = true
		c.st.nextGazeToggleAt = c.st.now + c.randMs(5000, 10000)
	}

	c.logger.Debug().Str("state", string(state)).Msg("avatar state changed")
}

// SetEmotion sets the target affect. Blending toward it happens in Tick;
// the displayed emotion only switches at the low-intensity valley.
func (c *Core) SetEmotion(emotion Emotion, intensity, transitionSpeed float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !IsKnownEmotion(emotion) {
		emotion = EmotionNeutral
	}
	c.st.targetEmotion = emotion
	c.st.targetIntensity = clamp(intensity, 0, 1)
	if transitionSpeed > 0 {
		c.st.transitionSpeed = clamp(transitionSpeed, 0, 1)
	} else {
		c.st.transitionSpeed = defaultTransition
	}
}

// SetEmotionCurve installs a new curve starting now, replacing any curve in
// progress. Duration bounds the playback window; a curve has no effect once
// expired. Empty or malformed input clears the curve rather than erroring.
func (c *Core) SetEmotionCurve(points []EmotionCurvePoint, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(points) == 0 || duration <= 0 {
		c.st.curve = nil
		return
	}
	c.st.curve = points
	c.st.curveStart = c.st.now
	c.st.curveDuration = float64(duration.Milliseconds())
}

// SetArchetype swaps the idle-behavior profile and immediately adopts its
// breathing parameters.
func (c *Core) SetArchetype(a Archetype) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyArchetype(a)
}

// SetViseme sets the lip-sync target. The displayed viseme switches once the
// blend weight passes through its valley, same pattern as emotion.
func (c *Core) SetViseme(shape VisemeShape, weight float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !IsKnownViseme(shape) {
		return
	}
	c.st.targetViseme = shape
	c.st.targetVisemeWeight = clamp(weight, 0, 1)
}

// SetAudioAmplitude feeds the playback monitor's amplitude reading.
func (c *Core) SetAudioAmplitude(amplitude float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.audioAmplitude = clamp(amplitude, 0, 1)
}

// SetGesture layers a one-shot head motion that decays over subsequent ticks.
func (c *Core) SetGesture(g Gesture) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch g {
	case GestureNod:
		c.st.gesturePitch = 0.12
	case GestureTilt:
		c.st.gestureRoll = 0.1
	case GestureShake:
		c.st.gestureYaw = 0.12
	}
}

// SetEyeContact toggles camera-lock behavior and its pull strength.
func (c *Core) SetEyeContact(enabled bool, strength float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.eyeContactEnabled = enabled
	c.st.eyeContactStrength = clamp(strength, 0, 1)
}

// TriggerMicroExpression appends one flicker with randomized intensity and
// duration scaled per kind.
func (c *Core) TriggerMicroExpression(kind MicroExpressionKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggerMicroLocked(kind)
}

func (c *Core) triggerMicroLocked(kind MicroExpressionKind) {
	scale, ok := microDurationScale[kind]
	if !ok {
		return
	}
	c.st.micro = append(c.st.micro, MicroExpression{
		Kind:      kind,
		Intensity: 0.10 + c.rng.Float32()*0.20,
		Duration:  (200 + c.rng.Float64()*400) * float64(scale),
		StartedAt: c.st.now,
	})
}

// Output returns the frame computed by the most recent Tick.
func (c *Core) Output() FrameOutput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.out
}

// State returns the current conversational phase.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.state
}

// Tick advances the runtime state by deltaMs and recomputes the output
// vector. It allocates nothing on the steady path and must complete well
// inside the frame budget.
func (c *Core) Tick(deltaMs float64) FrameOutput {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deltaMs < 0 {
		deltaMs = 0
	}
	c.st.now += deltaMs

	c.resolveEmotion()
	breath := c.advanceBreathing(deltaMs)
	c.updateEyeContact()
	blink := c.updateBlink()
	c.updateMicroExpressions()
	c.updateHeadPose(breath)
	c.updateVisemeBlend()
	c.compose(blink, breath)

	return c.st.out
}

// resolveEmotion runs the curve if one is active, otherwise blends intensity
// toward the target. The displayed emotion switches only in the valley below
// emotionValley so the face never snaps between poses.
func (c *Core) resolveEmotion() {
	st := &c.st

	if len(st.curve) > 0 {
		elapsed := st.now - st.curveStart
		if elapsed <= st.curveDuration {
			t := float32(elapsed / st.curveDuration)
			emotion, intensity, ok := evalCurve(st.curve, t)
			if ok {
				st.currentEmotion = emotion
				st.targetEmotion = emotion
				st.intensity = intensity
				st.targetIntensity = intensity
				return
			}
		}
		st.curve = nil
	}

	if st.currentEmotion != st.targetEmotion {
		// Descend into the valley first, then adopt the new emotion.
		st.intensity += (0 - st.intensity) * st.transitionSpeed
		if st.intensity < emotionValley {
			st.currentEmotion = st.targetEmotion
		}
		return
	}
	st.intensity += (st.targetIntensity - st.intensity) * st.transitionSpeed
}

// advanceBreathing wraps the phase in [0,1) and returns the scaled breath
// value for this frame.
func (c *Core) advanceBreathing(deltaMs float64) float32 {
	st := &c.st

	rate := st.breathingRate * st.breathingMult
	if rate <= 0 {
		return 0
	}
	periodMs := 1000.0 / float64(rate)
	st.breathingPhase += float32(deltaMs / periodMs)
	st.breathingPhase -= float32(math.Floor(float64(st.breathingPhase)))

	breath := float32(math.Sin(2 * math.Pi * float64(st.breathingPhase)))
	return breath * st.breathingDepth * st.archetype.MovementScale
}

// updateEyeContact toggles between camera lock (5-10s dwell) and short
// glances away (0.8-2s) on independent randomized timers, then smooths the
// gaze toward its target. Micro-saccade jitter rides on top unconditionally.
func (c *Core) updateEyeContact() {
	st := &c.st

	if st.eyeContactEnabled && st.now >= st.nextGazeToggleAt {
		if st.lookingAtCamera {
			st.lookingAtCamera = false
			angle := c.rng.Float64() * 2 * math.Pi
			radius := glanceRadius * (0.4 + c.rng.Float32()*0.6)
			st.glanceX = float32(math.Cos(angle)) * radius
			st.glanceY = float32(math.Sin(angle)) * radius * 0.6
			st.nextGazeToggleAt = st.now + c.randMs(800, 2000)
		} else {
			st.lookingAtCamera = true
			st.nextGazeToggleAt = st.now + c.randMs(5000, 10000)
		}
	}

	if st.lookingAtCamera || !st.eyeContactEnabled {
		st.targetGazeX, st.targetGazeY = 0, 0
	} else {
		st.targetGazeX, st.targetGazeY = st.glanceX, st.glanceY
	}

	if st.state == StateListening || st.state == StateSpeaking {
		st.targetGazeX *= 1 - st.eyeContactStrength
		st.targetGazeY *= 1 - st.eyeContactStrength
	}

	t := float32(st.now) / 1000
	jitterX := multiSine(t*3.1, st.noiseOffsets[6]) * 0.02
	jitterY := multiSine(t*2.7, st.noiseOffsets[7]) * 0.012

	st.gazeX += (st.targetGazeX + jitterX - st.gazeX) * gazeSmoothing
	st.gazeY += (st.targetGazeY + jitterY - st.gazeY) * gazeSmoothing
}

// updateBlink runs the fixed 150ms blink curve and schedules the next blink
// on the archetype interval, modulated by the displayed emotion.
func (c *Core) updateBlink() float32 {
	st := &c.st

	if !st.blinking && st.now >= st.nextBlinkAt {
		st.blinking = true
		st.blinkStart = st.now
	}
	if !st.blinking {
		return 0
	}

	elapsed := float32(st.now - st.blinkStart)
	switch {
	case elapsed < blinkCloseMs:
		p := elapsed / blinkCloseMs
		return p * p
	case elapsed < blinkTotalMs:
		p := (blinkTotalMs - elapsed) / (blinkTotalMs - blinkCloseMs)
		return p * p
	default:
		st.blinking = false
		interval := c.randRangeMs(st.archetype.BlinkIntervalMin, st.archetype.BlinkIntervalMax)
		switch st.currentEmotion {
		case EmotionSurprised:
			interval *= 0.6
		case EmotionFocused:
			interval *= 1.5
		}
		st.nextBlinkAt = st.now + interval
		return 0
	}
}

// updateMicroExpressions prunes expired flickers and, while idle, lets the
// archetype rate schedule a spontaneous one.
func (c *Core) updateMicroExpressions() {
	st := &c.st

	alive := st.micro[:0]
	for i := range st.micro {
		if !st.micro[i].expired(st.now) {
			alive = append(alive, st.micro[i])
		}
	}
	st.micro = alive

	if st.state == StateIdle && st.archetype.MicroExpressionRate > 0 && st.now >= st.nextMicroAt {
		if c.rng.Float32() > st.archetype.Stillness {
			kind := microKinds[c.rng.Intn(len(microKinds))]
			c.triggerMicroLocked(kind)
		}
		c.scheduleMicro()
	}
}

func (c *Core) scheduleMicro() {
	rate := c.st.archetype.MicroExpressionRate
	if rate <= 0 {
		c.st.nextMicroAt = math.Inf(1)
		return
	}
	base := 60000 / float64(rate)
	c.st.nextMicroAt = c.st.now + base*(0.5+c.rng.Float64())
}

// updateHeadPose computes per-state pose targets from breathing, noise, and
// audio energy, then exponentially approaches them.
func (c *Core) updateHeadPose(breath float32) {
	st := &c.st

	t := float32(st.now) / 1000
	scale := st.archetype.MovementScale
	noisePitch := multiSine(t*0.35, st.noiseOffsets[0]) * 0.02 * scale
	noiseYaw := multiSine(t*0.3, st.noiseOffsets[1]) * 0.03 * scale
	noiseRoll := multiSine(t*0.25, st.noiseOffsets[2]) * 0.015 * scale

	switch st.state {
	case StateSpeaking:
		st.targetPitch = breath*0.5 + noisePitch + st.audioAmplitude*0.06
		st.targetYaw = noiseYaw * (1 + st.audioAmplitude)
		st.targetRoll = noiseRoll
	case StateThinking:
		st.targetPitch = 0.05 + breath*0.5 + noisePitch
		st.targetYaw = -0.08 + noiseYaw
		st.targetRoll = 0.03 + noiseRoll
	case StateListening:
		st.targetPitch = breath*0.5 + noisePitch*0.5
		st.targetYaw = noiseYaw * 0.5
		st.targetRoll = 0.04 + noiseRoll*0.5
	default:
		st.targetPitch = breath + noisePitch
		st.targetYaw = noiseYaw
		st.targetRoll = noiseRoll
	}

	st.targetPitch += st.gesturePitch
	st.targetYaw += st.gestureYaw
	st.targetRoll += st.gestureRoll
	st.gesturePitch *= 0.92
	st.gestureYaw *= 0.92
	st.gestureRoll *= 0.92

	st.headPitch += (st.targetPitch - st.headPitch) * headSmoothing
	st.headYaw += (st.targetYaw - st.headYaw) * headSmoothing
	st.headRoll += (st.targetRoll - st.headRoll) * headSmoothing
}

// updateVisemeBlend eases the weight toward its target; the displayed shape
// switches only below the valley so mouth poses cross-fade through closed.
func (c *Core) updateVisemeBlend() {
	st := &c.st

	target := st.targetVisemeWeight
	if st.currentViseme != st.targetViseme {
		target = 0
	}
	st.visemeWeight += (target - st.visemeWeight) * st.visemeBlendSpeed
	if st.currentViseme != st.targetViseme && st.visemeWeight < visemeValley {
		st.currentViseme = st.targetViseme
	}
}

// compose rebuilds the output vector from zero in fixed layer order: blink,
// gaze, emotion overlay, speech mouth (max-combine), micro-expressions
// (additive), then a defensive clamp.
func (c *Core) compose(blink, breath float32) {
	st := &c.st
	out := &st.out.Weights
	out.Reset()

	out.Set(EyeBlinkLeft, blink)
	out.Set(EyeBlinkRight, blink)

	if blink == 0 {
		if st.gazeX > 0 {
			out.Set(EyeLookOutLeft, st.gazeX*0.8)
			out.Set(EyeLookInRight, st.gazeX*0.8)
		} else {
			out.Set(EyeLookOutRight, -st.gazeX*0.8)
			out.Set(EyeLookInLeft, -st.gazeX*0.8)
		}
		if st.gazeY > 0 {
			out.Set(EyeLookUpLeft, st.gazeY*0.6)
			out.Set(EyeLookUpRight, st.gazeY*0.6)
		} else {
			out.Set(EyeLookDownLeft, -st.gazeY*0.6)
			out.Set(EyeLookDownRight, -st.gazeY*0.6)
		}
	}

	energy := st.energy
	if st.state == StateSpeaking {
		energy = clamp(st.energy*(0.85+st.audioAmplitude*0.3), 0, 1)
	}
	target := EmotionTarget(st.currentEmotion)
	out.Overlay(&target, st.intensity*energy)

	if st.state == StateSpeaking {
		out.Raise(JawOpen, st.audioAmplitude*0.7)
		for _, m := range visemeShapes[st.currentViseme] {
			out.Raise(m.idx, m.weight*st.visemeWeight)
		}
	}

	out.AddTo(NoseSneerLeft, breath*0.2)
	out.AddTo(NoseSneerRight, breath*0.2)

	for i := range st.micro {
		st.micro[i].apply(st.now, out)
	}

	out.ClampAll()

	st.out.Head = mgl32.Vec3{st.headPitch, st.headYaw, st.headRoll}
	st.out.Gaze = mgl32.Vec2{st.gazeX, st.gazeY}
	st.out.IsBlinking = st.blinking
	st.out.State = st.state
	st.out.Emotion = st.currentEmotion
	st.out.EmotionIntensity = st.intensity
}

func (c *Core) randMs(min, max float64) float64 {
	return min + c.rng.Float64()*(max-min)
}

func (c *Core) randRangeMs(min, max time.Duration) float64 {
	lo := float64(min.Milliseconds())
	hi := float64(max.Milliseconds())
	if hi <= lo {
		return lo
	}
	return lo + c.rng.Float64()*(hi-lo)
}
