// Package voice plans utterances: it turns persona voice parameters, target
// emotion, and raw text into synthesis parameters, a cleaned utterance, an
// emotion curve, and a duration estimate.
package voice

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/normanking/personaface/internal/anim"
)

// Pacing adjusts the speech-rate assumption behind duration estimates.
type Pacing string

const (
	PacingSlow   Pacing = "slow"
	PacingNormal Pacing = "normal"
	PacingFast   Pacing = "fast"
)

const baseWordsPerMinute = 150.0

// VoiceConfig is the persona's base synthesis profile.
type VoiceConfig struct {
	VoiceID    string
	ModelID    string
	Stability  float64
	Similarity float64
}

// SynthesisParams is the final voice_settings payload for one utterance.
type SynthesisParams struct {
	Stability    float64
	Similarity   float64
	Style        float64
	SpeakerBoost bool
}

// Plan is everything the playback layer needs to perform one utterance.
type Plan struct {
	UtteranceID       string
	Params            SynthesisParams
	CleanedText       string
	Curve             []anim.EmotionCurvePoint
	EstimatedDuration time.Duration
	Emotion           anim.Emotion
	Intensity         float32
}

// emotionVoice carries the per-emotion synthesis base values. Final
// stability/similarity blend these with the persona's base weighted by
// intensity; style scales directly with intensity.
type emotionVoice struct {
	stability  float64
	similarity float64
	style      float64
}

var emotionVoiceTable = map[anim.Emotion]emotionVoice{
	anim.EmotionNeutral:   {0.50, 0.75, 0.00},
	anim.EmotionHappy:     {0.35, 0.80, 0.60},
	anim.EmotionSad:       {0.60, 0.70, 0.30},
	anim.EmotionAngry:     {0.30, 0.75, 0.70},
	anim.EmotionSurprised: {0.25, 0.80, 0.65},
	anim.EmotionCurious:   {0.45, 0.78, 0.40},
	anim.EmotionFocused:   {0.65, 0.75, 0.15},
	anim.EmotionPlayful:   {0.30, 0.80, 0.65},
	anim.EmotionConcerned: {0.55, 0.72, 0.30},
	anim.EmotionConfident: {0.50, 0.80, 0.45},
}

var (
	directiveRe     = regexp.MustCompile(`\[(?:EMOTION|ACTION|PAUSE|TONE|GESTURE):[^\]]*\]`)
	asteriskStageRe = regexp.MustCompile(`\*[^*]*\*`)
	underscoreRe    = regexp.MustCompile(`_[^_]*_`)
	shortParenRe    = regexp.MustCompile(`\([^)]{0,50}\)`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// CleanText strips directive markers, inline stage directions, and short
// parenthetical asides from LLM output before it reaches synthesis.
func CleanText(text string) string {
	text = directiveRe.ReplaceAllString(text, " ")
	text = asteriskStageRe.ReplaceAllString(text, " ")
	text = underscoreRe.ReplaceAllString(text, " ")
	text = shortParenRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// EstimateDuration predicts utterance length from word count at 150 wpm,
// stretched or compressed by pacing.
func EstimateDuration(text string, pacing Pacing) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	mult := 1.0
	switch pacing {
	case PacingSlow:
		mult = 1.3
	case PacingFast:
		mult = 0.75
	}
	ms := float64(words) / baseWordsPerMinute * 60000 * mult
	return time.Duration(ms) * time.Millisecond
}

// BuildParams blends the persona base values with the emotion table entry,
// weighted by intensity.
func BuildParams(cfg VoiceConfig, emotion anim.Emotion, intensity float32) SynthesisParams {
	ev, ok := emotionVoiceTable[emotion]
	if !ok {
		ev = emotionVoiceTable[anim.EmotionNeutral]
	}
	i := float64(intensity)
	if i < 0 {
		i = 0
	} else if i > 1 {
		i = 1
	}
	return SynthesisParams{
		Stability:    cfg.Stability*(1-i) + ev.stability*i,
		Similarity:   cfg.Similarity*(1-i) + ev.similarity*i,
		Style:        ev.style * i,
		SpeakerBoost: true,
	}
}

// BuildCurve produces the fixed utterance arc: fast attack, long sustain,
// soft release, settling into low-intensity neutral. The shape is a design
// constant scaled by the requested intensity.
func BuildCurve(emotion anim.Emotion, intensity float32) []anim.EmotionCurvePoint {
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}
	return []anim.EmotionCurvePoint{
		{Time: 0.0, Emotion: emotion, Intensity: 0.70 * intensity},
		{Time: 0.1, Emotion: emotion, Intensity: 1.00 * intensity},
		{Time: 0.3, Emotion: emotion, Intensity: 1.00 * intensity},
		{Time: 0.7, Emotion: emotion, Intensity: 0.95 * intensity},
		{Time: 0.9, Emotion: emotion, Intensity: 0.70 * intensity},
		{Time: 1.0, Emotion: emotion, Intensity: 0.40 * intensity},
		{Time: 1.0, Emotion: anim.EmotionNeutral, Intensity: 0.20},
	}
}

// Direct plans one utterance. When no emotion label is supplied the text is
// scanned for affect cues. Pure: no I/O, no shared state.
func Direct(cfg VoiceConfig, text string, emotion anim.Emotion, intensity float32, pacing Pacing) Plan {
	if emotion == "" || !anim.IsKnownEmotion(emotion) {
		emotion, intensity = DetectEmotion(text)
	}
	if intensity <= 0 {
		intensity = 0.7
	}

	cleaned := CleanText(text)
	return Plan{
		UtteranceID:       uuid.NewString(),
		Params:            BuildParams(cfg, emotion, intensity),
		CleanedText:       cleaned,
		Curve:             BuildCurve(emotion, intensity),
		EstimatedDuration: EstimateDuration(cleaned, pacing),
		Emotion:           emotion,
		Intensity:         intensity,
	}
}
