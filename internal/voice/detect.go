package voice

import (
	"regexp"
	"strings"

	"github.com/normanking/personaface/internal/anim"
)

// emotionCue binds one regex over the lowercased text to an emotion and its
// fixed default intensity. The slice order is the matching order and the
// first hit wins; patterns overlap on purpose.
type emotionCue struct {
	re        *regexp.Regexp
	emotion   anim.Emotion
	intensity float32
}

var emotionCues = []emotionCue{
	{regexp.MustCompile(`thrilled|overjoyed|fantastic|amazing|wonderful|delighted`), anim.EmotionHappy, 0.75},
	{regexp.MustCompile(`\bhappy\b|\bglad\b|\bexcited\b|\blove\b|\byay\b|great news`), anim.EmotionHappy, 0.7},
	{regexp.MustCompile(`heartbroken|devastated|\bterrible\b|\bawful\b`), anim.EmotionSad, 0.65},
	{regexp.MustCompile(`\bsad\b|\bsorry\b|unfortunat|\bregret\b|miss you`), anim.EmotionSad, 0.6},
	{regexp.MustCompile(`i wonder|\bcurious\b|\bintriguing\b|tell me more`), anim.EmotionCurious, 0.6},
	{regexp.MustCompile(`\bhow\b.*\?|\bwhy\b.*\?|\bwhat if\b`), anim.EmotionCurious, 0.5},
	{regexp.MustCompile(`\bwow\b|\bwhoa\b|can't believe|unbelievable|no way|\?!|!\?`), anim.EmotionSurprised, 0.7},
	{regexp.MustCompile(`!{2,}`), anim.EmotionSurprised, 0.6},
	{regexp.MustCompile(`\bhaha\b|\bhehe\b|\blol\b|just kidding|just teasing`), anim.EmotionPlayful, 0.65},
	{regexp.MustCompile(`;\)|\bwink\b`), anim.EmotionPlayful, 0.6},
	{regexp.MustCompile(`\bworried\b|\bconcerned\b|be careful|\bwarning\b|\bcareful\b`), anim.EmotionConcerned, 0.6},
	{regexp.MustCompile(`\buneasy\b|not sure about`), anim.EmotionConcerned, 0.5},
	{regexp.MustCompile(`\babsolutely\b|\bdefinitely\b|\bcertainly\b|without a doubt|i'm sure`), anim.EmotionConfident, 0.65},
	{regexp.MustCompile(`\bconfident\b|\btrust me\b`), anim.EmotionConfident, 0.6},
	{regexp.MustCompile(`\bangry\b|\bfurious\b|outrageous|unacceptable`), anim.EmotionAngry, 0.6},
}

// DetectEmotion infers an affect label from text when the caller supplies
// none. Falls back to low-intensity neutral.
func DetectEmotion(text string) (anim.Emotion, float32) {
	lower := strings.ToLower(text)
	for _, cue := range emotionCues {
		if cue.re.MatchString(lower) {
			return cue.emotion, cue.intensity
		}
	}
	return anim.EmotionNeutral, 0.4
}
