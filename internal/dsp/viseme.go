package dsp

import "github.com/normanking/personaface/internal/anim"

// silenceFloor is the total band energy below which the mouth is closed.
const silenceFloor = 0.05

// ClassifyViseme maps one band-energy reading to a mouth shape and blend
// weight. It is a total function: every input yields exactly one result.
//
// The cascade is a tuned heuristic, not a phoneme recognizer. Thresholds
// overlap on purpose and the first match wins, so branch order must not be
// rearranged.
func ClassifyViseme(bands BandEnergies) (anim.VisemeShape, float32) {
	total := bands.Total()
	if total < silenceFloor {
		return anim.VisemeSil, 0
	}

	weight := total * 2
	if weight > 1 {
		weight = 1
	}
	w := float32(weight)

	bass := bands.Bass / total
	lowMid := bands.LowMid / total
	mid := bands.Mid / total
	highMid := bands.HighMid / total
	high := bands.High / total

	switch {
	case high > 0.25 && highMid > 0.2:
		// Sibilants: s, z, sh.
		return anim.VisemeSS, w

	case highMid > 0.3 && mid < 0.2:
		// Fricatives: f, v.
		return anim.VisemeFF, w

	case bass > 0.4 && mid < 0.15:
		// Bilabials: p, b, m.
		return anim.VisemePP, w

	case mid > 0.3 && lowMid > 0.2:
		// Open vowels: ah.
		return anim.VisemeAA, w

	case mid > 0.25 && highMid > 0.15:
		// Front vowels, split by low-mid presence.
		if lowMid > 0.2 {
			return anim.VisemeE, w
		}
		return anim.VisemeI, w

	case lowMid > 0.25 && bass > 0.2:
		// Back vowels, split by bass dominance.
		if bass > 0.3 {
			return anim.VisemeU, w
		}
		return anim.VisemeO, w

	default:
		// Indistinct voiced energy: generic slight-open mouth.
		return anim.VisemeDD, w * 0.7
	}
}
