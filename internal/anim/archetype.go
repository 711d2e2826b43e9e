package anim

import "time"

// Archetype is a persona-level idle-behavior profile. Profiles are fixed,
// selected once per persona, and read-only at runtime.
type Archetype struct {
	Name string

	BlinkIntervalMin time.Duration
	BlinkIntervalMax time.Duration

	GazeShiftMin time.Duration
	GazeShiftMax time.Duration

	// MicroExpressionRate is the expected number of spontaneous
	// micro-expressions per minute while idle.
	MicroExpressionRate float32

	// BreathingRate is cycles per second; BreathingDepth scales the sine.
	BreathingRate  float32
	BreathingDepth float32

	// MovementScale scales all ambient motion; Stillness in [0,1] damps
	// spontaneous behavior (1 = statue).
	MovementScale float32
	Stillness     float32
}

var (
	ArchetypeWarm = Archetype{
		Name:                "warm",
		BlinkIntervalMin:    2 * time.Second,
		BlinkIntervalMax:    5 * time.Second,
		GazeShiftMin:        3 * time.Second,
		GazeShiftMax:        7 * time.Second,
		MicroExpressionRate: 6,
		BreathingRate:       0.22,
		BreathingDepth:      0.035,
		MovementScale:       1.0,
		Stillness:           0.2,
	}

	ArchetypeEnergetic = Archetype{
		Name:                "energetic",
		BlinkIntervalMin:    1500 * time.Millisecond,
		BlinkIntervalMax:    4 * time.Second,
		GazeShiftMin:        2 * time.Second,
		GazeShiftMax:        5 * time.Second,
		MicroExpressionRate: 10,
		BreathingRate:       0.3,
		BreathingDepth:      0.045,
		MovementScale:       1.3,
		Stillness:           0.05,
	}

	ArchetypeCalm = Archetype{
		Name:                "calm",
		BlinkIntervalMin:    3 * time.Second,
		BlinkIntervalMax:    7 * time.Second,
		GazeShiftMin:        5 * time.Second,
		GazeShiftMax:        10 * time.Second,
		MicroExpressionRate: 3,
		BreathingRate:       0.16,
		BreathingDepth:      0.03,
		MovementScale:       0.7,
		Stillness:           0.5,
	}

	ArchetypeProfessional = Archetype{
		Name:                "professional",
		BlinkIntervalMin:    2500 * time.Millisecond,
		BlinkIntervalMax:    6 * time.Second,
		GazeShiftMin:        4 * time.Second,
		GazeShiftMax:        8 * time.Second,
		MicroExpressionRate: 4,
		BreathingRate:       0.2,
		BreathingDepth:      0.03,
		MovementScale:       0.85,
		Stillness:           0.35,
	}
)

var archetypes = map[string]Archetype{
	ArchetypeWarm.Name:         ArchetypeWarm,
	ArchetypeEnergetic.Name:    ArchetypeEnergetic,
	ArchetypeCalm.Name:         ArchetypeCalm,
	ArchetypeProfessional.Name: ArchetypeProfessional,
}

// ArchetypeByName resolves a profile by name, falling back to warm.
func ArchetypeByName(name string) Archetype {
	if a, ok := archetypes[name]; ok {
		return a
	}
	return ArchetypeWarm
}
