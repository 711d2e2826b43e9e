package anim

// VisemeShape is a discrete visual mouth-shape class (Oculus viseme set:
// silence plus 14 phoneme groups).
type VisemeShape string

const (
	VisemeSil VisemeShape = "sil"
	VisemePP  VisemeShape = "PP"
	VisemeFF  VisemeShape = "FF"
	VisemeTH  VisemeShape = "TH"
	VisemeDD  VisemeShape = "DD"
	VisemeKK  VisemeShape = "kk"
	VisemeCH  VisemeShape = "CH"
	VisemeSS  VisemeShape = "SS"
	VisemeNN  VisemeShape = "nn"
	VisemeRR  VisemeShape = "RR"
	VisemeAA  VisemeShape = "aa"
	VisemeE   VisemeShape = "E"
	VisemeI   VisemeShape = "I"
	VisemeO   VisemeShape = "O"
	VisemeU   VisemeShape = "U"
)

type visemeMapping struct {
	idx    BlendshapeIndex
	weight float32
}

// visemeShapes maps each viseme to the mouth channels it drives at full weight.
var visemeShapes = map[VisemeShape][]visemeMapping{
	VisemeSil: {},
	VisemePP:  {{MouthClose, 0.8}, {MouthPucker, 0.3}},
	VisemeFF:  {{MouthFunnel, 0.5}, {MouthLowerDownLeft, 0.2}, {MouthLowerDownRight, 0.2}},
	VisemeTH:  {{MouthFunnel, 0.3}, {TongueOut, 0.4}},
	VisemeDD:  {{JawOpen, 0.2}, {MouthUpperUpLeft, 0.2}, {MouthUpperUpRight, 0.2}},
	VisemeKK:  {{JawOpen, 0.25}, {MouthStretchLeft, 0.2}, {MouthStretchRight, 0.2}},
	VisemeCH:  {{MouthFunnel, 0.4}, {MouthPucker, 0.3}},
	VisemeSS:  {{MouthStretchLeft, 0.3}, {MouthStretchRight, 0.3}},
	VisemeNN:  {{JawOpen, 0.15}, {MouthClose, 0.3}},
	VisemeRR:  {{MouthPucker, 0.4}, {MouthFunnel, 0.2}},
	VisemeAA:  {{JawOpen, 0.6}, {MouthStretchLeft, 0.2}, {MouthStretchRight, 0.2}},
	VisemeE:   {{JawOpen, 0.3}, {MouthSmileLeft, 0.3}, {MouthSmileRight, 0.3}},
	VisemeI:   {{JawOpen, 0.2}, {MouthSmileLeft, 0.4}, {MouthSmileRight, 0.4}},
	VisemeO:   {{JawOpen, 0.4}, {MouthFunnel, 0.5}, {MouthPucker, 0.3}},
	VisemeU:   {{JawOpen, 0.25}, {MouthPucker, 0.6}, {MouthFunnel, 0.4}},
}

// IsKnownViseme reports whether s is in the viseme set.
func IsKnownViseme(s VisemeShape) bool {
	_, ok := visemeShapes[s]
	return ok
}
