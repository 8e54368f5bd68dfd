package model

// Checkpoint is one ring of a course. Index follows creation order, which
// is also the order the rings must be flown.
//
// Cosmetic state (glow, colour) is owned by the renderer and is not kept here.
type Checkpoint struct {
	Index    int
	Position Vec3
	Passed   bool
}

// CrossingKind distinguishes the two crossing outcomes.
type CrossingKind int

const (
	CrossingPassed CrossingKind = iota
	CrossingMissed
)

func (k CrossingKind) String() string {
	switch k {
	case CrossingPassed:
		return "passed"
	case CrossingMissed:
		return "missed"
	default:
		return "unknown"
	}
}

// CrossingEvent reports that a checkpoint was passed or missed during a tick.
// TotalPassed is only meaningful for CrossingPassed.
type CrossingEvent struct {
	Kind        CrossingKind
	Index       int
	TotalPassed int
}
