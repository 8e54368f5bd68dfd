package hud

import (
	"math"

	"github.com/signalsfoundry/ringflight/model"
)

const (
	nearDistance   = 10.0
	targetDistance = 6.0
	behindMargin   = 15.0
	glowDecay      = 0.95
)

// RingState is the colour state of one checkpoint ring.
type RingState int

const (
	RingIdle RingState = iota
	RingNear
	RingTarget
	RingBehind
	RingPassed
)

func (s RingState) String() string {
	switch s {
	case RingIdle:
		return "idle"
	case RingNear:
		return "near"
	case RingTarget:
		return "target"
	case RingBehind:
		return "behind"
	case RingPassed:
		return "passed"
	default:
		return "unknown"
	}
}

// RingLook is what the renderer applies to one ring this frame.
type RingLook struct {
	State   RingState
	Color   string
	Opacity float64
	Glow    float64
}

// RingCosmetics owns the per-ring glow the renderer animates. It derives
// everything from the simulation's passed flags and the aircraft position;
// nothing is written back.
type RingCosmetics struct {
	glow   []float64
	passed []bool
}

// NewRingCosmetics returns an empty cosmetics tracker.
func NewRingCosmetics() *RingCosmetics { return &RingCosmetics{} }

// Update advances the glow animation by one frame and returns one look per
// checkpoint, or nil while checkpoints are hidden.
func (c *RingCosmetics) Update(f model.Frame) []RingLook {
	if !f.CheckpointsShown {
		return nil
	}
	if len(c.glow) != len(f.Checkpoints) {
		c.glow = make([]float64, len(f.Checkpoints))
		c.passed = make([]bool, len(f.Checkpoints))
	}

	looks := make([]RingLook, len(f.Checkpoints))
	for i, cp := range f.Checkpoints {
		switch {
		case cp.Passed && !c.passed[i]:
			c.glow[i] = 1
		case !cp.Passed && c.passed[i]:
			// New run.
			c.glow[i] = 0
		}
		c.passed[i] = cp.Passed

		looks[i] = look(cp, c.glow[i], f)
		c.glow[i] *= glowDecay
	}
	return looks
}

// CountStates tallies looks by ring state.
func CountStates(looks []RingLook) map[RingState]int {
	counts := make(map[RingState]int, len(looks))
	for _, l := range looks {
		counts[l.State]++
	}
	return counts
}

func look(cp model.Checkpoint, glow float64, f model.Frame) RingLook {
	if cp.Passed {
		return RingLook{State: RingPassed, Color: "#00ff00", Opacity: 0.8 + glow*0.2, Glow: glow}
	}
	if !f.AircraftPresent {
		return RingLook{State: RingIdle, Color: "#00ffff", Opacity: 0.9}
	}

	pos := f.Aircraft.Position
	behind := pos.Z < cp.Position.Z-behindMargin
	d := pos.DistanceTo(cp.Position)

	l := RingLook{State: RingIdle, Color: "#00ffff", Opacity: 0.9}
	if behind {
		l.State, l.Color = RingBehind, "#ff0000"
	}
	if d < nearDistance {
		l.Opacity = math.Min(1, 0.9+(1-d/nearDistance)*0.4)
		if !behind {
			l.State = RingNear
		}
	}
	if d < targetDistance {
		l.Color = "#00ffaa"
		if behind {
			l.Color = "#ff4444"
		} else {
			l.State = RingTarget
		}
	}
	return l
}
