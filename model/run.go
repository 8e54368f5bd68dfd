package model

// Mode selects between the scored course and free flight.
type Mode int

const (
	ModeTimed Mode = iota
	ModeFreeFlight
)

func (m Mode) String() string {
	switch m {
	case ModeTimed:
		return "timed"
	case ModeFreeFlight:
		return "free_flight"
	default:
		return "unknown"
	}
}

// Phase is the lifecycle phase of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinishing
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseFinishing:
		return "finishing"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Active reports whether the simulation advances in this phase.
func (p Phase) Active() bool {
	return p == PhaseRunning || p == PhaseFinishing
}

// Outcome is the result of a concluded timed run.
type Outcome struct {
	Success     bool
	PassedCount int
	Elapsed     float64
}

// EnvironmentPreset is the time-of-day mode the background renders.
type EnvironmentPreset int

const (
	EnvironmentDay EnvironmentPreset = iota
	EnvironmentNight
	EnvironmentStorm
)

func (e EnvironmentPreset) String() string {
	switch e {
	case EnvironmentDay:
		return "day"
	case EnvironmentNight:
		return "night"
	case EnvironmentStorm:
		return "storm"
	default:
		return "unknown"
	}
}

// EnvironmentState is what the background renderer consumes each frame.
type EnvironmentState struct {
	TimeOfDay   float64
	EffectSpeed float64
	Storm       bool
}
