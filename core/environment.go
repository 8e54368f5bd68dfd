package core

import "github.com/signalsfoundry/ringflight/model"

const (
	timeOfDayRate = 0.02

	dayTimeOfDay        = 1.0
	nightTimeOfDay      = 0.1
	stormTimeOfDay      = 0.2
	afterStormTimeOfDay = 0.8

	stormEffectSpeed = 1.5
)

// Environment is the background's time of day, eased a little towards its
// target every frame, plus the storm effect signal.
type Environment struct {
	current     float64
	target      float64
	effectSpeed float64
	storm       bool
}

// NewEnvironment starts in full daylight.
func NewEnvironment() *Environment {
	e := &Environment{}
	e.Reset()
	return e
}

// Reset snaps back to daylight with no effects.
func (e *Environment) Reset() {
	e.current = dayTimeOfDay
	e.target = dayTimeOfDay
	e.effectSpeed = 0
	e.storm = false
}

// Step eases the time of day by one frame.
func (e *Environment) Step() {
	e.current += (e.target - e.current) * timeOfDayRate
}

// SetPreset selects a time-of-day preset.
func (e *Environment) SetPreset(p model.EnvironmentPreset) {
	switch p {
	case model.EnvironmentDay:
		e.target, e.effectSpeed, e.storm = dayTimeOfDay, 0, false
	case model.EnvironmentNight:
		e.target, e.effectSpeed, e.storm = nightTimeOfDay, 0, false
	case model.EnvironmentStorm:
		e.target, e.effectSpeed, e.storm = stormTimeOfDay, stormEffectSpeed, true
	}
}

// SetStorm follows the checkpoint penalty state. Leaving a storm settles on
// late afternoon rather than full daylight.
func (e *Environment) SetStorm(active bool) {
	if active {
		e.target, e.effectSpeed, e.storm = stormTimeOfDay, stormEffectSpeed, true
		return
	}
	e.target, e.effectSpeed, e.storm = afterStormTimeOfDay, 0, false
}

// State returns the values the renderer consumes.
func (e *Environment) State() model.EnvironmentState {
	return model.EnvironmentState{
		TimeOfDay:   e.current,
		EffectSpeed: e.effectSpeed,
		Storm:       e.storm,
	}
}

// Target returns the time of day being eased towards.
func (e *Environment) Target() float64 { return e.target }
