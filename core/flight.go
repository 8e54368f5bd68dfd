package core

import (
	"math"

	"github.com/signalsfoundry/ringflight/model"
	"github.com/signalsfoundry/ringflight/terrain"
)

// FlightModel owns the aircraft's kinematic state and integrates it once
// per reference frame. Until Spawn is called there is no aircraft and
// Update is a no-op.
type FlightModel struct {
	params  FlightParams
	state   model.AircraftState
	present bool
}

// NewFlightModel constructs a flight model with the given parameters. The
// zero FlightParams selects DefaultFlightParams.
func NewFlightModel(params FlightParams) *FlightModel {
	if params == (FlightParams{}) {
		params = DefaultFlightParams()
	}
	return &FlightModel{
		params: params,
		state:  model.AircraftState{Orientation: model.IdentityQuat},
	}
}

// Spawn marks the aircraft as present.
func (m *FlightModel) Spawn() { m.present = true }

// Present reports whether the aircraft exists yet.
func (m *FlightModel) Present() bool { return m.present }

// State returns a copy of the current aircraft state.
func (m *FlightModel) State() model.AircraftState { return m.state }

// Params returns the flight constants in use.
func (m *FlightModel) Params() FlightParams { return m.params }

// Reset puts the aircraft back at the origin with heading 0 and no motion.
// Presence is unaffected.
func (m *FlightModel) Reset() {
	m.state = model.AircraftState{Orientation: model.IdentityQuat}
}

// Update advances the aircraft by one frame. A nil field uses the analytic
// terrain. When boost and brake are both held they compound, boost first.
func (m *FlightModel) Update(in model.ControlInput, field terrain.HeightField, speedMultiplier float64) model.AircraftState {
	if !m.present {
		return m.state
	}
	if field == nil {
		field = terrain.Field{}
	}
	p := &m.params
	s := &m.state

	if in.TurnLeft {
		s.Heading -= p.TurnRate
	}
	if in.TurnRight {
		s.Heading += p.TurnRate
	}

	fx, fz := Forward(s.Heading)
	speed := p.BaseSpeed * speedMultiplier
	if in.Boost {
		speed *= p.BoostFactor
	}
	if in.Brake {
		speed *= p.BrakeFactor
	}
	s.Position.X += fx * speed
	s.Position.Z += fz * speed

	if in.PitchUp {
		s.VerticalVelocity += p.ClimbAccel
	}
	if in.PitchDown {
		s.VerticalVelocity -= p.ClimbAccel
	}
	s.Position.Y += s.VerticalVelocity
	s.VerticalVelocity *= p.VerticalDamping

	if s.Position.Y > p.MaxAltitude {
		s.Position.Y = p.MaxAltitude
		s.VerticalVelocity = math.Min(0, s.VerticalVelocity)
		if s.VerticalVelocity >= 0 {
			s.VerticalVelocity = -p.CeilingNudge
		}
	}

	minGround := field.Height(s.Position.X, s.Position.Z) + p.GroundClearance
	if s.Position.Y < minGround {
		s.Position.Y = minGround
		s.VerticalVelocity = math.Max(0, s.VerticalVelocity)
		if s.VerticalVelocity <= 0 {
			s.VerticalVelocity = p.GroundNudge
		}
	}

	m.updateAttitude(in)
	return m.state
}

// updateAttitude eases the bank towards the turn direction and derives the
// nose pitch from input and climb rate.
func (m *FlightModel) updateAttitude(in model.ControlInput) {
	p := &m.params
	s := &m.state

	target := 0.0
	if in.TurnLeft {
		target = p.BankTarget
	} else if in.TurnRight {
		target = -p.BankTarget
	}
	diff := target - s.BankingVelocity*p.BankGain
	s.BankingVelocity += diff * p.BankResponse
	s.BankingVelocity *= p.BankDamping
	s.Roll = s.BankingVelocity * p.BankGain

	pitch := 0.0
	if in.PitchUp {
		pitch = p.PitchInput
	} else if in.PitchDown {
		pitch = -p.PitchInput
	}
	pitch += s.VerticalVelocity * p.PitchFromClimb
	s.Pitch = pitch

	s.Orientation = Orientation(s.Heading, s.Pitch, s.Roll)
}
