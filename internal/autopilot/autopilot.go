// Package autopilot produces control input that flies the aircraft through
// the next expected checkpoint. The headless runner uses it for demo runs
// and the session tests use it to fly whole courses.
package autopilot

import (
	"math"

	"github.com/signalsfoundry/ringflight/model"
)

// Pilot holds the steering thresholds.
type Pilot struct {
	// HeadingDeadband is the heading error, in radians, tolerated before turning.
	HeadingDeadband float64
	// AltitudeDeadband is the altitude error tolerated before pitching.
	AltitudeDeadband float64
	// Lead is how many frames of vertical velocity to anticipate.
	Lead float64
}

// New returns a pilot with thresholds that complete the default course.
func New() Pilot {
	return Pilot{HeadingDeadband: 0.025, AltitudeDeadband: 0.5, Lead: 8}
}

// Steer returns the input that turns towards target and holds its altitude.
func (p Pilot) Steer(s model.AircraftState, target model.Vec3) model.ControlInput {
	var in model.ControlInput

	want := math.Atan2(target.X-s.Position.X, -(target.Z - s.Position.Z))
	switch errH := wrapAngle(want - s.Heading); {
	case errH > p.HeadingDeadband:
		in.TurnRight = true
	case errH < -p.HeadingDeadband:
		in.TurnLeft = true
	}

	switch errY := target.Y - (s.Position.Y + s.VerticalVelocity*p.Lead); {
	case errY > p.AltitudeDeadband:
		in.PitchUp = true
	case errY < -p.AltitudeDeadband:
		in.PitchDown = true
	}
	return in
}

// Next steers towards the frame's next expected checkpoint. With no
// checkpoint left, or none shown, it returns no input.
func (p Pilot) Next(f model.Frame) model.ControlInput {
	if !f.AircraftPresent || !f.CheckpointsShown || f.NextExpected >= len(f.Checkpoints) {
		return model.ControlInput{}
	}
	return p.Steer(f.Aircraft, f.Checkpoints[f.NextExpected].Position)
}

// wrapAngle maps a into [-pi, pi).
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
