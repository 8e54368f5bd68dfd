package core

import (
	"math"

	"github.com/signalsfoundry/ringflight/model"
)

// CameraRig describes where the chase cameras sit relative to the aircraft.
// The scene camera frames the aircraft; the background camera drives the
// ray-marched landscape and sits closer.
type CameraRig struct {
	Distance  float64
	Height    float64
	LookAhead float64

	BackgroundDistance  float64
	BackgroundHeight    float64
	BackgroundLookAhead float64
}

// DefaultCameraRig returns the canonical chase camera offsets.
func DefaultCameraRig() CameraRig {
	return CameraRig{
		Distance:            5,
		Height:              2,
		LookAhead:           3,
		BackgroundDistance:  3,
		BackgroundHeight:    1,
		BackgroundLookAhead: 2,
	}
}

// Poses returns the scene and background camera poses for an aircraft state.
// Only heading is followed; bank and pitch do not move the cameras.
func (r CameraRig) Poses(s model.AircraftState) (scene, background model.CameraPose) {
	sin, cos := math.Sincos(s.Heading)
	pos := s.Position

	scene = model.CameraPose{
		Position: pos.Add(model.Vec3{X: -sin * r.Distance, Y: r.Height, Z: cos * r.Distance}),
		Target:   pos.Add(model.Vec3{X: sin * r.LookAhead, Z: -cos * r.LookAhead}),
	}
	background = model.CameraPose{
		Position: pos.Add(model.Vec3{X: -sin * r.BackgroundDistance, Y: r.BackgroundHeight, Z: cos * r.BackgroundDistance}),
		Target:   pos.Add(model.Vec3{X: sin * r.BackgroundLookAhead, Z: -cos * r.BackgroundLookAhead}),
	}
	return scene, background
}

// FollowCamera keeps the last computed chase poses.
type FollowCamera struct {
	rig        CameraRig
	scene      model.CameraPose
	background model.CameraPose
}

// NewFollowCamera starts both cameras behind and above the origin.
func NewFollowCamera(rig CameraRig) *FollowCamera {
	start := model.CameraPose{
		Position: model.Vec3{Y: 2, Z: 5},
		Target:   model.Vec3{Y: 2},
	}
	return &FollowCamera{rig: rig, scene: start, background: start}
}

// Update recomputes the poses from the flight model. It keeps the previous
// poses while no aircraft is present.
func (c *FollowCamera) Update(m *FlightModel) {
	if m == nil || !m.Present() {
		return
	}
	c.scene, c.background = c.rig.Poses(m.State())
}

// Scene returns the scene camera pose.
func (c *FollowCamera) Scene() model.CameraPose { return c.scene }

// Background returns the landscape camera pose.
func (c *FollowCamera) Background() model.CameraPose { return c.background }
