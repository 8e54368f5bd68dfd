package core

import (
	"math"

	"github.com/signalsfoundry/ringflight/model"
	"golang.org/x/exp/constraints"
)

var (
	axisX = model.Vec3{X: 1}
	axisY = model.Vec3{Y: 1}
	axisZ = model.Vec3{Z: 1}
)

// Clamp limits v to the closed interval [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// QuatFromAxisAngle returns the rotation of angle radians about a unit axis.
func QuatFromAxisAngle(axis model.Vec3, angle float64) model.Quat {
	s, c := math.Sincos(angle / 2)
	return model.Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: c}
}

// Orientation composes the aircraft attitude as yaw, then pitch, then roll,
// each about the aircraft's own (already rotated) axes. Yaw turns about +Y
// by -heading so that a positive heading turns towards +X.
func Orientation(heading, pitch, roll float64) model.Quat {
	yaw := QuatFromAxisAngle(axisY, -heading)
	p := QuatFromAxisAngle(axisX, pitch)
	r := QuatFromAxisAngle(axisZ, roll)
	return yaw.Mul(p).Mul(r)
}

// Forward returns the horizontal unit direction of travel for a heading.
func Forward(heading float64) (x, z float64) {
	return math.Sin(heading), -math.Cos(heading)
}
