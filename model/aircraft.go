package model

import "math"

// Vec3 is a world-space position or offset. +Y is up; travelling "forward"
// along a course means decreasing Z.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Norm returns the Euclidean length of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// HorizontalNorm returns the length of the vector projected on the XZ plane.
func (v Vec3) HorizontalNorm() float64 {
	return math.Sqrt(v.X*v.X + v.Z*v.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Norm()
}

// Quat is a unit quaternion (X, Y, Z vector part; W scalar part).
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat is the "no rotation" orientation.
var IdentityQuat = Quat{W: 1}

// AircraftState is the kinematic state of the player aircraft.
//
// Heading is unbounded; it wraps implicitly through sin/cos. BankingVelocity
// is the smoothed internal banking value, not the visible roll angle.
type AircraftState struct {
	Position         Vec3
	VerticalVelocity float64
	Heading          float64
	BankingVelocity  float64

	// Derived per tick for the renderer.
	Roll        float64
	Pitch       float64
	Orientation Quat
}

// ControlInput is a snapshot of the logical actions held during a tick.
type ControlInput struct {
	TurnLeft  bool `msgpack:"l"`
	TurnRight bool `msgpack:"r"`
	PitchUp   bool `msgpack:"u"`
	PitchDown bool `msgpack:"d"`
	Boost     bool `msgpack:"b"`
	Brake     bool `msgpack:"k"`
}

// CameraPose is a camera position plus the point it looks at.
type CameraPose struct {
	Position Vec3
	Target   Vec3
}

// Mul returns the Hamilton product q*o, i.e. o applied first, then q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.X*o.W + q.W*o.X + q.Y*o.Z - q.Z*o.Y,
		Y: q.Y*o.W + q.W*o.Y + q.Z*o.X - q.X*o.Z,
		Z: q.Z*o.W + q.W*o.Z + q.X*o.Y - q.Y*o.X,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Rotate applies the rotation q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// t = 2 * cross(q.xyz, v); v' = v + w*t + cross(q.xyz, t)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)
	return Vec3{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}
