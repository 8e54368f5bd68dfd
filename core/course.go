package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/signalsfoundry/ringflight/model"
)

// ErrInvalidCourse is returned when a course definition cannot be flown.
var ErrInvalidCourse = errors.New("invalid course")

// Course is an ordered list of checkpoint centres. Checkpoints are flown in
// order and lie at strictly decreasing Z.
type Course struct {
	Name      string
	Positions []model.Vec3
}

// DefaultCourse returns the ten-ring course winding over the default terrain.
func DefaultCourse() Course {
	return Course{
		Name: "default",
		Positions: []model.Vec3{
			{X: 0, Y: 20, Z: -30},
			{X: 8, Y: 40, Z: -65},
			{X: -5, Y: 50, Z: -100},
			{X: 12, Y: 55, Z: -140},
			{X: -8, Y: 70, Z: -180},
			{X: 3, Y: 60, Z: -225},
			{X: -10, Y: 70, Z: -270},
			{X: 6, Y: 80, Z: -320},
			{X: -3, Y: 60, Z: -370},
			{X: 0, Y: 70, Z: -425},
		},
	}
}

// Len returns the number of checkpoints.
func (c Course) Len() int { return len(c.Positions) }

// Validate checks that the course has checkpoints in flying order.
func (c Course) Validate() error {
	if len(c.Positions) == 0 {
		return fmt.Errorf("%w: no checkpoints", ErrInvalidCourse)
	}
	for i := 1; i < len(c.Positions); i++ {
		if c.Positions[i].Z >= c.Positions[i-1].Z {
			return fmt.Errorf("%w: checkpoint %d at z=%v is not ahead of checkpoint %d at z=%v",
				ErrInvalidCourse, i, c.Positions[i].Z, i-1, c.Positions[i-1].Z)
		}
	}
	return nil
}

// internal JSON shapes, unexported so the file format can evolve freely.
type courseJSON struct {
	Name        string         `json:"name"`
	Checkpoints []positionJSON `json:"checkpoints"`
}

type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LoadCourse reads a JSON course definition from r and validates it.
func LoadCourse(r io.Reader) (Course, error) {
	var payload courseJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return Course{}, fmt.Errorf("LoadCourse: decode failed: %w", err)
	}

	c := Course{
		Name:      payload.Name,
		Positions: make([]model.Vec3, 0, len(payload.Checkpoints)),
	}
	for _, p := range payload.Checkpoints {
		c.Positions = append(c.Positions, model.Vec3{X: p.X, Y: p.Y, Z: p.Z})
	}
	if err := c.Validate(); err != nil {
		return Course{}, fmt.Errorf("LoadCourse: %w", err)
	}
	return c, nil
}
