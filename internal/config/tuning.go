package config

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/signalsfoundry/ringflight/core"
)

// Tuning overrides the simulation constants. Fields absent from a tuning
// file keep their defaults.
type Tuning struct {
	Flight core.FlightParams `json:"flight"`
	Track  core.TrackParams  `json:"track"`
	Run    core.RunParams    `json:"run"`
}

// DefaultTuning returns the canonical constants.
func DefaultTuning() Tuning {
	return Tuning{
		Flight: core.DefaultFlightParams(),
		Track:  core.DefaultTrackParams(),
		Run:    core.DefaultRunParams(),
	}
}

// LoadTuning decodes a JSON tuning document over the defaults.
func LoadTuning(r io.Reader) (Tuning, error) {
	t := DefaultTuning()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return Tuning{}, fmt.Errorf("LoadTuning: decode failed: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("LoadTuning: %w", err)
	}
	return t, nil
}

// LoadTuningFile reads a tuning file. An empty path yields the defaults.
func LoadTuningFile(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Tuning{}, err
	}
	defer f.Close()
	return LoadTuning(f)
}

// Validate rejects constants the simulation cannot run with.
func (t Tuning) Validate() error {
	switch {
	case t.Flight.BaseSpeed <= 0:
		return fmt.Errorf("%w: flight.base_speed must be positive", ErrInvalidConfig)
	case t.Flight.MaxAltitude <= t.Flight.GroundClearance:
		return fmt.Errorf("%w: flight.max_altitude must exceed ground_clearance", ErrInvalidConfig)
	case t.Flight.VerticalDamping < 0 || t.Flight.VerticalDamping > 1:
		return fmt.Errorf("%w: flight.vertical_damping must be within [0, 1]", ErrInvalidConfig)
	case t.Track.CaptureRadius <= 0:
		return fmt.Errorf("%w: track.capture_radius must be positive", ErrInvalidConfig)
	case t.Run.FrameStep <= 0:
		return fmt.Errorf("%w: run.frame_step must be positive", ErrInvalidConfig)
	case !wholeRate(t.Run.FrameStep):
		return fmt.Errorf("%w: run.frame_step %v is not 1/N of a second", ErrInvalidConfig, t.Run.FrameStep)
	case t.Run.MinSpeed <= 0 || t.Run.MaxSpeed < t.Run.MinSpeed:
		return fmt.Errorf("%w: run speed range [%v, %v]", ErrInvalidConfig, t.Run.MinSpeed, t.Run.MaxSpeed)
	case t.Run.FinishDelay < 0 || t.Run.GraceDuration < 0:
		return fmt.Errorf("%w: run delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// wholeRate reports whether step is the period of a whole frame rate, so the
// frame clock and per-tick elapsed time stay in lockstep.
func wholeRate(step float64) bool {
	fps := 1 / step
	return fps >= 1 && math.Abs(fps-math.Round(fps)) < 1e-6
}
