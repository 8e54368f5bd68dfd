package core

// FlightParams are the per-frame constants of the flight model. All rates
// are per reference frame (1/60 s), not per second.
type FlightParams struct {
	TurnRate        float64 `json:"turn_rate"`
	BaseSpeed       float64 `json:"base_speed"`
	BoostFactor     float64 `json:"boost_factor"`
	BrakeFactor     float64 `json:"brake_factor"`
	ClimbAccel      float64 `json:"climb_accel"`
	VerticalDamping float64 `json:"vertical_damping"`
	MaxAltitude     float64 `json:"max_altitude"`
	CeilingNudge    float64 `json:"ceiling_nudge"`
	GroundClearance float64 `json:"ground_clearance"`
	GroundNudge     float64 `json:"ground_nudge"`
	BankTarget      float64 `json:"bank_target"`
	BankGain        float64 `json:"bank_gain"`
	BankResponse    float64 `json:"bank_response"`
	BankDamping     float64 `json:"bank_damping"`
	PitchInput      float64 `json:"pitch_input"`
	PitchFromClimb  float64 `json:"pitch_from_climb"`
}

// DefaultFlightParams returns the canonical arcade handling.
func DefaultFlightParams() FlightParams {
	return FlightParams{
		TurnRate:        0.05,
		BaseSpeed:       0.15,
		BoostFactor:     1.5,
		BrakeFactor:     0.3,
		ClimbAccel:      0.02,
		VerticalDamping: 0.95,
		MaxAltitude:     150,
		CeilingNudge:    0.01,
		GroundClearance: 0.5,
		GroundNudge:     0.01,
		BankTarget:      0.3,
		BankGain:        15,
		BankResponse:    0.008,
		BankDamping:     0.9,
		PitchInput:      0.15,
		PitchFromClimb:  2.0,
	}
}

// TrackParams control checkpoint pass and miss detection.
type TrackParams struct {
	CaptureRadius   float64 `json:"capture_radius"`
	MaxHeightOffset float64 `json:"max_height_offset"`
	MaxHorizontal   float64 `json:"max_horizontal"`
	MissMargin      float64 `json:"miss_margin"`
}

// DefaultTrackParams returns the canonical, deliberately generous, ring tolerances.
func DefaultTrackParams() TrackParams {
	return TrackParams{
		CaptureRadius:   6.0,
		MaxHeightOffset: 4.0,
		MaxHorizontal:   6.0,
		MissMargin:      15.0,
	}
}

// RunParams control session timing and the speed curve.
type RunParams struct {
	// FrameStep is the fixed simulated time per tick, in seconds.
	FrameStep float64 `json:"frame_step"`
	// FinishDelay is the celebratory countdown after the last checkpoint, in seconds.
	FinishDelay float64 `json:"finish_delay"`
	// GraceDuration is the window after the final checkpoint is reached or missed, in seconds.
	GraceDuration float64 `json:"grace_duration"`

	MinSpeed           float64 `json:"min_speed"`
	MaxSpeed           float64 `json:"max_speed"`
	SpeedPerCheckpoint float64 `json:"speed_per_checkpoint"`
	FreeFlightSpeed    float64 `json:"free_flight_speed"`
	ThrottleStep       float64 `json:"throttle_step"`
}

// DefaultRunParams returns the canonical session rules.
func DefaultRunParams() RunParams {
	return RunParams{
		FrameStep:          1.0 / 60.0,
		FinishDelay:        3.0,
		GraceDuration:      3.0,
		MinSpeed:           1.0,
		MaxSpeed:           10.0,
		SpeedPerCheckpoint: 0.3,
		FreeFlightSpeed:    2.0,
		ThrottleStep:       0.5,
	}
}

// Normalized fills unusable fields from DefaultRunParams. A zero value yields
// the defaults outright; otherwise non-positive rates and speeds, an inverted
// speed range and negative delays are replaced field by field.
func (p RunParams) Normalized() RunParams {
	def := DefaultRunParams()
	if p == (RunParams{}) {
		return def
	}
	if p.FrameStep <= 0 {
		p.FrameStep = def.FrameStep
	}
	if p.FinishDelay < 0 {
		p.FinishDelay = def.FinishDelay
	}
	if p.GraceDuration < 0 {
		p.GraceDuration = def.GraceDuration
	}
	if p.MinSpeed <= 0 || p.MaxSpeed < p.MinSpeed {
		p.MinSpeed, p.MaxSpeed = def.MinSpeed, def.MaxSpeed
	}
	if p.SpeedPerCheckpoint < 0 {
		p.SpeedPerCheckpoint = def.SpeedPerCheckpoint
	}
	if p.FreeFlightSpeed <= 0 {
		p.FreeFlightSpeed = def.FreeFlightSpeed
	}
	if p.ThrottleStep <= 0 {
		p.ThrottleStep = def.ThrottleStep
	}
	return p
}

// SpeedForPassed derives the timed-mode speed multiplier from the number of
// checkpoints passed.
func (p RunParams) SpeedForPassed(passed int) float64 {
	return p.ClampSpeed(p.MinSpeed + float64(passed)*p.SpeedPerCheckpoint)
}

// ClampSpeed limits a multiplier to [MinSpeed, MaxSpeed].
func (p RunParams) ClampSpeed(v float64) float64 {
	return Clamp(v, p.MinSpeed, p.MaxSpeed)
}
