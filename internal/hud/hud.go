// Package hud turns session frames into the text and colour cues the
// heads-up display shows. It reads frames only and never feeds back into
// the simulation.
package hud

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/ringflight/model"
)

// Band is a warning level for a HUD readout.
type Band int

const (
	BandNormal Band = iota
	BandElevated
	BandHigh
	BandCritical
)

// Color returns the CSS colour the readout uses at this level.
func (b Band) Color() string {
	switch b {
	case BandElevated:
		return "#ffff00"
	case BandHigh:
		return "#ff6600"
	case BandCritical:
		return "#ff3300"
	default:
		return "#ffffff"
	}
}

func (b Band) String() string {
	switch b {
	case BandNormal:
		return "normal"
	case BandElevated:
		return "elevated"
	case BandHigh:
		return "high"
	case BandCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// FormatElapsed renders seconds as m:ss.
func FormatElapsed(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatSpeed renders a speed multiplier with one decimal.
func FormatSpeed(mult float64) string {
	return fmt.Sprintf("%.1fx", mult)
}

// GraceText is the countdown shown once the final checkpoint has been
// reached (passed) or given up on (missed).
func GraceText(remaining float64, lastPassed bool) string {
	remaining = math.Max(0, remaining)
	if lastPassed {
		return fmt.Sprintf("Finishing in: %.1fs", remaining)
	}
	return fmt.Sprintf("Last chance: %.1fs", remaining)
}

// SpeedBand classifies a speed multiplier.
func SpeedBand(mult float64) Band {
	switch {
	case mult > 5:
		return BandHigh
	case mult > 2:
		return BandElevated
	default:
		return BandNormal
	}
}

// AltitudeBand classifies whole-unit altitude against the ceiling.
func AltitudeBand(altitude, maxAltitude float64) Band {
	if maxAltitude <= 0 {
		return BandNormal
	}
	ratio := math.Max(0, math.Floor(altitude)) / maxAltitude
	switch {
	case ratio > 0.9:
		return BandCritical
	case ratio > 0.7:
		return BandHigh
	case ratio > 0.4:
		return BandElevated
	default:
		return BandNormal
	}
}

const freeFlightHelp = "1=Day | 2=Night | 3=Storm | +=Faster | -=Slower"

// Status is the full set of HUD readouts for one frame.
type Status struct {
	Score         string
	Timer         string
	TimerColor    string
	Speed         string
	SpeedBand     Band
	Altitude      string
	AltitudeBand  Band
	ResultVisible bool
	Result        string
}

// Compose derives the HUD readouts from a frame.
func Compose(f model.Frame) Status {
	st := Status{
		Speed:        FormatSpeed(f.SpeedMultiplier),
		SpeedBand:    SpeedBand(f.SpeedMultiplier),
		Altitude:     fmt.Sprintf("%d", int(math.Max(0, math.Floor(f.Altitude)))),
		AltitudeBand: AltitudeBand(f.Altitude, f.MaxAltitude),
		TimerColor:   BandNormal.Color(),
	}

	switch {
	case f.Mode == model.ModeFreeFlight:
		st.Score = "Free Flight"
		st.Timer = freeFlightHelp
		st.TimerColor = "#ffaa00"
	case f.LastCheckpointReached && f.Phase.Active():
		st.Score = fmt.Sprintf("%d/%d", f.PassedCount, len(f.Checkpoints))
		st.Timer = GraceText(f.GraceRemaining, f.LastCheckpointPassed)
		st.TimerColor = "#ff6600"
		if f.LastCheckpointPassed {
			st.TimerColor = "#00ff00"
		}
	default:
		st.Score = fmt.Sprintf("%d/%d", f.PassedCount, len(f.Checkpoints))
		st.Timer = FormatElapsed(f.Elapsed)
	}

	if f.Phase == model.PhaseEnded && f.Outcome != nil {
		st.ResultVisible = true
		verdict := "Out of time"
		if f.Outcome.Success {
			verdict = "Course complete"
		}
		st.Result = fmt.Sprintf("%s: %d/%d rings in %s", verdict,
			f.Outcome.PassedCount, len(f.Checkpoints), FormatElapsed(f.Outcome.Elapsed))
	}
	return st
}
