package hud

import (
	"strings"
	"testing"

	"github.com/signalsfoundry/ringflight/model"
)

func TestFormatElapsed(t *testing.T) {
	cases := map[float64]string{
		0:      "0:00",
		5.99:   "0:05",
		59.999: "0:59",
		60:     "1:00",
		125.4:  "2:05",
		-3:     "0:00",
	}
	for in, want := range cases {
		if got := FormatElapsed(in); got != want {
			t.Fatalf("FormatElapsed(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatSpeedAndGraceText(t *testing.T) {
	if got := FormatSpeed(1.3); got != "1.3x" {
		t.Fatalf("FormatSpeed = %q", got)
	}
	if got := GraceText(2.96, true); got != "Finishing in: 3.0s" {
		t.Fatalf("GraceText passed = %q", got)
	}
	if got := GraceText(1.24, false); got != "Last chance: 1.2s" {
		t.Fatalf("GraceText missed = %q", got)
	}
	if got := GraceText(-1, false); got != "Last chance: 0.0s" {
		t.Fatalf("GraceText negative = %q", got)
	}
}

func TestBands(t *testing.T) {
	speed := []struct {
		mult float64
		want Band
	}{
		{1, BandNormal}, {2, BandNormal}, {2.1, BandElevated}, {5, BandElevated}, {5.5, BandHigh},
	}
	for _, tc := range speed {
		if got := SpeedBand(tc.mult); got != tc.want {
			t.Fatalf("SpeedBand(%v) = %v, want %v", tc.mult, got, tc.want)
		}
	}

	alt := []struct {
		alt  float64
		want Band
	}{
		{-4, BandNormal}, {60, BandNormal}, {61, BandElevated}, {106, BandHigh}, {136, BandCritical}, {150, BandCritical},
	}
	for _, tc := range alt {
		if got := AltitudeBand(tc.alt, 150); got != tc.want {
			t.Fatalf("AltitudeBand(%v) = %v, want %v", tc.alt, got, tc.want)
		}
	}
	if BandCritical.Color() != "#ff3300" || BandNormal.Color() != "#ffffff" {
		t.Fatalf("unexpected band colours")
	}
}

func timedFrame() model.Frame {
	cps := make([]model.Checkpoint, 10)
	for i := range cps {
		cps[i] = model.Checkpoint{Index: i, Passed: i < 4}
	}
	return model.Frame{
		Phase:            model.PhaseRunning,
		Mode:             model.ModeTimed,
		Checkpoints:      cps,
		CheckpointsShown: true,
		PassedCount:      4,
		SpeedMultiplier:  2.2,
		Elapsed:          71.5,
		Altitude:         12.7,
		MaxAltitude:      150,
	}
}

func TestComposeTimed(t *testing.T) {
	st := Compose(timedFrame())
	if st.Score != "4/10" {
		t.Fatalf("Score = %q", st.Score)
	}
	if st.Timer != "1:11" {
		t.Fatalf("Timer = %q", st.Timer)
	}
	if st.Speed != "2.2x" || st.SpeedBand != BandElevated {
		t.Fatalf("Speed = %q band %v", st.Speed, st.SpeedBand)
	}
	if st.Altitude != "12" {
		t.Fatalf("Altitude = %q", st.Altitude)
	}
	if st.ResultVisible {
		t.Fatalf("result shown while running")
	}
}

func TestComposeGrace(t *testing.T) {
	f := timedFrame()
	f.LastCheckpointReached = true
	f.GraceRemaining = 1.5
	if st := Compose(f); st.Timer != "Last chance: 1.5s" {
		t.Fatalf("Timer = %q", st.Timer)
	}
	f.LastCheckpointPassed = true
	f.Phase = model.PhaseFinishing
	if st := Compose(f); st.Timer != "Finishing in: 1.5s" {
		t.Fatalf("Timer = %q", st.Timer)
	}
}

func TestComposeFreeFlight(t *testing.T) {
	f := timedFrame()
	f.Mode = model.ModeFreeFlight
	st := Compose(f)
	if st.Score != "Free Flight" {
		t.Fatalf("Score = %q", st.Score)
	}
	if !strings.Contains(st.Timer, "3=Storm") {
		t.Fatalf("Timer = %q", st.Timer)
	}
}

func TestComposeEnded(t *testing.T) {
	f := timedFrame()
	f.Phase = model.PhaseEnded
	f.Outcome = &model.Outcome{Success: true, PassedCount: 10, Elapsed: 83}
	st := Compose(f)
	if !st.ResultVisible {
		t.Fatalf("result hidden after end")
	}
	if st.Result != "Course complete: 10/10 rings in 1:23" {
		t.Fatalf("Result = %q", st.Result)
	}
}
