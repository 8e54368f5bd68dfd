package session

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/signalsfoundry/ringflight/core"
	"github.com/signalsfoundry/ringflight/internal/autopilot"
	"github.com/signalsfoundry/ringflight/internal/logging"
	"github.com/signalsfoundry/ringflight/model"
)

// flatField is level ground at height zero.
type flatField struct{}

func (flatField) Height(x, z float64) float64 { return 0 }

// straightCourse has three rings on the flight line, passed at ticks 1, 22
// and 43 when flying straight from the origin.
func straightCourse() core.Course {
	return core.Course{Name: "straight", Positions: []model.Vec3{
		{Y: 0.5, Z: -5},
		{Y: 0.5, Z: -10},
		{Y: 0.5, Z: -15},
	}}
}

type eventLog struct {
	events []model.Event
}

func (l *eventLog) handle(ev model.Event) { l.events = append(l.events, ev) }

func (l *eventLog) count(t model.EventType) int {
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func newFlatSession(t *testing.T, course core.Course) (*Session, *eventLog) {
	t.Helper()
	s := New(logging.Noop(), WithCourse(course), WithHeightField(flatField{}))
	log := &eventLog{}
	s.Subscribe(log.handle)
	s.AttachAircraft()
	return s, log
}

// crossingOf returns the last checkpoint event of a frame, or nil.
func crossingOf(f model.Frame) *model.CrossingEvent {
	if len(f.Crossings) == 0 {
		return nil
	}
	return &f.Crossings[len(f.Crossings)-1]
}

func tickUntil(t *testing.T, s *Session, in model.ControlInput, max int, cond func(model.Frame) bool) model.Frame {
	t.Helper()
	for i := 0; i < max; i++ {
		f := s.Tick(in)
		if cond(f) {
			return f
		}
	}
	t.Fatalf("condition not met within %d ticks", max)
	return model.Frame{}
}

func TestSession_IdleDoesNotAdvance(t *testing.T) {
	s, _ := newFlatSession(t, straightCourse())
	for i := 0; i < 30; i++ {
		s.Tick(model.ControlInput{Boost: true})
	}
	f := s.Frame()
	if f.Phase != model.PhaseIdle || f.Elapsed != 0 || f.Aircraft.Position != (model.Vec3{}) {
		t.Fatalf("idle session moved: phase=%v elapsed=%v pos=%+v", f.Phase, f.Elapsed, f.Aircraft.Position)
	}
	if f.Tick != 30 {
		t.Fatalf("frame clock = %d, want 30", f.Tick)
	}
}

func TestSession_StartTimed(t *testing.T) {
	s, log := newFlatSession(t, straightCourse())
	s.StartTimed()

	if s.Phase() != model.PhaseRunning || s.Mode() != model.ModeTimed {
		t.Fatalf("phase=%v mode=%v", s.Phase(), s.Mode())
	}
	if s.SpeedMultiplier() != 1 {
		t.Fatalf("speed = %v, want 1", s.SpeedMultiplier())
	}
	if s.RunID() == "" {
		t.Fatalf("run id not assigned")
	}
	if log.count(model.EventPhaseChanged) != 1 || log.count(model.EventAircraftAttached) != 1 {
		t.Fatalf("events = %+v", log.events)
	}
}

func TestSession_BoostFromOrigin(t *testing.T) {
	s := New(logging.Noop())
	s.AttachAircraft()
	s.StartTimed()

	var f model.Frame
	for i := 0; i < 60; i++ {
		f = s.Tick(model.ControlInput{Boost: true})
		if crossingOf(f) != nil {
			t.Fatalf("tick %d: unexpected crossing %+v", i, *crossingOf(f))
		}
	}
	if f.Aircraft.Position.X != 0 || math.Abs(f.Aircraft.Position.Z+13.5) > 1e-9 {
		t.Fatalf("position = %+v, want straight ahead to z=-13.5", f.Aircraft.Position)
	}
	if f.SpeedMultiplier != 1 {
		t.Fatalf("speed = %v, want 1", f.SpeedMultiplier)
	}
	if math.Abs(f.Elapsed-1.0) > 1e-9 {
		t.Fatalf("elapsed = %v, want 1s", f.Elapsed)
	}
}

func TestSession_PassUpdatesSpeed(t *testing.T) {
	s, log := newFlatSession(t, straightCourse())
	s.StartTimed()

	f := s.Tick(model.ControlInput{})
	if c := crossingOf(f); c == nil || c.Kind != model.CrossingPassed || c.Index != 0 || c.TotalPassed != 1 {
		t.Fatalf("crossing = %+v, want passed #0", c)
	}
	if f.NextExpected != 1 || math.Abs(f.SpeedMultiplier-1.3) > 1e-12 {
		t.Fatalf("next=%d speed=%v", f.NextExpected, f.SpeedMultiplier)
	}
	if log.count(model.EventCheckpointPassed) != 1 {
		t.Fatalf("events = %+v", log.events)
	}
}

func TestSession_AllPassedFinishesAfterDelay(t *testing.T) {
	s, log := newFlatSession(t, straightCourse())
	s.StartTimed()

	f := tickUntil(t, s, model.ControlInput{}, 100, func(f model.Frame) bool {
		return f.Phase == model.PhaseFinishing
	})
	if f.Tick != 43 || f.PassedCount != 3 {
		t.Fatalf("finishing at tick %d with %d passed, want tick 43 with 3", f.Tick, f.PassedCount)
	}
	if log.count(model.EventFinishStarted) != 1 || log.count(model.EventGraceStarted) != 1 {
		t.Fatalf("events = %+v", log.events)
	}

	for i := 0; i < 179; i++ {
		if f = s.Tick(model.ControlInput{}); f.Phase != model.PhaseFinishing {
			t.Fatalf("left Finishing early at tick %d (%v)", f.Tick, f.Phase)
		}
	}
	f = s.Tick(model.ControlInput{})
	if f.Phase != model.PhaseEnded || f.Tick != 223 {
		t.Fatalf("tick %d phase %v, want Ended at 223", f.Tick, f.Phase)
	}
	out, ok := s.Outcome()
	if !ok || !out.Success || out.PassedCount != 3 {
		t.Fatalf("outcome = %+v ok=%v", out, ok)
	}
	if log.count(model.EventRunEnded) != 1 {
		t.Fatalf("run ended %d times", log.count(model.EventRunEnded))
	}
	if s.PendingTasks() != 0 {
		t.Fatalf("pending tasks = %d after run end", s.PendingTasks())
	}

	// Ended is frozen.
	before := s.Frame()
	f = s.Tick(model.ControlInput{Boost: true})
	if f.Elapsed != before.Elapsed || f.Aircraft != before.Aircraft {
		t.Fatalf("simulation advanced after the run ended")
	}
}

func TestSession_ResetDuringFinishingCancelsCountdown(t *testing.T) {
	s, log := newFlatSession(t, straightCourse())
	s.StartTimed()
	tickUntil(t, s, model.ControlInput{}, 100, func(f model.Frame) bool {
		return f.Phase == model.PhaseFinishing
	})
	if s.PendingTasks() != 2 {
		t.Fatalf("pending tasks = %d, want finish and grace", s.PendingTasks())
	}

	s.Reset()
	if s.Phase() != model.PhaseRunning {
		t.Fatalf("phase after reset = %v, want Running", s.Phase())
	}
	if s.PendingTasks() != 0 {
		t.Fatalf("pending tasks = %d after reset", s.PendingTasks())
	}
	f := s.Frame()
	if f.PassedCount != 0 || f.Elapsed != 0 || f.SpeedMultiplier != 1 || f.Aircraft.Position != (model.Vec3{}) {
		t.Fatalf("reset left state behind: %+v", f)
	}

	// Circle near the start: ring #0 is passed again but the later rings are
	// out of reach, so nothing may end the run.
	for i := 0; i < 400; i++ {
		if f = s.Tick(model.ControlInput{TurnLeft: true}); f.Phase != model.PhaseRunning {
			t.Fatalf("tick %d: phase %v, stale countdown fired", f.Tick, f.Phase)
		}
	}
	if log.count(model.EventRunEnded) != 0 {
		t.Fatalf("run ended after reset")
	}
}

func TestSession_ResetLogsCancelledCountdowns(t *testing.T) {
	var buf bytes.Buffer
	s := New(logging.NewWithWriter(&buf, logging.Config{Level: "debug"}),
		WithCourse(straightCourse()), WithHeightField(flatField{}))
	s.AttachAircraft()
	s.StartTimed()
	tickUntil(t, s, model.ControlInput{}, 100, func(f model.Frame) bool {
		return f.Phase == model.PhaseFinishing
	})

	s.Reset()
	out := buf.String()
	if !strings.Contains(out, "countdowns cancelled") || !strings.Contains(out, "finish grace") {
		t.Fatalf("reset did not name the cancelled countdowns:\n%s", out)
	}
}

func TestSession_MissedFinalRingEndsAfterGrace(t *testing.T) {
	course := core.Course{Name: "offset", Positions: []model.Vec3{
		{Y: 0.5, Z: -5},
		{X: 50, Y: 0.5, Z: -20},
	}}
	s, log := newFlatSession(t, course)
	s.StartTimed()

	f := tickUntil(t, s, model.ControlInput{}, 300, func(f model.Frame) bool {
		return f.LastCheckpointReached
	})
	if c := crossingOf(f); f.Tick != 181 || c == nil || c.Kind != model.CrossingMissed || c.Index != 1 {
		t.Fatalf("tick %d crossing %+v, want missed #1 at 181", f.Tick, c)
	}
	if f.LastCheckpointPassed || f.Environment.Storm {
		t.Fatalf("final miss: passed=%v storm=%v", f.LastCheckpointPassed, f.Environment.Storm)
	}
	if f.GraceRemaining != 3 {
		t.Fatalf("grace remaining = %v, want 3", f.GraceRemaining)
	}

	f = s.Tick(model.ControlInput{})
	if math.Abs(f.GraceRemaining-(3-1.0/60)) > 1e-9 {
		t.Fatalf("grace remaining = %v", f.GraceRemaining)
	}

	f = tickUntil(t, s, model.ControlInput{}, 300, func(f model.Frame) bool {
		return f.Phase == model.PhaseEnded
	})
	if f.Tick != 361 {
		t.Fatalf("ended at tick %d, want 361", f.Tick)
	}
	out, _ := s.Outcome()
	if out.Success || out.PassedCount != 1 {
		t.Fatalf("outcome = %+v, want failure with 1 passed", out)
	}
	if log.count(model.EventGraceStarted) != 1 || log.count(model.EventFinishStarted) != 0 {
		t.Fatalf("events = %+v", log.events)
	}
}

func TestSession_PassedFinalRingWithMissesEndsInFailure(t *testing.T) {
	course := core.Course{Name: "skipped", Positions: []model.Vec3{
		{X: 50, Y: 0.5, Z: -5},
		{Y: 0.5, Z: -30},
	}}
	s, log := newFlatSession(t, course)
	s.StartTimed()

	f := tickUntil(t, s, model.ControlInput{}, 400, func(f model.Frame) bool {
		return f.LastCheckpointReached
	})
	if f.Tick != 162 || !f.LastCheckpointPassed || f.PassedCount != 1 {
		t.Fatalf("tick %d lastPassed=%v passed=%d, want final ring passed at 162 with 1 passed",
			f.Tick, f.LastCheckpointPassed, f.PassedCount)
	}
	if f.Phase != model.PhaseRunning {
		t.Fatalf("phase = %v, want running without a finish countdown", f.Phase)
	}

	f = tickUntil(t, s, model.ControlInput{}, 400, func(f model.Frame) bool {
		return f.Phase == model.PhaseEnded
	})
	if f.Tick != 342 {
		t.Fatalf("ended at tick %d, want 342", f.Tick)
	}
	out, _ := s.Outcome()
	if out.Success || out.PassedCount != 1 {
		t.Fatalf("outcome = %+v, want failure with 1 passed", out)
	}
	if log.count(model.EventFinishStarted) != 0 || log.count(model.EventCheckpointMissed) != 1 {
		t.Fatalf("events = %+v", log.events)
	}
	for _, ev := range log.events {
		if ev.Type == model.EventGraceStarted && !ev.LastPassed {
			t.Fatalf("grace event should report the final ring as passed")
		}
	}
}

func TestSession_ZeroRunParamsUseDefaults(t *testing.T) {
	s := New(logging.Noop(), WithRunParams(core.RunParams{}), WithHeightField(flatField{}))
	if s.RunParams() != core.DefaultRunParams() {
		t.Fatalf("run params = %+v, want defaults", s.RunParams())
	}
	s.AttachAircraft()
	s.StartTimed()

	f := s.Tick(model.ControlInput{})
	if f.SpeedMultiplier != 1 {
		t.Fatalf("speed = %v, want 1", f.SpeedMultiplier)
	}
	if math.Abs(f.Elapsed-1.0/60) > 1e-12 {
		t.Fatalf("elapsed = %v, want one 60 Hz frame", f.Elapsed)
	}
	if f.Aircraft.Position.Z >= 0 {
		t.Fatalf("aircraft did not move: %+v", f.Aircraft.Position)
	}
}

func TestSession_FrameStepFollowsClockRate(t *testing.T) {
	p := core.DefaultRunParams()
	p.FrameStep = 0.0175
	course := core.Course{Name: "offset", Positions: []model.Vec3{
		{Y: 0.5, Z: -5},
		{X: 50, Y: 0.5, Z: -20},
	}}
	s := New(logging.Noop(), WithCourse(course), WithRunParams(p), WithHeightField(flatField{}))
	if s.Clock().FPS() != 57 || s.RunParams().FrameStep != 1.0/57 {
		t.Fatalf("fps=%d frame step=%v, want 57 and 1/57", s.Clock().FPS(), s.RunParams().FrameStep)
	}
	s.AttachAircraft()
	s.StartTimed()

	grace := tickUntil(t, s, model.ControlInput{}, 400, func(f model.Frame) bool {
		return f.LastCheckpointReached
	})
	var prev model.Frame
	end := tickUntil(t, s, model.ControlInput{}, 400, func(f model.Frame) bool {
		if f.Phase == model.PhaseEnded {
			return true
		}
		prev = f
		return false
	})
	if end.Tick-grace.Tick != 171 {
		t.Fatalf("grace lasted %d frames, want 171", end.Tick-grace.Tick)
	}
	if math.Abs(prev.GraceRemaining-1.0/57) > 1e-9 {
		t.Fatalf("grace remaining one frame before the end = %v, want 1/57", prev.GraceRemaining)
	}
	if math.Abs(prev.Elapsed-float64(prev.Tick)/57) > 1e-9 {
		t.Fatalf("elapsed %v drifted from clock time %v", prev.Elapsed, float64(prev.Tick)/57)
	}
}

func TestSession_MissRaisesStorm(t *testing.T) {
	s, _ := newFlatSession(t, core.DefaultCourse())
	s.StartTimed()

	f := tickUntil(t, s, model.ControlInput{}, 400, func(f model.Frame) bool {
		return crossingOf(f) != nil
	})
	if c := crossingOf(f); f.Tick != 302 || c.Kind != model.CrossingMissed || c.Index != 0 {
		t.Fatalf("tick %d crossing %+v, want missed #0 at 302", f.Tick, *c)
	}
	if !f.Environment.Storm || f.Environment.EffectSpeed != 1.5 || f.NextExpected != 1 {
		t.Fatalf("environment %+v next %d", f.Environment, f.NextExpected)
	}
	if f.SpeedMultiplier != 1 {
		t.Fatalf("a miss must not change speed, got %v", f.SpeedMultiplier)
	}
}

func TestSession_FreeFlight(t *testing.T) {
	s, log := newFlatSession(t, straightCourse())
	s.StartFreeFlight()

	if s.SpeedMultiplier() != 2 {
		t.Fatalf("free flight speed = %v, want 2", s.SpeedMultiplier())
	}
	if got := s.AdjustThrottle(0.5); got != 2.5 {
		t.Fatalf("AdjustThrottle = %v, want 2.5", got)
	}
	if got := s.SetThrottle(50); got != 10 {
		t.Fatalf("SetThrottle(50) = %v, want 10", got)
	}
	if got := s.AdjustThrottle(-20); got != 1 {
		t.Fatalf("AdjustThrottle(-20) = %v, want 1", got)
	}

	s.SetEnvironment(model.EnvironmentNight)
	for i := 0; i < 600; i++ {
		f := s.Tick(model.ControlInput{})
		if f.CheckpointsShown || crossingOf(f) != nil || f.Phase != model.PhaseRunning {
			t.Fatalf("tick %d: free flight frame %+v", f.Tick, f)
		}
	}
	if f := s.Frame(); f.Environment.TimeOfDay > 0.2 {
		t.Fatalf("night preset not applied, time of day %v", f.Environment.TimeOfDay)
	}
	if log.count(model.EventCheckpointPassed)+log.count(model.EventCheckpointMissed) != 0 {
		t.Fatalf("free flight produced checkpoint events")
	}
}

func TestSession_ThrottleIgnoredInTimedRun(t *testing.T) {
	s, _ := newFlatSession(t, straightCourse())
	s.StartTimed()
	if got := s.AdjustThrottle(3); got != 1 {
		t.Fatalf("AdjustThrottle in timed run = %v, want 1", got)
	}
	if got := s.SetThrottle(7); got != 1 {
		t.Fatalf("SetThrottle in timed run = %v, want 1", got)
	}
	s.SetEnvironment(model.EnvironmentStorm)
	if s.Frame().Environment.Storm {
		t.Fatalf("presets only apply in free flight")
	}
}

func TestSession_BackToMenu(t *testing.T) {
	s, _ := newFlatSession(t, straightCourse())
	s.StartTimed()
	tickUntil(t, s, model.ControlInput{}, 100, func(f model.Frame) bool {
		return f.Phase == model.PhaseFinishing
	})

	s.BackToMenu()
	f := s.Frame()
	if f.Phase != model.PhaseIdle || f.Elapsed != 0 || f.PassedCount != 0 || s.PendingTasks() != 0 {
		t.Fatalf("menu frame = %+v pending=%d", f, s.PendingTasks())
	}
	for i := 0; i < 300; i++ {
		if f = s.Tick(model.ControlInput{}); f.Phase != model.PhaseIdle {
			t.Fatalf("phase left Idle: %v", f.Phase)
		}
	}
}

func TestSession_ResetBaselines(t *testing.T) {
	s, _ := newFlatSession(t, straightCourse())

	s.Reset()
	if s.Phase() != model.PhaseIdle {
		t.Fatalf("reset from Idle gave %v", s.Phase())
	}

	s.StartTimed()
	for i := 0; i < 10; i++ {
		s.Tick(model.ControlInput{})
	}
	s.Reset()
	if s.Phase() != model.PhaseRunning || s.Frame().Elapsed != 0 {
		t.Fatalf("reset from Running gave %v elapsed %v", s.Phase(), s.Frame().Elapsed)
	}

	tickUntil(t, s, model.ControlInput{}, 400, func(f model.Frame) bool {
		return f.Phase == model.PhaseEnded
	})
	want, _ := s.Outcome()
	s.Reset()
	got, ok := s.Outcome()
	if s.Phase() != model.PhaseEnded || !ok || got != want {
		t.Fatalf("reset from Ended: phase %v outcome %+v (want %+v)", s.Phase(), got, want)
	}

	s.Restart()
	if s.Phase() != model.PhaseRunning || s.Mode() != model.ModeTimed {
		t.Fatalf("restart gave %v/%v", s.Phase(), s.Mode())
	}
	if _, ok := s.Outcome(); ok {
		t.Fatalf("restart kept the previous outcome")
	}
}

func TestSession_NoAircraftNoops(t *testing.T) {
	s := New(logging.Noop(), WithCourse(straightCourse()), WithHeightField(flatField{}))
	s.StartTimed()
	var f model.Frame
	for i := 0; i < 60; i++ {
		f = s.Tick(model.ControlInput{Boost: true})
	}
	if f.AircraftPresent || crossingOf(f) != nil || f.PassedCount != 0 {
		t.Fatalf("absent aircraft frame = %+v", f)
	}
	if f.Camera.Position != (model.Vec3{Y: 2, Z: 5}) {
		t.Fatalf("camera moved without aircraft: %+v", f.Camera)
	}

	s.AttachAircraft()
	s.AttachAircraft()
	if f = s.Tick(model.ControlInput{}); crossingOf(f) == nil {
		t.Fatalf("attached aircraft did not pass the first ring")
	}
}

func TestSession_SpeedStaysInBounds(t *testing.T) {
	s, _ := newFlatSession(t, straightCourse())
	s.StartFreeFlight()
	for i := 0; i < 200; i++ {
		delta := 0.5
		if (i/25)%2 == 1 {
			delta = -0.5
		}
		v := s.AdjustThrottle(delta * float64(i%7))
		if v < 1 || v > 10 {
			t.Fatalf("speed %v out of bounds", v)
		}
		s.Tick(model.ControlInput{Boost: i%2 == 0})
	}
}

func TestSession_AutopilotCompletesDefaultCourse(t *testing.T) {
	s := New(logging.Noop())
	log := &eventLog{}
	s.Subscribe(log.handle)
	s.AttachAircraft()
	s.StartTimed()

	pilot := autopilot.New()
	f := s.Frame()
	for i := 0; i < 2000 && f.Phase != model.PhaseEnded; i++ {
		f = s.Tick(pilot.Next(f))
	}
	out, ok := s.Outcome()
	if !ok || !out.Success || out.PassedCount != 10 {
		t.Fatalf("outcome = %+v ok=%v after tick %d", out, ok, f.Tick)
	}
	if log.count(model.EventCheckpointMissed) != 0 {
		t.Fatalf("autopilot missed rings: %+v", log.events)
	}
	if math.Abs(f.SpeedMultiplier-4.0) > 1e-9 {
		t.Fatalf("final speed = %v, want 4", f.SpeedMultiplier)
	}
}
