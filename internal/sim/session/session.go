// internal/sim/session/session.go
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/ringflight/core"
	"github.com/signalsfoundry/ringflight/internal/logging"
	"github.com/signalsfoundry/ringflight/internal/schedule"
	"github.com/signalsfoundry/ringflight/model"
	"github.com/signalsfoundry/ringflight/terrain"
	"github.com/signalsfoundry/ringflight/timectrl"
)

const (
	slotFinish = "finish"
	slotGrace  = "grace"
)

// Epoch is the simulation time of frame zero.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// MetricsRecorder receives run activity. observability.RunCollector
// satisfies it.
type MetricsRecorder interface {
	IncFrames()
	SetPhase(phase model.Phase)
	SetSpeedMultiplier(v float64)
	IncRunsStarted(mode model.Mode)
	IncCheckpointEvents(kind model.CrossingKind)
	ObserveRunEnded(outcome model.Outcome)
}

// Session is the run state machine. It owns the flight model, the
// checkpoint track, the camera, the environment and the deferred finish and
// grace tasks, and advances all of them once per Tick.
//
// Entry points and Tick are expected to be called from one goroutine; the
// mutex only makes snapshots safe to read from elsewhere. Subscribers are
// called after the lock is released.
type Session struct {
	mu sync.Mutex

	params core.RunParams
	course core.Course

	flight *core.FlightModel
	track  *core.CheckpointTrack
	camera *core.FollowCamera
	env    *core.Environment
	field  terrain.HeightField

	clock *timectrl.FrameClock
	sched schedule.EventScheduler
	slots *schedule.Slots

	log     logging.Logger
	runLog  logging.Logger
	ctx     context.Context
	runID   string
	metrics MetricsRecorder

	phase   model.Phase
	mode    model.Mode
	speed   float64
	elapsed float64
	storm   bool

	completionFlagged bool
	lastReached       bool
	lastPassed        bool
	graceTimer        float64

	outcome   *model.Outcome
	crossings []model.CrossingEvent

	subscribers []func(model.Event)
	pending     []model.Event
}

type options struct {
	course       core.Course
	flightParams core.FlightParams
	trackParams  core.TrackParams
	runParams    core.RunParams
	rig          core.CameraRig
	field        terrain.HeightField
	clock        *timectrl.FrameClock
	metrics      MetricsRecorder
	schedMetrics schedule.MetricsRecorder
}

// Option customises Session construction.
type Option func(*options)

// WithCourse selects the checkpoint layout. Default: core.DefaultCourse.
func WithCourse(c core.Course) Option { return func(o *options) { o.course = c } }

// WithFlightParams overrides the flight model constants.
func WithFlightParams(p core.FlightParams) Option { return func(o *options) { o.flightParams = p } }

// WithTrackParams overrides the ring tolerances.
func WithTrackParams(p core.TrackParams) Option { return func(o *options) { o.trackParams = p } }

// WithRunParams overrides timing and speed rules.
func WithRunParams(p core.RunParams) Option { return func(o *options) { o.runParams = p } }

// WithCameraRig overrides the chase camera offsets.
func WithCameraRig(r core.CameraRig) Option { return func(o *options) { o.rig = r } }

// WithHeightField replaces the analytic terrain, e.g. with a terrain.Cached.
func WithHeightField(f terrain.HeightField) Option { return func(o *options) { o.field = f } }

// WithClock supplies the frame clock the session advances.
func WithClock(c *timectrl.FrameClock) Option { return func(o *options) { o.clock = c } }

// WithMetricsRecorder attaches an optional recorder for run metrics.
func WithMetricsRecorder(m MetricsRecorder) Option { return func(o *options) { o.metrics = m } }

// WithSchedulerMetrics attaches an optional recorder for deferred task metrics.
func WithSchedulerMetrics(m schedule.MetricsRecorder) Option {
	return func(o *options) { o.schedMetrics = m }
}

// New builds an idle session. The aircraft is absent until AttachAircraft.
func New(log logging.Logger, opts ...Option) *Session {
	o := options{
		course:    core.DefaultCourse(),
		runParams: core.DefaultRunParams(),
		rig:       core.DefaultCameraRig(),
		field:     terrain.Field{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logging.Noop()
	}
	o.runParams = o.runParams.Normalized()
	if o.clock == nil {
		fps := int(math.Max(1, math.Round(1/o.runParams.FrameStep)))
		o.clock = timectrl.NewFrameClock(Epoch, fps)
	}
	// Elapsed time and grace/finish deadlines both follow the clock's step.
	o.runParams.FrameStep = 1 / float64(o.clock.FPS())

	var schedOpts []schedule.Option
	if o.schedMetrics != nil {
		schedOpts = append(schedOpts, schedule.WithMetrics(o.schedMetrics))
	}
	sched := schedule.NewEventScheduler(o.clock, schedOpts...)

	s := &Session{
		params:  o.runParams,
		course:  o.course,
		flight:  core.NewFlightModel(o.flightParams),
		track:   core.NewCheckpointTrack(o.course, o.trackParams),
		camera:  core.NewFollowCamera(o.rig),
		env:     core.NewEnvironment(),
		field:   o.field,
		clock:   o.clock,
		sched:   sched,
		slots:   schedule.NewSlots(sched),
		log:     log,
		runLog:  log,
		ctx:     context.Background(),
		metrics: o.metrics,
		phase:   model.PhaseIdle,
		mode:    model.ModeTimed,
	}
	s.speed = s.params.SpeedForPassed(0)
	s.reportPhaseLocked()
	return s
}

// Subscribe registers fn for every session event. Handlers run on the
// goroutine that caused the event, after the session lock is released.
func (s *Session) Subscribe(fn func(model.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// AttachAircraft marks the aircraft as loaded. Until then physics, camera
// and checkpoint tests are skipped.
func (s *Session) AttachAircraft() {
	s.mu.Lock()
	if s.flight.Present() {
		s.mu.Unlock()
		return
	}
	s.flight.Spawn()
	s.camera.Update(s.flight)
	s.emitLocked(model.Event{Type: model.EventAircraftAttached})
	s.log.Info(s.ctx, "aircraft attached")
	s.unlockAndDispatch()
}

// StartTimed begins a fresh timed run from any phase.
func (s *Session) StartTimed() { s.start(model.ModeTimed) }

// Restart begins a new timed run; it is what the result screen offers.
func (s *Session) Restart() { s.start(model.ModeTimed) }

// StartFreeFlight begins a fresh free-flight run with hidden checkpoints.
func (s *Session) StartFreeFlight() { s.start(model.ModeFreeFlight) }

func (s *Session) start(mode model.Mode) {
	s.mu.Lock()
	s.mode = mode
	s.resetOwnedLocked()
	s.ctx, s.runLog = logging.WithRunLogger(context.Background(), s.log.With(logging.String("mode", mode.String())))
	s.runID = logging.RunIDFromContext(s.ctx)
	s.setPhaseLocked(model.PhaseRunning)
	if s.metrics != nil {
		s.metrics.IncRunsStarted(mode)
	}
	s.runLog.Info(s.ctx, "run started", logging.Float("speed_multiplier", s.speed))
	s.unlockAndDispatch()
}

// BackToMenu abandons whatever is in progress and returns to Idle.
func (s *Session) BackToMenu() {
	s.mu.Lock()
	s.resetOwnedLocked()
	s.setPhaseLocked(model.PhaseIdle)
	s.runLog.Info(s.ctx, "returned to menu")
	s.unlockAndDispatch()
}

// Reset zeroes the aircraft, checkpoints, timers and speed without changing
// the screen: Running and Finishing continue as Running, Idle stays Idle
// and Ended keeps its result.
func (s *Session) Reset() {
	s.mu.Lock()
	outcome := s.outcome
	s.resetOwnedLocked()
	switch s.phase {
	case model.PhaseRunning, model.PhaseFinishing:
		s.setPhaseLocked(model.PhaseRunning)
	case model.PhaseEnded:
		s.outcome = outcome
	}
	s.runLog.Info(s.ctx, "manual reset", logging.String("phase", s.phase.String()))
	s.unlockAndDispatch()
}

// AdjustThrottle changes the free-flight speed multiplier by delta and
// returns the clamped result. Timed runs derive speed from progress, so
// the call is ignored there.
func (s *Session) AdjustThrottle(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == model.ModeFreeFlight {
		s.setSpeedLocked(s.speed + delta)
	}
	return s.speed
}

// SetThrottle sets the free-flight speed multiplier, clamped to the
// allowed range. Ignored in timed runs.
func (s *Session) SetThrottle(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == model.ModeFreeFlight {
		s.setSpeedLocked(v)
	}
	return s.speed
}

// SetEnvironment selects a time-of-day preset during free flight.
func (s *Session) SetEnvironment(p model.EnvironmentPreset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != model.ModeFreeFlight || !s.phase.Active() {
		return
	}
	s.env.SetPreset(p)
	s.runLog.Debug(s.ctx, "environment preset", logging.String("preset", p.String()))
}

// Tick advances the session by exactly one frame and returns the snapshot
// the renderer consumes.
func (s *Session) Tick(in model.ControlInput) model.Frame {
	s.mu.Lock()
	s.crossings = nil

	s.clock.Advance()
	s.sched.RunDue()
	s.env.Step()

	if s.phase.Active() {
		dt := s.params.FrameStep
		s.elapsed += dt
		if s.flight.Present() {
			if s.mode == model.ModeTimed {
				if s.lastReached {
					s.graceTimer += dt
				}
				for _, ev := range s.track.CheckCrossings(s.flight.State().Position) {
					s.applyCrossingLocked(ev)
				}
			}
			s.flight.Update(in, s.field, s.speed)
		}
	}

	s.camera.Update(s.flight)
	if s.metrics != nil {
		s.metrics.IncFrames()
	}
	frame := s.snapshotLocked()
	s.unlockAndDispatch()
	return frame
}

func (s *Session) applyCrossingLocked(ev model.CrossingEvent) {
	s.crossings = append(s.crossings, ev)
	s.setSpeedLocked(s.params.SpeedForPassed(s.track.PassedCount()))
	if storm := s.track.Storm(); storm != s.storm {
		s.storm = storm
		s.env.SetStorm(storm)
	}

	evType := model.EventCheckpointPassed
	if ev.Kind == model.CrossingMissed {
		evType = model.EventCheckpointMissed
	}
	s.emitLocked(model.Event{Type: evType, Crossing: &ev})
	if s.metrics != nil {
		s.metrics.IncCheckpointEvents(ev.Kind)
	}
	s.runLog.Debug(s.ctx, "checkpoint "+ev.Kind.String(),
		logging.Int("index", ev.Index),
		logging.Int("passed", s.track.PassedCount()),
		logging.Bool("storm", s.storm),
		logging.Float("speed_multiplier", s.speed),
	)

	if ev.Kind == model.CrossingPassed && ev.TotalPassed >= s.track.Len() &&
		!s.completionFlagged && s.phase == model.PhaseRunning {
		s.completionFlagged = true
		s.setPhaseLocked(model.PhaseFinishing)
		s.emitLocked(model.Event{Type: model.EventFinishStarted})
		s.slots.Set(slotFinish, seconds(s.params.FinishDelay), func() {
			s.endRunLocked(true)
		})
	}

	if ev.Index == s.track.Last() && !s.lastReached {
		s.lastReached = true
		s.lastPassed = ev.Kind == model.CrossingPassed
		s.graceTimer = 0
		s.emitLocked(model.Event{Type: model.EventGraceStarted, LastPassed: s.lastPassed})
		s.slots.Set(slotGrace, seconds(s.params.GraceDuration), func() {
			s.endRunLocked(s.track.PassedCount() >= s.track.Len())
		})
	}
}

// endRunLocked runs from scheduler callbacks inside Tick, with s.mu held.
func (s *Session) endRunLocked(success bool) {
	if !s.phase.Active() {
		return
	}
	s.slots.ClearAll()
	out := model.Outcome{
		Success:     success,
		PassedCount: s.track.PassedCount(),
		Elapsed:     s.elapsed,
	}
	s.outcome = &out
	s.setPhaseLocked(model.PhaseEnded)
	s.emitLocked(model.Event{Type: model.EventRunEnded, Outcome: &out})
	if s.metrics != nil {
		s.metrics.ObserveRunEnded(out)
	}
	s.runLog.Info(s.ctx, "run ended",
		logging.Bool("success", out.Success),
		logging.Int("passed", out.PassedCount),
		logging.Float("elapsed_s", out.Elapsed),
	)
}

// resetOwnedLocked zeroes everything a run owns and cancels its deferred
// tasks. Phase is left to the caller.
func (s *Session) resetOwnedLocked() {
	if pending := s.slots.Names(); len(pending) > 0 {
		s.runLog.Debug(s.ctx, "countdowns cancelled", logging.Any("slots", pending))
	}
	s.slots.ClearAll()
	s.flight.Reset()
	s.track.Reset(s.mode == model.ModeFreeFlight)
	s.env.Reset()
	s.camera.Update(s.flight)

	s.elapsed = 0
	s.storm = false
	s.completionFlagged = false
	s.lastReached = false
	s.lastPassed = false
	s.graceTimer = 0
	s.outcome = nil
	s.crossings = nil

	if s.mode == model.ModeFreeFlight {
		s.setSpeedLocked(s.params.FreeFlightSpeed)
	} else {
		s.setSpeedLocked(s.params.SpeedForPassed(0))
	}
}

func (s *Session) setSpeedLocked(v float64) {
	v = s.params.ClampSpeed(v)
	if v == s.speed {
		return
	}
	s.speed = v
	if s.metrics != nil {
		s.metrics.SetSpeedMultiplier(v)
	}
}

func (s *Session) setPhaseLocked(p model.Phase) {
	prev := s.phase
	s.phase = p
	s.reportPhaseLocked()
	if prev != p {
		s.emitLocked(model.Event{Type: model.EventPhaseChanged})
	}
}

func (s *Session) reportPhaseLocked() {
	if s.metrics != nil {
		s.metrics.SetPhase(s.phase)
	}
}

func (s *Session) emitLocked(ev model.Event) {
	ev.Phase = s.phase
	ev.Mode = s.mode
	s.pending = append(s.pending, ev)
}

func (s *Session) unlockAndDispatch() {
	events := s.pending
	s.pending = nil
	subs := s.subscribers
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func (s *Session) snapshotLocked() model.Frame {
	st := s.flight.State()
	f := model.Frame{
		Tick:                  s.clock.Frame(),
		Phase:                 s.phase,
		Mode:                  s.mode,
		AircraftPresent:       s.flight.Present(),
		Aircraft:              st,
		Camera:                s.camera.Scene(),
		Background:            s.camera.Background(),
		Checkpoints:           s.track.Checkpoints(),
		CheckpointsShown:      !s.track.Hidden(),
		NextExpected:          s.track.NextExpected(),
		PassedCount:           s.track.PassedCount(),
		SpeedMultiplier:       s.speed,
		Elapsed:               s.elapsed,
		Altitude:              st.Position.Y,
		MaxAltitude:           s.flight.Params().MaxAltitude,
		Environment:           s.env.State(),
		LastCheckpointReached: s.lastReached,
		LastCheckpointPassed:  s.lastPassed,
		Crossings:             s.crossings,
		Outcome:               s.outcome,
	}
	if s.lastReached {
		f.GraceRemaining = math.Max(0, s.params.GraceDuration-s.graceTimer)
	}
	return f
}

// Frame returns a snapshot of the current state without advancing.
func (s *Session) Frame() model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Mode returns the mode of the current or last run.
func (s *Session) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SpeedMultiplier returns the current speed multiplier.
func (s *Session) SpeedMultiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Outcome returns the result of the last concluded run.
func (s *Session) Outcome() (model.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return model.Outcome{}, false
	}
	return *s.outcome, true
}

// RunID returns the identifier of the current run, empty before the first start.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// PendingTasks returns how many deferred tasks are outstanding.
func (s *Session) PendingTasks() int {
	return s.sched.Pending()
}

// Course returns the course being flown.
func (s *Session) Course() core.Course { return s.course }

// FlightParams returns the flight model constants in use.
func (s *Session) FlightParams() core.FlightParams { return s.flight.Params() }

// RunParams returns the timing and speed rules in use.
func (s *Session) RunParams() core.RunParams { return s.params }

// Clock returns the frame clock the session advances.
func (s *Session) Clock() *timectrl.FrameClock { return s.clock }

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}
