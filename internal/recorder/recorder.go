// Package recorder captures the inputs that drive a session so a run can be
// replayed frame for frame. The simulation is deterministic given its
// per-tick ControlInput and the lifecycle calls made between ticks, so that
// is all a recording holds.
package recorder

import (
	"sync"
	"time"

	"github.com/signalsfoundry/ringflight/core"
	"github.com/signalsfoundry/ringflight/internal/sim/session"
	"github.com/signalsfoundry/ringflight/model"
)

// Kind identifies what an Entry replays.
type Kind uint8

const (
	KindTick Kind = iota
	KindAttachAircraft
	KindStartTimed
	KindRestart
	KindStartFreeFlight
	KindBackToMenu
	KindReset
	KindAdjustThrottle
	KindSetThrottle
	KindSetEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindAttachAircraft:
		return "attach_aircraft"
	case KindStartTimed:
		return "start_timed"
	case KindRestart:
		return "restart"
	case KindStartFreeFlight:
		return "start_free_flight"
	case KindBackToMenu:
		return "back_to_menu"
	case KindReset:
		return "reset"
	case KindAdjustThrottle:
		return "adjust_throttle"
	case KindSetThrottle:
		return "set_throttle"
	case KindSetEnvironment:
		return "set_environment"
	default:
		return "unknown"
	}
}

// Entry is one recorded call.
type Entry struct {
	Kind   Kind                    `msgpack:"k"`
	Input  model.ControlInput      `msgpack:"i,omitempty"`
	Value  float64                 `msgpack:"v,omitempty"`
	Preset model.EnvironmentPreset `msgpack:"p,omitempty"`
}

// Header describes the session a recording was made against.
type Header struct {
	Version  int               `msgpack:"version"`
	RunID    string            `msgpack:"run_id"`
	Recorded time.Time         `msgpack:"recorded"`
	Course   core.Course       `msgpack:"course"`
	Flight   core.FlightParams `msgpack:"flight"`
	Run      core.RunParams    `msgpack:"run"`
}

// SessionOptions returns the options that rebuild a session with the
// recorded course and constants.
func (h Header) SessionOptions() []session.Option {
	return []session.Option{
		session.WithCourse(h.Course),
		session.WithFlightParams(h.Flight),
		session.WithRunParams(h.Run),
	}
}

// Recording is a header plus the ordered entries.
type Recording struct {
	Header  Header
	Entries []Entry
}

// Ticks returns how many tick entries the recording holds.
func (r *Recording) Ticks() int {
	n := 0
	for _, e := range r.Entries {
		if e.Kind == KindTick {
			n++
		}
	}
	return n
}

// Recorder wraps a session and logs every call made through it.
type Recorder struct {
	s *session.Session

	mu  sync.Mutex
	rec Recording
}

// New starts recording calls made through the returned Recorder.
func New(s *session.Session) *Recorder {
	return &Recorder{
		s: s,
		rec: Recording{Header: Header{
			Version:  formatVersion,
			Recorded: time.Now().UTC(),
			Course:   s.Course(),
			Flight:   s.FlightParams(),
			Run:      s.RunParams(),
		}},
	}
}

// Session returns the wrapped session.
func (r *Recorder) Session() *session.Session { return r.s }

func (r *Recorder) add(e Entry) {
	r.mu.Lock()
	r.rec.Entries = append(r.rec.Entries, e)
	r.mu.Unlock()
}

func (r *Recorder) AttachAircraft() {
	r.add(Entry{Kind: KindAttachAircraft})
	r.s.AttachAircraft()
}

func (r *Recorder) StartTimed() {
	r.add(Entry{Kind: KindStartTimed})
	r.s.StartTimed()
}

func (r *Recorder) Restart() {
	r.add(Entry{Kind: KindRestart})
	r.s.Restart()
}

func (r *Recorder) StartFreeFlight() {
	r.add(Entry{Kind: KindStartFreeFlight})
	r.s.StartFreeFlight()
}

func (r *Recorder) BackToMenu() {
	r.add(Entry{Kind: KindBackToMenu})
	r.s.BackToMenu()
}

func (r *Recorder) Reset() {
	r.add(Entry{Kind: KindReset})
	r.s.Reset()
}

func (r *Recorder) AdjustThrottle(delta float64) float64 {
	r.add(Entry{Kind: KindAdjustThrottle, Value: delta})
	return r.s.AdjustThrottle(delta)
}

func (r *Recorder) SetThrottle(v float64) float64 {
	r.add(Entry{Kind: KindSetThrottle, Value: v})
	return r.s.SetThrottle(v)
}

func (r *Recorder) SetEnvironment(p model.EnvironmentPreset) {
	r.add(Entry{Kind: KindSetEnvironment, Preset: p})
	r.s.SetEnvironment(p)
}

// Tick records in and advances the session.
func (r *Recorder) Tick(in model.ControlInput) model.Frame {
	r.add(Entry{Kind: KindTick, Input: in})
	return r.s.Tick(in)
}

// Recording returns a copy of what has been recorded so far. The run id is
// the one of the session's current run.
func (r *Recorder) Recording() Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rec
	out.Header.RunID = r.s.RunID()
	out.Entries = append([]Entry(nil), r.rec.Entries...)
	return out
}

// Replay drives s with the recorded calls and returns the frame of every
// tick. s should be fresh and built with rec.Header.SessionOptions().
func Replay(s *session.Session, rec Recording) []model.Frame {
	frames := make([]model.Frame, 0, rec.Ticks())
	for _, e := range rec.Entries {
		switch e.Kind {
		case KindTick:
			frames = append(frames, s.Tick(e.Input))
		case KindAttachAircraft:
			s.AttachAircraft()
		case KindStartTimed:
			s.StartTimed()
		case KindRestart:
			s.Restart()
		case KindStartFreeFlight:
			s.StartFreeFlight()
		case KindBackToMenu:
			s.BackToMenu()
		case KindReset:
			s.Reset()
		case KindAdjustThrottle:
			s.AdjustThrottle(e.Value)
		case KindSetThrottle:
			s.SetThrottle(e.Value)
		case KindSetEnvironment:
			s.SetEnvironment(e.Preset)
		}
	}
	return frames
}
