package model

// EventType indicates what happened during a session.
type EventType int

const (
	EventPhaseChanged EventType = iota
	EventCheckpointPassed
	EventCheckpointMissed
	// EventFinishStarted asks the HUD to show the 3-2-1 finish countdown.
	EventFinishStarted
	// EventGraceStarted marks the last checkpoint as reached or missed.
	EventGraceStarted
	EventRunEnded
	EventAircraftAttached
)

func (t EventType) String() string {
	switch t {
	case EventPhaseChanged:
		return "phase_changed"
	case EventCheckpointPassed:
		return "checkpoint_passed"
	case EventCheckpointMissed:
		return "checkpoint_missed"
	case EventFinishStarted:
		return "finish_started"
	case EventGraceStarted:
		return "grace_started"
	case EventRunEnded:
		return "run_ended"
	case EventAircraftAttached:
		return "aircraft_attached"
	default:
		return "unknown"
	}
}

// Event is emitted to session subscribers.
type Event struct {
	Type     EventType
	Phase    Phase
	Mode     Mode
	Crossing *CrossingEvent
	Outcome  *Outcome
	// LastPassed distinguishes a passed final checkpoint from a missed one
	// for EventGraceStarted.
	LastPassed bool
}

// Frame is the per-tick snapshot handed to the renderer and HUD.
type Frame struct {
	Tick  uint64
	Phase Phase
	Mode  Mode

	AircraftPresent bool
	Aircraft        AircraftState
	Camera          CameraPose
	Background      CameraPose

	Checkpoints      []Checkpoint
	CheckpointsShown bool
	NextExpected     int
	PassedCount      int

	SpeedMultiplier float64
	Elapsed         float64
	Altitude        float64
	MaxAltitude     float64

	Environment EnvironmentState

	LastCheckpointReached bool
	LastCheckpointPassed  bool
	GraceRemaining        float64

	// Crossings lists this tick's checkpoint events in the order applied.
	Crossings []CrossingEvent
	Outcome   *Outcome
}
