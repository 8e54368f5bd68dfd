package core

import (
	"math"

	"github.com/signalsfoundry/ringflight/model"
)

// CheckpointTrack owns the checkpoints of a course and decides, from the
// aircraft position, when one is passed or missed.
//
// The next expected index never decreases within a run. Storm is the
// "behind pace" penalty raised by a non-final miss and cleared by the next
// pass at or beyond the expected checkpoint.
type CheckpointTrack struct {
	params      TrackParams
	checkpoints []model.Checkpoint
	next        int
	storm       bool
	hidden      bool
}

// NewCheckpointTrack creates the checkpoints of course once. The zero
// TrackParams selects DefaultTrackParams.
func NewCheckpointTrack(course Course, params TrackParams) *CheckpointTrack {
	if params == (TrackParams{}) {
		params = DefaultTrackParams()
	}
	cps := make([]model.Checkpoint, len(course.Positions))
	for i, pos := range course.Positions {
		cps[i] = model.Checkpoint{Index: i, Position: pos}
	}
	return &CheckpointTrack{params: params, checkpoints: cps}
}

// Reset clears all passes and the storm. A hidden track (free flight)
// reports no crossings until the next Reset.
func (t *CheckpointTrack) Reset(hidden bool) {
	for i := range t.checkpoints {
		t.checkpoints[i].Passed = false
	}
	t.next = 0
	t.storm = false
	t.hidden = hidden
}

// Len returns the number of checkpoints.
func (t *CheckpointTrack) Len() int { return len(t.checkpoints) }

// Last returns the index of the final checkpoint.
func (t *CheckpointTrack) Last() int { return len(t.checkpoints) - 1 }

// NextExpected returns the index of the checkpoint to fly next; Len() once
// the course is exhausted.
func (t *CheckpointTrack) NextExpected() int { return t.next }

// Storm reports whether the penalty state is active.
func (t *CheckpointTrack) Storm() bool { return t.storm }

// Hidden reports whether checkpoints are disabled for free flight.
func (t *CheckpointTrack) Hidden() bool { return t.hidden }

// Checkpoints returns a copy of the checkpoint records.
func (t *CheckpointTrack) Checkpoints() []model.Checkpoint {
	out := make([]model.Checkpoint, len(t.checkpoints))
	copy(out, t.checkpoints)
	return out
}

// PassedCount returns how many checkpoints have been passed this run.
func (t *CheckpointTrack) PassedCount() int {
	n := 0
	for _, cp := range t.checkpoints {
		if cp.Passed {
			n++
		}
	}
	return n
}

// CheckCrossings tests the aircraft position against the course. At most one
// ring is passed per tick, tested in course order. Passing the expected ring,
// or one beyond it, ends the check; a late pass of an abandoned ring does not
// excuse the expected one, so that tick may also report its miss.
func (t *CheckpointTrack) CheckCrossings(pos model.Vec3) []model.CrossingEvent {
	if t.hidden {
		return nil
	}
	var events []model.CrossingEvent
	for i := range t.checkpoints {
		if t.checkpoints[i].Passed || !t.within(pos, t.checkpoints[i].Position) {
			continue
		}
		expected := i >= t.next
		t.pass(i)
		events = append(events, model.CrossingEvent{
			Kind:        model.CrossingPassed,
			Index:       i,
			TotalPassed: t.PassedCount(),
		})
		if expected {
			return events
		}
		break
	}
	if ev := t.checkMissed(pos); ev != nil {
		events = append(events, *ev)
	}
	return events
}

func (t *CheckpointTrack) within(pos, centre model.Vec3) bool {
	d := pos.Sub(centre)
	if d.Norm() >= t.params.CaptureRadius {
		return false
	}
	return math.Abs(d.Y) < t.params.MaxHeightOffset && d.HorizontalNorm() < t.params.MaxHorizontal
}

func (t *CheckpointTrack) pass(i int) {
	t.checkpoints[i].Passed = true
	switch {
	case i == t.next:
		t.storm = false
		t.next++
	case i > t.next:
		// Flew past the expected ring to a later one: abandon the skipped ones.
		t.storm = false
		t.next = i + 1
	}
	// i < t.next: a ring already given up on; it still counts, progress stays.
}

func (t *CheckpointTrack) checkMissed(pos model.Vec3) *model.CrossingEvent {
	if t.next >= len(t.checkpoints) {
		return nil
	}
	cp := &t.checkpoints[t.next]
	if cp.Passed || pos.Z >= cp.Position.Z-t.params.MissMargin {
		return nil
	}

	idx := t.next
	t.next++
	if idx != t.Last() {
		t.storm = true
	}
	return &model.CrossingEvent{
		Kind:        model.CrossingMissed,
		Index:       idx,
		TotalPassed: t.PassedCount(),
	}
}
