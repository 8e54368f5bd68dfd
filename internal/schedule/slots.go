package schedule

import (
	"sort"
	"time"
)

// Slots names scheduled tasks so that at most one task is pending per name.
// Setting a slot that already holds a task cancels that task first, which
// keeps a stale countdown from firing after it has been replaced.
type Slots struct {
	sched EventScheduler
	ids   map[string]string
}

// NewSlots wraps sched.
func NewSlots(sched EventScheduler) *Slots {
	return &Slots{sched: sched, ids: make(map[string]string)}
}

// Set schedules f to run after d in slot name, replacing any pending task
// there. The slot is cleared when f runs.
func (s *Slots) Set(name string, d time.Duration, f func()) {
	s.Clear(name)
	var id string
	id = s.sched.ScheduleAfter(d, func() {
		if s.ids[name] == id {
			delete(s.ids, name)
		}
		f()
	})
	s.ids[name] = id
}

// Clear cancels the task in slot name, if any.
func (s *Slots) Clear(name string) {
	if id, ok := s.ids[name]; ok {
		s.sched.Cancel(id)
		delete(s.ids, name)
	}
}

// ClearAll cancels every slotted task.
func (s *Slots) ClearAll() {
	for name, id := range s.ids {
		s.sched.Cancel(id)
		delete(s.ids, name)
	}
}

// Active reports whether slot name holds a pending task.
func (s *Slots) Active(name string) bool {
	_, ok := s.ids[name]
	return ok
}

// Names returns the occupied slot names in sorted order.
func (s *Slots) Names() []string {
	out := make([]string, 0, len(s.ids))
	for name := range s.ids {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
