package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/ringflight/timectrl"
)

// EventScheduler runs one-shot callbacks at simulation times taken from a
// SimClock. The session schedules its finish countdown and grace deadline
// here and calls RunDue once per frame after the clock moves.
type EventScheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque task ID that can be used to cancel the task.
	Schedule(at time.Time, f func()) (id string)

	// ScheduleAfter registers f to run once d of simulation time has passed.
	ScheduleAfter(d time.Duration, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled task.
	// It is a no-op if the ID is unknown or the task already ran.
	Cancel(id string)

	// CancelAll drops every pending task.
	CancelAll()

	// Pending returns the number of tasks that are scheduled and not cancelled.
	Pending() int

	// Now returns the current simulation time of the underlying SimClock.
	Now() time.Time

	// RunDue executes all tasks whose scheduled time is <= Now().
	// Already-run tasks never run again.
	RunDue()
}

// MetricsRecorder receives scheduler activity. observability.SchedulerCollector
// satisfies it.
type MetricsRecorder interface {
	SetPendingTasks(n int)
	IncTasksRun()
	IncTasksCancelled()
}

// Option configures an EventScheduler.
type Option func(*eventScheduler)

// WithMetrics reports queue depth and task outcomes to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *eventScheduler) { s.metrics = m }
}

// scheduledTask represents a single scheduled callback.
type scheduledTask struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// eventScheduler keeps tasks ordered by scheduled time. Cancelled tasks are
// dropped lazily when they reach the front of the queue.
type eventScheduler struct {
	clock   timectrl.SimClock
	metrics MetricsRecorder

	mu      sync.Mutex
	counter uint64
	tasks   []*scheduledTask // ordered by 'when' (earliest first)
	index   map[string]*scheduledTask
}

// NewEventScheduler creates a new scheduler backed by the given SimClock.
func NewEventScheduler(clock timectrl.SimClock, opts ...Option) EventScheduler {
	s := &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers a callback to run at the specified simulation time.
func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("task-%d", s.counter)

	task := &scheduledTask{
		id:   id,
		when: at,
		f:    f,
	}
	s.addTaskLocked(task)
	s.index[id] = task
	s.reportPendingLocked()

	return id
}

// ScheduleAfter registers a callback relative to the current simulation time.
func (s *eventScheduler) ScheduleAfter(d time.Duration, f func()) (id string) {
	return s.Schedule(s.clock.Now().Add(d), f)
}

// addTaskLocked inserts a task keeping time order; tasks with equal times
// run in scheduling order. Caller must hold s.mu.
func (s *eventScheduler) addTaskLocked(task *scheduledTask) {
	idx := sort.Search(len(s.tasks), func(i int) bool {
		return s.tasks[i].when.After(task.when)
	})

	s.tasks = append(s.tasks, nil)
	copy(s.tasks[idx+1:], s.tasks[idx:])
	s.tasks[idx] = task
}

// Cancel attempts to cancel a previously scheduled task.
func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.index[id]
	if !ok {
		return
	}
	task.cancelled = true
	delete(s.index, id)
	s.reportCancelLocked(1)
}

// CancelAll cancels every pending task.
func (s *eventScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.index)
	for id, task := range s.index {
		task.cancelled = true
		delete(s.index, id)
	}
	s.tasks = s.tasks[:0]
	s.reportCancelLocked(n)
}

// Pending returns the number of live tasks.
func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Now returns the current simulation time from the underlying clock.
func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

// popNextLocked removes and returns the earliest due, non-cancelled task.
// Returns nil if nothing is due. Caller must hold s.mu.
func (s *eventScheduler) popNextLocked(now time.Time) *scheduledTask {
	for len(s.tasks) > 0 {
		task := s.tasks[0]
		if task.cancelled {
			s.tasks = s.tasks[1:]
			continue
		}
		if task.when.After(now) {
			// Ordered by time, so nothing later is due either.
			return nil
		}
		s.tasks = s.tasks[1:]
		return task
	}
	return nil
}

// RunDue executes all tasks whose scheduled time is <= Now().
func (s *eventScheduler) RunDue() {
	for {
		s.mu.Lock()
		task := s.popNextLocked(s.clock.Now())
		if task == nil {
			s.mu.Unlock()
			return
		}
		delete(s.index, task.id)
		s.reportPendingLocked()
		if s.metrics != nil {
			s.metrics.IncTasksRun()
		}
		s.mu.Unlock()

		// Callbacks run outside the lock so they may schedule or cancel.
		if task.f != nil {
			task.f()
		}
	}
}

func (s *eventScheduler) reportPendingLocked() {
	if s.metrics != nil {
		s.metrics.SetPendingTasks(len(s.index))
	}
}

func (s *eventScheduler) reportCancelLocked(n int) {
	if s.metrics == nil {
		return
	}
	for i := 0; i < n; i++ {
		s.metrics.IncTasksCancelled()
	}
	s.metrics.SetPendingTasks(len(s.index))
}
