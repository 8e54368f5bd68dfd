package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes deferred-task metrics. It satisfies
// schedule.MetricsRecorder.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	PendingTasks   prometheus.Gauge
	TasksRun       prometheus.Counter
	TasksCancelled prometheus.Counter
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_pending_tasks",
		Help: "Number of deferred tasks waiting to run.",
	})
	pending, err := registerGauge(reg, pending, "scheduler_pending_tasks")
	if err != nil {
		return nil, err
	}

	run := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tasks_run_total",
		Help: "Cumulative number of deferred tasks that fired.",
	})
	run, err = registerCounter(reg, run, "scheduler_tasks_run_total")
	if err != nil {
		return nil, err
	}

	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tasks_cancelled_total",
		Help: "Cumulative number of deferred tasks cancelled before firing.",
	})
	cancelled, err = registerCounter(reg, cancelled, "scheduler_tasks_cancelled_total")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:       gatherer,
		PendingTasks:   pending,
		TasksRun:       run,
		TasksCancelled: cancelled,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetPendingTasks updates the queue depth gauge.
func (c *SchedulerCollector) SetPendingTasks(count int) {
	if c == nil || c.PendingTasks == nil {
		return
	}
	c.PendingTasks.Set(float64(count))
}

// IncTasksRun increments the fired task counter.
func (c *SchedulerCollector) IncTasksRun() {
	if c == nil || c.TasksRun == nil {
		return
	}
	c.TasksRun.Inc()
}

// IncTasksCancelled increments the cancelled task counter.
func (c *SchedulerCollector) IncTasksCancelled() {
	if c == nil || c.TasksCancelled == nil {
		return
	}
	c.TasksCancelled.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
