package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signalsfoundry/ringflight/model"
)

var allPhases = []model.Phase{model.PhaseIdle, model.PhaseRunning, model.PhaseFinishing, model.PhaseEnded}

// RunCollector bundles Prometheus metrics for flight sessions. It satisfies
// session.MetricsRecorder so the session can drive it from its mutators.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Frames           prometheus.Counter
	TickDuration     prometheus.Histogram
	Phase            *prometheus.GaugeVec
	SpeedMultiplier  prometheus.Gauge
	RunsStarted      *prometheus.CounterVec
	RunsEnded        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	CheckpointEvents *prometheus.CounterVec
}

// NewRunCollector registers session metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ringflight_frames_total",
		Help: "Total number of simulation frames advanced.",
	}), "ringflight_frames_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ringflight_tick_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation frame.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.0167, 0.05},
	}), "ringflight_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	phase, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ringflight_session_phase",
		Help: "1 for the session's current lifecycle phase, 0 otherwise.",
	}, []string{"phase"}), "ringflight_session_phase")
	if err != nil {
		return nil, err
	}

	speed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ringflight_speed_multiplier",
		Help: "Current aircraft speed multiplier.",
	}), "ringflight_speed_multiplier")
	if err != nil {
		return nil, err
	}

	started, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ringflight_runs_started_total",
		Help: "Runs started, labeled by mode.",
	}, []string{"mode"}), "ringflight_runs_started_total")
	if err != nil {
		return nil, err
	}

	ended, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ringflight_runs_ended_total",
		Help: "Timed runs concluded, labeled by result.",
	}, []string{"result"}), "ringflight_runs_ended_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ringflight_run_duration_seconds",
		Help:    "Simulated elapsed time of concluded runs.",
		Buckets: []float64{10, 20, 30, 45, 60, 90, 120, 180, 300},
	}), "ringflight_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	checkpoints, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ringflight_checkpoint_events_total",
		Help: "Checkpoint crossings, labeled by kind (passed or missed).",
	}, []string{"kind"}), "ringflight_checkpoint_events_total")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:         gatherer,
		Frames:           frames,
		TickDuration:     tickDuration,
		Phase:            phase,
		SpeedMultiplier:  speed,
		RunsStarted:      started,
		RunsEnded:        ended,
		RunDuration:      duration,
		CheckpointEvents: checkpoints,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RunCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// IncFrames counts one simulation frame.
func (c *RunCollector) IncFrames() {
	if c == nil || c.Frames == nil {
		return
	}
	c.Frames.Inc()
}

// ObserveTick records the wall time of one frame.
func (c *RunCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// SetPhase marks phase as the current one.
func (c *RunCollector) SetPhase(phase model.Phase) {
	if c == nil || c.Phase == nil {
		return
	}
	for _, p := range allPhases {
		v := 0.0
		if p == phase {
			v = 1
		}
		c.Phase.WithLabelValues(p.String()).Set(v)
	}
}

// SetSpeedMultiplier updates the speed gauge.
func (c *RunCollector) SetSpeedMultiplier(v float64) {
	if c == nil || c.SpeedMultiplier == nil {
		return
	}
	c.SpeedMultiplier.Set(v)
}

// IncRunsStarted counts a run start.
func (c *RunCollector) IncRunsStarted(mode model.Mode) {
	if c == nil || c.RunsStarted == nil {
		return
	}
	c.RunsStarted.WithLabelValues(mode.String()).Inc()
}

// IncCheckpointEvents counts a pass or miss.
func (c *RunCollector) IncCheckpointEvents(kind model.CrossingKind) {
	if c == nil || c.CheckpointEvents == nil {
		return
	}
	c.CheckpointEvents.WithLabelValues(kind.String()).Inc()
}

// ObserveRunEnded records the result and duration of a concluded run.
func (c *RunCollector) ObserveRunEnded(out model.Outcome) {
	if c == nil {
		return
	}
	result := "failure"
	if out.Success {
		result = "success"
	}
	if c.RunsEnded != nil {
		c.RunsEnded.WithLabelValues(result).Inc()
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(out.Elapsed)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
