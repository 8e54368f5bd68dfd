// Package config resolves runner settings from command-line flags with
// RINGFLIGHT_* environment fallbacks, and loads handling tuning files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is returned for settings the runner cannot use.
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "RINGFLIGHT_"

// Runner modes.
const (
	ModeTimed = "timed"
	ModeFree  = "free"
)

// Trace exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Tracing selects where run spans go.
type Tracing struct {
	Enabled     bool
	Exporter    string
	ServiceName string
	// Endpoint is the OTLP gRPC collector address.
	Endpoint    string
	SampleRatio float64
}

// Validate checks the exporter and sampling settings.
func (t Tracing) Validate() error {
	switch {
	case t.Exporter != ExporterStdout && t.Exporter != ExporterOTLP:
		return fmt.Errorf("%w: tracing exporter %q", ErrInvalidConfig, t.Exporter)
	case t.SampleRatio < 0 || t.SampleRatio > 1:
		return fmt.Errorf("%w: tracing sample ratio %v outside [0, 1]", ErrInvalidConfig, t.SampleRatio)
	case t.ServiceName == "":
		return fmt.Errorf("%w: tracing service name is empty", ErrInvalidConfig)
	}
	return nil
}

// Config is the resolved runner configuration.
type Config struct {
	Mode        string
	Runs        int
	Duration    time.Duration
	Tick        time.Duration
	Accelerated bool
	Autopilot   bool

	MetricsAddr string

	CoursePath string
	TuningPath string
	RecordPath string

	AircraftModel    string
	AircraftFallback string

	TerrainCacheSize int

	Tracing Tracing
}

// Default returns the settings used when neither a flag nor an env var is set.
func Default() Config {
	return Config{
		Mode:             ModeTimed,
		Runs:             1,
		Duration:         2 * time.Minute,
		Tick:             time.Second / 60,
		Accelerated:      true,
		Autopilot:        true,
		MetricsAddr:      ":9090",
		AircraftModel:    "src/assets/blender/airplane.glb",
		AircraftFallback: "assets/airplane.glb",
		TerrainCacheSize: 1 << 16,
		Tracing: Tracing{
			Exporter:    ExporterStdout,
			ServiceName: "ringflight",
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
		},
	}
}

// Load parses args (without the program name). Each flag's default comes
// from its RINGFLIGHT_* variable when getenv returns a value for it.
func Load(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	env := envReader{getenv: getenv}

	fs := flag.NewFlagSet("ringflight", flag.ContinueOnError)
	if stderr != nil {
		fs.SetOutput(stderr)
	}
	fs.StringVar(&cfg.Mode, "mode", env.str("MODE", cfg.Mode), "run mode: timed or free")
	fs.IntVar(&cfg.Runs, "runs", env.intVal("RUNS", cfg.Runs), "number of timed runs to fly back to back")
	fs.DurationVar(&cfg.Duration, "duration", env.durationVal("DURATION", cfg.Duration), "total simulated duration")
	fs.DurationVar(&cfg.Tick, "tick", env.durationVal("TICK", cfg.Tick), "wall-clock time per frame in real-time mode")
	fs.BoolVar(&cfg.Accelerated, "accelerated", env.boolVal("ACCELERATED", cfg.Accelerated), "run frames as fast as possible instead of real time")
	fs.BoolVar(&cfg.Autopilot, "autopilot", env.boolVal("AUTOPILOT", cfg.Autopilot), "fly with the built-in autopilot")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", env.str("METRICS_ADDR", cfg.MetricsAddr), "HTTP address for Prometheus /metrics (empty disables)")
	fs.StringVar(&cfg.CoursePath, "course", env.str("COURSE", cfg.CoursePath), "path to a JSON course (default: built-in course)")
	fs.StringVar(&cfg.TuningPath, "tuning", env.str("TUNING", cfg.TuningPath), "path to a JSON tuning file")
	fs.StringVar(&cfg.RecordPath, "record", env.str("RECORD", cfg.RecordPath), "write a flight recording to this path")
	fs.StringVar(&cfg.AircraftModel, "aircraft", env.str("AIRCRAFT", cfg.AircraftModel), "primary aircraft model (.glb)")
	fs.StringVar(&cfg.AircraftFallback, "aircraft-fallback", env.str("AIRCRAFT_FALLBACK", cfg.AircraftFallback), "fallback aircraft model (.glb)")
	fs.IntVar(&cfg.TerrainCacheSize, "terrain-cache", env.intVal("TERRAIN_CACHE", cfg.TerrainCacheSize), "terrain height cache entries (0 disables)")

	fs.BoolVar(&cfg.Tracing.Enabled, "tracing", env.boolVal("TRACING_ENABLED", cfg.Tracing.Enabled), "export a span per run")
	fs.StringVar(&cfg.Tracing.Exporter, "tracing-exporter", env.str("TRACING_EXPORTER", cfg.Tracing.Exporter), "span exporter: stdout or otlp")
	fs.StringVar(&cfg.Tracing.ServiceName, "tracing-service", env.str("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName), "service.name resource attribute")
	fs.StringVar(&cfg.Tracing.Endpoint, "otlp-endpoint", env.str("OTLP_ENDPOINT", cfg.Tracing.Endpoint), "OTLP gRPC collector address")
	fs.Float64Var(&cfg.Tracing.SampleRatio, "tracing-sample-ratio", env.floatVal("TRACING_SAMPLE_RATIO", cfg.Tracing.SampleRatio), "fraction of runs traced, within [0, 1]")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Tracing.Exporter = strings.ToLower(cfg.Tracing.Exporter)
	if env.err != nil {
		return Config{}, env.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	switch {
	case c.Mode != ModeTimed && c.Mode != ModeFree:
		return fmt.Errorf("%w: mode %q", ErrInvalidConfig, c.Mode)
	case c.Runs < 1:
		return fmt.Errorf("%w: runs must be at least 1", ErrInvalidConfig)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	case c.Tick <= 0:
		return fmt.Errorf("%w: tick must be positive", ErrInvalidConfig)
	case c.TerrainCacheSize < 0:
		return fmt.Errorf("%w: terrain cache size must not be negative", ErrInvalidConfig)
	}
	return c.Tracing.Validate()
}

// Frames returns how many 60 Hz frames Duration spans.
func (c Config) Frames() uint64 {
	return uint64(c.Duration / (time.Second / 60))
}

// envReader keeps the first malformed variable it sees.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key, def string) string {
	if v := e.getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func (e *envReader) intVal(key string, def int) int {
	v := e.getenv(envPrefix + key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) floatVal(key string, def float64) float64 {
	v := e.getenv(envPrefix + key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envReader) boolVal(key string, def bool) bool {
	v := e.getenv(envPrefix + key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) durationVal(key string, def time.Duration) time.Duration {
	v := e.getenv(envPrefix + key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, envPrefix, key, value, err)
	}
}
