package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/ringflight/core"
	"github.com/signalsfoundry/ringflight/internal/assets"
	"github.com/signalsfoundry/ringflight/internal/autopilot"
	"github.com/signalsfoundry/ringflight/internal/config"
	"github.com/signalsfoundry/ringflight/internal/hud"
	"github.com/signalsfoundry/ringflight/internal/logging"
	"github.com/signalsfoundry/ringflight/internal/observability"
	"github.com/signalsfoundry/ringflight/internal/recorder"
	"github.com/signalsfoundry/ringflight/internal/sim/session"
	"github.com/signalsfoundry/ringflight/model"
	"github.com/signalsfoundry/ringflight/terrain"
	"github.com/signalsfoundry/ringflight/timectrl"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "ringflight exited", logging.Err(err))
		os.Exit(1)
	}
}

// controls is the part of the session the runner drives. Both
// *session.Session and *recorder.Recorder satisfy it.
type controls interface {
	AttachAircraft()
	StartTimed()
	Restart()
	StartFreeFlight()
	Tick(in model.ControlInput) model.Frame
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	tuning, err := config.LoadTuningFile(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	course, err := loadCourse(cfg.CoursePath)
	if err != nil {
		return err
	}

	var field terrain.HeightField = terrain.Field{}
	if cfg.TerrainCacheSize > 0 {
		cached, err := terrain.NewCached(terrain.Field{}, cfg.TerrainCacheSize)
		if err != nil {
			return fmt.Errorf("terrain cache: %w", err)
		}
		field = cached
	}

	reg := prometheus.NewRegistry()
	runMetrics, err := observability.NewRunCollector(reg)
	if err != nil {
		return fmt.Errorf("run metrics: %w", err)
	}
	schedMetrics, err := observability.NewSchedulerCollector(reg)
	if err != nil {
		return fmt.Errorf("scheduler metrics: %w", err)
	}

	sess := session.New(log,
		session.WithCourse(course),
		session.WithFlightParams(tuning.Flight),
		session.WithTrackParams(tuning.Track),
		session.WithRunParams(tuning.Run),
		session.WithHeightField(field),
		session.WithMetricsRecorder(runMetrics),
		session.WithSchedulerMetrics(schedMetrics),
	)
	sess.Subscribe(eventLogger(ctx, sess, log))

	var ctl controls = sess
	var rec *recorder.Recorder
	if cfg.RecordPath != "" {
		rec = recorder.New(sess)
		ctl = rec
	}

	log.Info(ctx, "starting ringflight",
		logging.String("mode", cfg.Mode),
		logging.String("course", course.Name),
		logging.Int("checkpoints", course.Len()),
		logging.Duration("duration", cfg.Duration),
		logging.Bool("accelerated", cfg.Accelerated),
		logging.Bool("autopilot", cfg.Autopilot),
	)

	g, gctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})
	loader := assets.NewLoader(assets.FileSource{}, log, cfg.AircraftModel, cfg.AircraftFallback)

	g.Go(func() error {
		defer close(loopDone)
		return runSimLoop(gctx, cfg, ctl, sess, loader, runMetrics, log)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(runMetrics)}
		g.Go(func() error {
			log.Info(ctx, "serving Prometheus metrics", logging.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-loopDone:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if rec != nil {
		if saveErr := recorder.Save(cfg.RecordPath, rec.Recording()); saveErr != nil {
			log.Error(ctx, "failed to save recording", logging.String("path", cfg.RecordPath), logging.Err(saveErr))
		} else {
			log.Info(ctx, "saved recording", logging.String("path", cfg.RecordPath))
		}
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info(ctx, "interrupted")
		return nil
	}
	return err
}

func loadCourse(path string) (core.Course, error) {
	if path == "" {
		return core.DefaultCourse(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return core.Course{}, fmt.Errorf("open course %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadCourse(f)
}

func metricsMux(runMetrics *observability.RunCollector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", runMetrics.Handler())
	return mux
}

// runSimLoop waits for the aircraft model, starts the first run and drives
// the session once per controller frame until the configured duration or
// run count is reached.
func runSimLoop(
	ctx context.Context,
	cfg config.Config,
	ctl controls,
	sess *session.Session,
	loader *assets.Loader,
	runMetrics *observability.RunCollector,
	log logging.Logger,
) error {
	loader.Start(ctx)
	select {
	case <-loader.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	aircraft, _ := loader.Model()
	log.Info(ctx, "aircraft ready",
		logging.String("model", aircraft.Name),
		logging.Bool("placeholder", aircraft.Placeholder),
	)

	ctl.AttachAircraft()
	if cfg.Mode == config.ModeFree {
		ctl.StartFreeFlight()
	} else {
		ctl.StartTimed()
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(session.Epoch, cfg.Tick, mode)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pilot := autopilot.New()
	rings := hud.NewRingCosmetics()
	frame := sess.Frame()
	completed := 0
	_, runSpan := observability.StartRunSpan(ctx, 1, frame.Mode)

	tc.AddListener(func(_ uint64, _ time.Time) {
		var in model.ControlInput
		if cfg.Autopilot {
			in = pilot.Next(frame)
		}
		start := time.Now()
		frame = ctl.Tick(in)
		runMetrics.ObserveTick(time.Since(start))
		looks := rings.Update(frame)

		if frame.Phase != model.PhaseEnded || frame.Outcome == nil {
			return
		}
		observability.EndRunSpan(runSpan, frame.Outcome)

		completed++
		states := hud.CountStates(looks)
		log.Info(ctx, "course rings",
			logging.Int("run", completed),
			logging.Int("rings_passed", states[hud.RingPassed]),
			logging.Int("rings_behind", states[hud.RingBehind]),
		)
		if completed >= cfg.Runs {
			cancel()
			return
		}
		ctl.Restart()
		frame = sess.Frame()
		_, runSpan = observability.StartRunSpan(ctx, completed+1, frame.Mode)
	})

	err := tc.Run(loopCtx, cfg.Frames())
	if completed < cfg.Runs {
		runSpan.End()
	}
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = nil
	}

	status := hud.Compose(sess.Frame())
	log.Info(ctx, "simulation complete",
		logging.Uint64("frames", tc.Frames()),
		logging.Int("runs_completed", completed),
		logging.String("score", status.Score),
		logging.String("timer", status.Timer),
		logging.String("speed", status.Speed),
	)
	return err
}

// eventLogger reports session events with the HUD's wording.
func eventLogger(ctx context.Context, sess *session.Session, log logging.Logger) func(model.Event) {
	return func(ev model.Event) {
		switch ev.Type {
		case model.EventGraceStarted:
			text := "Last chance"
			if ev.LastPassed {
				text = "Finishing"
			}
			log.Info(ctx, "final checkpoint reached", logging.String("hud", text))
		case model.EventRunEnded:
			status := hud.Compose(sess.Frame())
			log.Info(ctx, "run ended",
				logging.String("result", status.Result),
				logging.String("score", status.Score),
			)
		}
	}
}
