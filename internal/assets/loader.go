package assets

import (
	"context"
	"sync"

	"github.com/signalsfoundry/ringflight/internal/logging"
	"github.com/signalsfoundry/ringflight/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Loader walks a chain of candidate paths and settles on the first model
// that loads, or the placeholder.
type Loader struct {
	src   Source
	paths []string
	log   logging.Logger

	once  sync.Once
	ready chan struct{}
	model Model
}

// NewLoader returns a loader that tries paths in order.
func NewLoader(src Source, log logging.Logger, paths ...string) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	return &Loader{
		src:   src,
		paths: paths,
		log:   log,
		ready: make(chan struct{}),
	}
}

// Load tries each path and returns the first model that loads. It falls
// back to Placeholder and never returns an error.
func (l *Loader) Load(ctx context.Context) Model {
	ctx, span := observability.Tracer().Start(ctx, "assets.Load",
		trace.WithAttributes(attribute.Int("assets.candidates", len(l.paths))))
	defer span.End()

	for i, path := range l.paths {
		m, err := l.try(ctx, path)
		if err == nil {
			span.SetAttributes(attribute.String("assets.path", path), attribute.Int("assets.attempt", i+1))
			l.log.Info(ctx, "aircraft model loaded",
				logging.String("path", m.Path),
				logging.Int("meshes", m.Meshes),
				logging.Int("animations", m.Animations),
			)
			return m
		}
		l.log.Warn(ctx, "aircraft model failed to load",
			logging.String("path", path),
			logging.Int("attempt", i+1),
			logging.Err(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	span.SetAttributes(attribute.Bool("assets.placeholder", true))
	l.log.Warn(ctx, "using placeholder aircraft")
	return Placeholder()
}

func (l *Loader) try(ctx context.Context, path string) (Model, error) {
	ctx, span := observability.Tracer().Start(ctx, "assets.Source.Load",
		trace.WithAttributes(attribute.String("assets.path", path)))
	defer span.End()

	m, err := l.src.Load(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return m, err
}

// Start runs Load in the background once. Ready closes when the result is
// available.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			l.model = l.Load(ctx)
			close(l.ready)
		}()
	})
}

// Ready is closed once the background load has settled.
func (l *Loader) Ready() <-chan struct{} { return l.ready }

// Model returns the loaded model and whether loading has finished.
func (l *Loader) Model() (Model, bool) {
	select {
	case <-l.ready:
		return l.model, true
	default:
		return Model{}, false
	}
}
