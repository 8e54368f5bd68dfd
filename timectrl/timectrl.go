package timectrl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SimClock is an interface for accessing simulation time. The scheduler and
// the session depend on this abstraction rather than on a concrete clock so
// tests can step time by hand.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the simulation time once d has
	// elapsed in simulation time.
	After(d time.Duration) <-chan time.Time
}

// FrameClock is a SimClock that only moves when Advance is called. Each
// call moves time by exactly one frame of 1/fps seconds. Frame times are
// derived from the frame count, so whole seconds land on whole frames
// without accumulated rounding.
type FrameClock struct {
	mu      sync.RWMutex
	start   time.Time
	fps     int64
	frame   uint64
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewFrameClock constructs a clock at start. fps <= 0 selects 60.
func NewFrameClock(start time.Time, fps int) *FrameClock {
	if fps <= 0 {
		fps = 60
	}
	return &FrameClock{start: start, fps: int64(fps)}
}

// FPS returns the number of frames per simulated second.
func (c *FrameClock) FPS() int { return int(c.fps) }

// Step returns the nominal duration of one frame.
func (c *FrameClock) Step() time.Duration { return time.Second / time.Duration(c.fps) }

// Now returns the current simulation time. Implements SimClock.
func (c *FrameClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeAtLocked(c.frame)
}

// Frame returns how many frames have been advanced.
func (c *FrameClock) Frame() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Since returns the simulated time elapsed since the clock was created.
func (c *FrameClock) Since() time.Duration {
	return c.Now().Sub(c.start)
}

func (c *FrameClock) timeAtLocked(frame uint64) time.Time {
	return c.start.Add(time.Duration(frame) * time.Second / time.Duration(c.fps))
}

// Advance moves the clock forward by one frame, releases any After channels
// that are now due and returns the new time.
func (c *FrameClock) Advance() time.Time {
	c.mu.Lock()
	c.frame++
	now := c.timeAtLocked(c.frame)
	kept := c.waiters[:0]
	var due []waiter
	for _, w := range c.waiters {
		if w.at.After(now) {
			kept = append(kept, w)
			continue
		}
		due = append(due, w)
	}
	c.waiters = kept
	c.mu.Unlock()

	for _, w := range due {
		w.ch <- now
	}
	return now
}

// After returns a channel that receives the simulation time on the first
// Advance that reaches now+d. Implements SimClock.
func (c *FrameClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.timeAtLocked(c.frame)
	if d <= 0 {
		ch <- now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: now.Add(d), ch: ch})
	return ch
}

// Mode describes how the TimeController paces frames.
type Mode int

const (
	// RealTime paces frames to wall-clock time, one frame per Tick.
	RealTime Mode = iota
	// Accelerated runs frames as quickly as the listeners allow.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController runs the fixed-step frame loop and notifies registered
// listeners once per frame. It implements SimClock over the frames it has
// driven so far.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks StartTime plus Tick for every frame driven.
	currentTime time.Time
	frames      uint64

	listeners []func(frame uint64, now time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the time of the last frame driven. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Frames returns the number of frames driven so far.
func (tc *TimeController) Frames() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frames
}

// After returns a channel that receives the controller time once d of
// simulation time has been driven. Implements SimClock.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	deadline := tc.Now().Add(d)
	if d <= 0 {
		ch <- tc.Now()
		return ch
	}
	fired := false
	tc.AddListener(func(_ uint64, now time.Time) {
		if fired || now.Before(deadline) {
			return
		}
		fired = true
		ch <- now
	})
	return ch
}

// AddListener registers a callback invoked on every frame, in registration
// order, from the loop goroutine.
func (tc *TimeController) AddListener(fn func(frame uint64, now time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run drives frames until frames have been run (0 means unbounded) or ctx
// is done. It returns ctx.Err() when cancelled and nil otherwise.
func (tc *TimeController) Run(ctx context.Context, frames uint64) error {
	var limiter *rate.Limiter
	if tc.Mode == RealTime && tc.Tick > 0 {
		limiter = rate.NewLimiter(rate.Every(tc.Tick), 1)
	}

	for n := uint64(0); frames == 0 || n < frames; n++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		tc.mu.Lock()
		tc.frames++
		tc.currentTime = tc.currentTime.Add(tc.Tick)
		frame, now := tc.frames, tc.currentTime
		listeners := append([]func(uint64, time.Time){}, tc.listeners...)
		tc.mu.Unlock()

		for _, fn := range listeners {
			fn(frame, now)
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. It returns a channel
// that is closed when the loop finishes.
func (tc *TimeController) Start(ctx context.Context, frames uint64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tc.Run(ctx, frames)
	}()
	return done
}
