package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestFrameClockWholeSecondsLandOnFrames(t *testing.T) {
	c := NewFrameClock(epoch, 60)
	for i := 0; i < 180; i++ {
		c.Advance()
	}
	if got, want := c.Now(), epoch.Add(3*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after 180 frames = %v, want %v", got, want)
	}
	if c.Frame() != 180 {
		t.Fatalf("Frame() = %d, want 180", c.Frame())
	}
	if c.Since() != 3*time.Second {
		t.Fatalf("Since() = %v, want 3s", c.Since())
	}
}

func TestFrameClockDefaultsTo60FPS(t *testing.T) {
	c := NewFrameClock(epoch, 0)
	if c.FPS() != 60 {
		t.Fatalf("FPS() = %d, want 60", c.FPS())
	}
	if c.Step() != time.Second/60 {
		t.Fatalf("Step() = %v", c.Step())
	}
}

func TestFrameClockAfterFiresOnDueFrame(t *testing.T) {
	c := NewFrameClock(epoch, 60)
	ch := c.After(time.Second)

	for i := 0; i < 59; i++ {
		c.Advance()
	}
	select {
	case <-ch:
		t.Fatalf("After fired before its deadline")
	default:
	}

	c.Advance()
	select {
	case got := <-ch:
		if want := epoch.Add(time.Second); !got.Equal(want) {
			t.Fatalf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatalf("After did not fire on the due frame")
	}

	if immediate := c.After(0); len(immediate) != 1 {
		t.Fatalf("After(0) should be ready immediately")
	}
}

func TestTimeControllerAcceleratedRunsFrames(t *testing.T) {
	tc := NewTimeController(epoch, 5*time.Millisecond, Accelerated)

	var frames []uint64
	tc.AddListener(func(frame uint64, _ time.Time) {
		frames = append(frames, frame)
	})

	if err := tc.Run(context.Background(), 30); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(frames) != 30 || frames[0] != 1 || frames[29] != 30 {
		t.Fatalf("listener saw frames %v", frames)
	}
	if got, want := tc.Now(), epoch.Add(150*time.Millisecond); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	tc := NewTimeController(epoch, 5*time.Millisecond, RealTime)

	done := tc.Start(context.Background(), 3)
	<-done

	if got, want := tc.Now(), epoch.Add(15*time.Millisecond); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	if tc.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3", tc.Frames())
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	tc := NewTimeController(epoch, time.Millisecond, RealTime)
	ctx, cancel := context.WithCancel(context.Background())

	tc.AddListener(func(frame uint64, _ time.Time) {
		if frame == 5 {
			cancel()
		}
	})

	err := tc.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if tc.Frames() != 5 {
		t.Fatalf("Frames() = %d, want 5", tc.Frames())
	}
}

func TestTimeControllerAfter(t *testing.T) {
	tc := NewTimeController(epoch, 10*time.Millisecond, Accelerated)
	ch := tc.After(25 * time.Millisecond)

	if err := tc.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ch) != 0 {
		t.Fatalf("After fired early")
	}
	if err := tc.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case got := <-ch:
		if want := epoch.Add(30 * time.Millisecond); !got.Equal(want) {
			t.Fatalf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatalf("After did not fire")
	}
}
