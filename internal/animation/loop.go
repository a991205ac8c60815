package animation

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultFPS = 60

// Loop drives a Driver at a fixed rate. It never restarts; changes in the
// typing signal only re-parameterise the next frame.
type Loop struct {
	Driver *Driver
	Clock  clockwork.Clock
	FPS    int
	// Start anchors elapsed time; zero means the moment Run is called.
	Start time.Time
	// Typing is sampled once per frame.
	Typing func() bool
	// Sink receives every frame and must not block.
	Sink func(Frame)
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	clock := l.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	fps := l.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	start := l.Start
	if start.IsZero() {
		start = clock.Now()
	}

	ticker := clock.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.Chan():
			typing := false
			if l.Typing != nil {
				typing = l.Typing()
			}
			frame := l.Driver.Step(typing, now.Sub(start).Seconds())
			if l.Sink != nil {
				l.Sink(frame)
			}
		}
	}
}
