package typing

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultQuietInterval is how long input must stay idle before typing stops.
const DefaultQuietInterval = time.Second

// Tracker debounces input events into State. Each input cancels the pending
// quiet timer and schedules a new one; only the most recently scheduled timer
// may clear the flag.
type Tracker struct {
	mu    sync.Mutex
	state *State
	clock clockwork.Clock
	quiet time.Duration
	timer clockwork.Timer
	gen   uint64
	draft string
}

type Option func(*Tracker)

func WithClock(c clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithQuietInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.quiet = d
		}
	}
}

func NewTracker(state *State, opts ...Option) *Tracker {
	t := &Tracker{
		state: state,
		clock: clockwork.NewRealClock(),
		quiet: DefaultQuietInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnInputChange records the draft and marks the session as typing.
// Listeners on the state are notified after the tracker lock is released.
func (t *Tracker) OnInputChange(text string) {
	t.mu.Lock()
	t.draft = text
	t.state.update(true)
	t.stopLocked()
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.quiet, func() { t.expire(gen) })
	t.mu.Unlock()

	t.state.flush()
}

// Submit cancels any pending timer, clears typing synchronously and returns
// the draft that was being composed.
func (t *Tracker) Submit() string {
	t.mu.Lock()
	t.stopLocked()
	draft := t.draft
	t.draft = ""
	t.state.update(false)
	t.mu.Unlock()

	t.state.flush()
	return draft
}

// Cancel drops the pending timer without touching the flag.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Draft returns the latest recorded input.
func (t *Tracker) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

// Pending reports whether a quiet timer is scheduled.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// stopLocked invalidates the live timer. Bumping gen makes a callback that
// already started before Stop a no-op.
func (t *Tracker) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.state.update(false)
	t.mu.Unlock()

	t.state.flush()
}
