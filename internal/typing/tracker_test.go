package typing

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitions struct {
	mu  sync.Mutex
	got []bool
}

func (tr *transitions) record(v bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, v)
}

func (tr *transitions) snapshot() []bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]bool(nil), tr.got...)
}

func newTestTracker(t *testing.T) (*Tracker, *State, *clockwork.FakeClock, *transitions) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	state := NewState()
	tr := &transitions{}
	state.Subscribe(tr.record)
	return NewTracker(state, WithClock(clock)), state, clock, tr
}

func TestTrackerInputSetsTypingImmediately(t *testing.T) {
	tracker, state, _, tr := newTestTracker(t)

	tracker.OnInputChange("h")

	assert.True(t, state.Typing())
	assert.Equal(t, []bool{true}, tr.snapshot())
	assert.Equal(t, "h", tracker.Draft())
	assert.True(t, tracker.Pending())
}

func TestTrackerStopsAfterQuietInterval(t *testing.T) {
	tracker, state, clock, tr := newTestTracker(t)

	tracker.OnInputChange("hello")
	clock.Advance(999 * time.Millisecond)
	assert.True(t, state.Typing())

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return !state.Typing() }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false}, tr.snapshot())
	assert.False(t, tracker.Pending())
}

func TestTrackerRapidKeystrokesStayTyping(t *testing.T) {
	tracker, state, clock, tr := newTestTracker(t)

	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		tracker.OnInputChange(text)
		clock.Advance(600 * time.Millisecond)
		require.True(t, state.Typing(), "typing dropped while keystrokes were < 1s apart")
	}

	// 600ms elapsed since the last keystroke; 400ms more ends the window.
	clock.Advance(399 * time.Millisecond)
	assert.True(t, state.Typing())
	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return !state.Typing() }, time.Second, time.Millisecond)

	// Give any stale callback a chance to run; it must not produce another transition.
	clock.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, tr.snapshot())
}

func TestTrackerStaleTimerCannotClearNewerInput(t *testing.T) {
	tracker, state, _, _ := newTestTracker(t)

	tracker.OnInputChange("a")
	tracker.mu.Lock()
	staleGen := tracker.gen
	tracker.mu.Unlock()

	tracker.OnInputChange("ab")
	// Simulate the first timer's callback racing past Stop.
	tracker.expire(staleGen)

	assert.True(t, state.Typing())
	assert.True(t, tracker.Pending())
}

func TestTrackerSubmitForcesFalseSynchronously(t *testing.T) {
	tracker, state, clock, tr := newTestTracker(t)

	tracker.OnInputChange("send me")
	draft := tracker.Submit()

	assert.Equal(t, "send me", draft)
	assert.False(t, state.Typing())
	assert.False(t, tracker.Pending())
	assert.Empty(t, tracker.Draft())

	clock.Advance(2 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, tr.snapshot())
}

func TestTrackerCancelKeepsState(t *testing.T) {
	tracker, state, clock, _ := newTestTracker(t)

	tracker.OnInputChange("x")
	tracker.Cancel()
	clock.Advance(2 * time.Second)
	time.Sleep(10 * time.Millisecond)

	assert.True(t, state.Typing())
	assert.False(t, tracker.Pending())
}

func TestTrackerCustomQuietInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	state := NewState()
	tracker := NewTracker(state, WithClock(clock), WithQuietInterval(250*time.Millisecond))

	tracker.OnInputChange("x")
	clock.Advance(250 * time.Millisecond)
	require.Eventually(t, func() bool { return !state.Typing() }, time.Second, time.Millisecond)
}

func TestStateNotifiesOnTransitionsOnly(t *testing.T) {
	state := NewState()
	var calls atomic.Int32
	unsubscribe := state.Subscribe(func(bool) { calls.Add(1) })

	state.Set(false)
	state.Set(true)
	state.Set(true)
	state.Set(false)
	assert.Equal(t, int32(2), calls.Load())

	unsubscribe()
	state.Set(true)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTrackerRealClock(t *testing.T) {
	state := NewState()
	tracker := NewTracker(state, WithQuietInterval(20*time.Millisecond))

	tracker.OnInputChange("x")
	assert.True(t, state.Typing())
	require.Eventually(t, func() bool { return !state.Typing() }, time.Second, 5*time.Millisecond)
}

func TestListenerCanFeedTrackerAgain(t *testing.T) {
	tracker, state, _, tr := newTestTracker(t)
	var again atomic.Bool
	state.Subscribe(func(v bool) {
		if !v && again.CompareAndSwap(false, true) {
			tracker.OnInputChange("next")
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.OnInputChange("first")
		tracker.Submit()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker deadlocked on a re-entrant listener")
	}

	assert.True(t, state.Typing())
	assert.Equal(t, "next", tracker.Draft())
	assert.Equal(t, []bool{true, false, true}, tr.snapshot())
}
