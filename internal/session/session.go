// Package session wires one chat widget's state together: typing signal,
// transcript, dispatcher and animation driver, plus the events a connected
// client watches.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"pulsechat-backend/internal/animation"
	"pulsechat-backend/internal/dispatch"
	"pulsechat-backend/internal/transcript"
	"pulsechat-backend/internal/types"
	"pulsechat-backend/internal/typing"
)

const (
	maxNotifications = 20
	eventBuffer      = 64
)

const (
	EventTyping       = "typing"
	EventExchange     = "exchange"
	EventNotification = "notification"
	EventFrame        = "frame"
)

type Session struct {
	ID string

	clock   clockwork.Clock
	started time.Time
	fps     int
	scene   []animation.Object

	state      *typing.State
	tracker    *typing.Tracker
	transcript *transcript.Transcript
	dispatcher *dispatch.Dispatcher

	driverMu sync.Mutex
	driver   *animation.Driver

	mu       sync.Mutex
	lastSeen time.Time
	notes    []dispatch.Notification
	nextSub  int
	subs     map[int]chan types.Event
	closed   bool
}

type options struct {
	clock      clockwork.Clock
	quiet      time.Duration
	fps        int
	scene      []animation.Object
	relay      dispatch.RelayClient
	transcript *transcript.Transcript
}

func newSession(id string, o options) *Session {
	now := o.clock.Now()
	s := &Session{
		ID:         id,
		clock:      o.clock,
		started:    now,
		fps:        o.fps,
		scene:      o.scene,
		state:      typing.NewState(),
		transcript: o.transcript,
		driver:     animation.NewDriver(o.scene),
		lastSeen:   now,
		subs:       make(map[int]chan types.Event),
	}
	s.tracker = typing.NewTracker(s.state, typing.WithClock(o.clock), typing.WithQuietInterval(o.quiet))
	s.dispatcher = dispatch.New(s.tracker, s.transcript, o.relay,
		dispatch.WithClock(o.clock),
		dispatch.WithNotifier(dispatch.NotifierFunc(s.notify)),
	)

	s.state.Subscribe(func(v bool) {
		s.broadcast(types.Event{Type: EventTyping, Typing: &v})
	})
	s.transcript.Follow(func(ex transcript.Exchange) {
		wire := toWire(ex)
		s.broadcast(types.Event{Type: EventExchange, Exchange: &wire})
	})
	return s
}

// SubmitMessage sends text through the relay. The returned exchange is the
// one appended to the transcript, which on relay failure carries the
// fallback reply alongside a non-nil error.
func (s *Session) SubmitMessage(ctx context.Context, text string) (transcript.Exchange, error) {
	s.touch()
	return s.dispatcher.Send(ctx, text)
}

// OnTypingChanged registers fn for typing transitions. fn runs with no
// session or tracker lock held, so it may feed input back into the session.
func (s *Session) OnTypingChanged(fn func(bool)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

func (s *Session) GetTranscript() []transcript.Exchange {
	s.touch()
	return s.transcript.All()
}

func (s *Session) InputChanged(text string) {
	s.touch()
	s.tracker.OnInputChange(text)
}

func (s *Session) Typing() bool  { return s.state.Typing() }
func (s *Session) Sending() bool { return s.dispatcher.Sending() }
func (s *Session) Draft() string { return s.tracker.Draft() }

func (s *Session) Scene() []animation.Object {
	return append([]animation.Object(nil), s.scene...)
}

// Frame steps the session's shared driver at the time elapsed since the
// session started.
func (s *Session) Frame() animation.Frame {
	elapsed := s.clock.Since(s.started).Seconds()
	typing := s.state.Typing()
	s.driverMu.Lock()
	defer s.driverMu.Unlock()
	return s.driver.Step(typing, elapsed)
}

// NewLoop returns a render loop with its own driver, sampling this session's
// typing state. Each stream gets one so rotations don't jump between viewers.
func (s *Session) NewLoop(sink func(animation.Frame)) *animation.Loop {
	return &animation.Loop{
		Driver: animation.NewDriver(s.scene),
		Clock:  s.clock,
		FPS:    s.fps,
		Start:  s.started,
		Typing: s.state.Typing,
		Sink:   sink,
	}
}

// Notifications returns the most recent toasts, oldest first.
func (s *Session) Notifications() []dispatch.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch.Notification(nil), s.notes...)
}

// Subscribe returns a channel of session events. Slow readers miss events
// rather than block the session. The channel is closed on cancel or when the
// session is evicted.
func (s *Session) Subscribe() (<-chan types.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan types.Event, eventBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) notify(n dispatch.Notification) {
	s.mu.Lock()
	s.notes = append(s.notes, n)
	if len(s.notes) > maxNotifications {
		s.notes = s.notes[len(s.notes)-maxNotifications:]
	}
	s.mu.Unlock()
	s.broadcast(types.Event{Type: EventNotification, Notification: n})
}

func (s *Session) broadcast(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.tracker.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func toWire(ex transcript.Exchange) types.Exchange {
	return types.Exchange{User: ex.User, AI: ex.AI, Timestamp: ex.Timestamp}
}

// WireTranscript converts exchanges to their JSON form.
func WireTranscript(exs []transcript.Exchange) []types.Exchange {
	out := make([]types.Exchange, len(exs))
	for i, ex := range exs {
		out[i] = toWire(ex)
	}
	return out
}
