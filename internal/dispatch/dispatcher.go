// Package dispatch sends a submitted message through the relay and records the
// outcome in the transcript.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"pulsechat-backend/internal/transcript"
	"pulsechat-backend/internal/types"
	"pulsechat-backend/internal/typing"
)

const (
	FallbackText = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment!"

	msgSending  = "Getting AI response..."
	msgReceived = "AI response received! Watch the animation respond."
	msgFailed   = "Failed to get AI response. Please try again."
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being sent")
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient status message for the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Dispatcher allows at most one send at a time. A second submit while one is
// in flight is rejected without touching the transcript.
type Dispatcher struct {
	tracker    *typing.Tracker
	transcript *transcript.Transcript
	relay      RelayClient
	notifier   Notifier
	clock      clockwork.Clock

	inFlight atomic.Bool
}

type Option func(*Dispatcher)

func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

func New(tracker *typing.Tracker, tr *transcript.Transcript, relay RelayClient, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tracker:    tracker,
		transcript: tr,
		relay:      relay,
		clock:      clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Sending reports whether a send is in flight.
func (d *Dispatcher) Sending() bool { return d.inFlight.Load() }

// Send relays text and appends the resulting exchange. On relay failure the
// fallback exchange is still appended and returned alongside the error.
func (d *Dispatcher) Send(ctx context.Context, text string) (transcript.Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return transcript.Exchange{}, ErrEmptyMessage
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return transcript.Exchange{}, ErrSendInFlight
	}
	defer d.inFlight.Store(false)

	if d.tracker != nil {
		d.tracker.Submit()
	}

	history := historyOf(d.transcript.All())
	d.notify(LevelInfo, msgSending)

	reply, err := d.relay.Relay(ctx, text, history)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrMalformedResponse
	}

	ex := transcript.Exchange{User: text, AI: reply, Timestamp: d.clock.Now()}
	if err != nil {
		log.Warn().Err(err).Msg("dispatch: relay failed, using fallback reply")
		ex.AI = FallbackText
	}
	if appendErr := d.transcript.Append(ctx, ex); appendErr != nil {
		return transcript.Exchange{}, fmt.Errorf("append exchange: %w", appendErr)
	}

	if err != nil {
		d.notify(LevelError, msgFailed)
		return ex, fmt.Errorf("send message: %w", err)
	}
	d.notify(LevelSuccess, msgReceived)
	return ex, nil
}

func (d *Dispatcher) notify(level Level, msg string) {
	if d.notifier != nil {
		d.notifier.Notify(Notification{Level: level, Message: msg})
	}
}

func historyOf(exchanges []transcript.Exchange) []types.HistoryEntry {
	out := make([]types.HistoryEntry, len(exchanges))
	for i, ex := range exchanges {
		out[i] = types.HistoryEntry{User: ex.User, AI: ex.AI}
	}
	return out
}
