// Package transcript holds the append-only log of chat exchanges for a session.
package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Exchange pairs one user message with the assistant's reply. It is never
// modified after being appended.
type Exchange struct {
	User      string
	AI        string
	Timestamp time.Time
}

var ErrIncomplete = errors.New("exchange requires user and ai text")

// Store persists exchanges so a session can be resumed. Stores only append,
// list and drop whole sessions; they never edit or reorder.
type Store interface {
	Save(ctx context.Context, sessionID string, ex Exchange) error
	Load(ctx context.Context, sessionID string) ([]Exchange, error)
	Delete(ctx context.Context, sessionID string) error
}

// Evicter is implemented by stores that hold exchanges only for as long as
// the session is live. The session manager calls Evict when it drops an idle
// session so the store does not outgrow the live set.
type Evicter interface {
	Evict(sessionID string)
}

// Transcript is the in-session ordered log. The in-memory slice is the source
// of truth; a failed store write is logged and does not drop the entry.
type Transcript struct {
	mu        sync.RWMutex
	sessionID string
	exchanges []Exchange
	store     Store
	followers []func(Exchange)
}

func New(sessionID string, store Store) *Transcript {
	return &Transcript{sessionID: sessionID, store: store}
}

// Restore loads previously stored exchanges for the session.
func Restore(ctx context.Context, sessionID string, store Store) (*Transcript, error) {
	t := New(sessionID, store)
	if store == nil {
		return t, nil
	}
	prior, err := store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	t.exchanges = prior
	return t, nil
}

// Append adds ex at the end and notifies followers.
func (t *Transcript) Append(ctx context.Context, ex Exchange) error {
	if strings.TrimSpace(ex.User) == "" || strings.TrimSpace(ex.AI) == "" {
		return ErrIncomplete
	}
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}

	t.mu.Lock()
	t.exchanges = append(t.exchanges, ex)
	followers := append([]func(Exchange){}, t.followers...)
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Save(ctx, t.sessionID, ex); err != nil {
			log.Warn().Err(err).Str("session", t.sessionID).Msg("transcript: persist failed")
		}
	}
	for _, fn := range followers {
		fn(ex)
	}
	return nil
}

// All returns a copy in chronological order.
func (t *Transcript) All() []Exchange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Exchange, len(t.exchanges))
	copy(out, t.exchanges)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.exchanges)
}

// last returns the newest exchange, if any.
func (t *Transcript) last() (Exchange, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.exchanges) == 0 {
		return Exchange{}, false
	}
	return t.exchanges[len(t.exchanges)-1], true
}

// Follow registers fn to run after every append, e.g. to scroll the view to
// the newest entry.
func (t *Transcript) Follow(fn func(Exchange)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.followers = append(t.followers, fn)
}
