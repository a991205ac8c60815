package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"pulsechat-backend/internal/animation"
	"pulsechat-backend/internal/dispatch"
	"pulsechat-backend/internal/transcript"
	"pulsechat-backend/internal/typing"
)

const (
	GreetingUser = "Hello! How does this animation work?"
	GreetingAI   = "Hi there! The 3D animation above responds to your typing in real-time. As you type, the objects will spin faster and change colors. Try typing something to see the magic happen!"
)

var ErrNotFound = errors.New("session not found")

type Config struct {
	Relay        dispatch.RelayClient
	Store        transcript.Store
	Clock        clockwork.Clock
	TypingQuiet  time.Duration
	TTL          time.Duration
	FPS          int
	SeedGreeting bool
	Scene        []animation.Object
}

// Manager owns every live session, keyed by id.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TypingQuiet <= 0 {
		cfg.TypingQuiet = typing.DefaultQuietInterval
	}
	if cfg.FPS <= 0 {
		cfg.FPS = animation.DefaultFPS
	}
	if cfg.Scene == nil {
		cfg.Scene = animation.DefaultScene()
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Create starts a fresh session, seeded with the greeting exchange when
// configured.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	s := m.build(id, transcript.New(id, m.cfg.Store))
	if m.cfg.SeedGreeting {
		greeting := transcript.Exchange{User: GreetingUser, AI: GreetingAI, Timestamp: m.cfg.Clock.Now()}
		if err := s.transcript.Append(ctx, greeting); err != nil {
			return nil, fmt.Errorf("seed greeting: %w", err)
		}
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	log.Info().Str("session", id).Msg("session: created")
	return s, nil
}

// Get returns a live session. A session evicted from memory is restored from
// the store when it has stored exchanges.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
		return s, nil
	}
	if m.cfg.Store == nil {
		return nil, ErrNotFound
	}

	tr, err := transcript.Restore(ctx, id, m.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if tr.Len() == 0 {
		return nil, ErrNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	s = m.build(id, tr)
	m.sessions[id] = s
	log.Info().Str("session", id).Int("exchanges", tr.Len()).Msg("session: restored")
	return s, nil
}

// Delete ends the session and drops its stored exchanges, so the id cannot be
// restored afterwards.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	if m.cfg.Store == nil {
		return nil
	}
	if err := m.cfg.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a send in flight are kept. Durable stores keep
// the exchanges of swept sessions; an Evicter store drops them.
func (m *Manager) Sweep() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.TTL)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Sending() || s.idleSince().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, s)
	}
	m.mu.Unlock()

	evicter, _ := m.cfg.Store.(transcript.Evicter)
	for _, s := range expired {
		s.close()
		if evicter != nil {
			evicter.Evict(s.ID)
		}
	}
	if len(expired) > 0 {
		log.Debug().Int("evicted", len(expired)).Msg("session: swept idle sessions")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.cfg.TTL <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := m.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := m.cfg.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

func (m *Manager) build(id string, tr *transcript.Transcript) *Session {
	return newSession(id, options{
		clock:      m.cfg.Clock,
		quiet:      m.cfg.TypingQuiet,
		fps:        m.cfg.FPS,
		scene:      m.cfg.Scene,
		relay:      m.cfg.Relay,
		transcript: tr,
	})
}
