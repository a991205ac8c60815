// Package typing turns keystroke activity into a debounced "is typing" signal.
package typing

import "sync"

// State is the per-session typing flag. It is shared explicitly between the
// tracker, the dispatcher and the render loop rather than held globally.
type State struct {
	mu        sync.RWMutex
	typing    bool
	nextID    int
	listeners map[int]func(bool)
	queue     []bool
	flushing  bool
}

func NewState() *State {
	return &State{listeners: make(map[int]func(bool))}
}

// Typing reports the current value.
func (s *State) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// Set updates the flag and notifies listeners when the value changes.
// Listeners run synchronously, in transition order, with no lock held, so a
// listener may itself call Set or feed the tracker.
func (s *State) Set(v bool) {
	s.update(v)
	s.flush()
}

// update records v and queues a transition without notifying anyone.
func (s *State) update(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing == v {
		return
	}
	s.typing = v
	s.queue = append(s.queue, v)
}

// flush delivers queued transitions. If a flush is already running, on this
// goroutine or another, it picks up the new entries instead.
func (s *State) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.queue) > 0 {
		v := s.queue[0]
		s.queue = s.queue[1:]
		ls := make([]func(bool), 0, len(s.listeners))
		for _, fn := range s.listeners {
			ls = append(ls, fn)
		}
		s.mu.Unlock()
		for _, fn := range ls {
			fn(v)
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

// Subscribe registers fn for transitions and returns a function removing it.
func (s *State) Subscribe(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
