package paginator

import (
	"sync"

	"github.com/sipeed/picopager/pkg/bus"
)

// Registry tracks live sessions by message.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) claim(s *Session) error {
	key := s.ref.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[key]; exists {
		return ErrSessionActive
	}
	r.sessions[key] = s
	return nil
}

func (r *Registry) release(s *Session) {
	key := s.ref.Key()
	r.mu.Lock()
	if current, exists := r.sessions[key]; exists && current == s {
		delete(r.sessions, key)
	}
	r.mu.Unlock()
}

func (r *Registry) Lookup(ref bus.MessageRef) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[ref.Key()]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
