package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// Registry owns every live session keyed by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	dir      *Directory
	now      func() time.Time
}

// NewRegistry constructs an empty registry bound to dir.
func NewRegistry(dir *Directory, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{sessions: make(map[string]*Session), dir: dir, now: now}
}

// Create opens a session in Waiting with the given initial members; the first
// member becomes host. Binding is all or nothing.
func (r *Registry) Create(initial []string, settings domain.Settings) (*Session, []Event, error) {
	if len(initial) == 0 {
		return nil, nil, domain.ErrEmptyParticipant
	}

	s := newSession(uuid.NewString(), settings, r.dir, r.now())
	var events []Event
	for i, id := range initial {
		added, err := s.AddParticipant(id)
		if err != nil {
			for _, prev := range initial[:i] {
				r.dir.unbind(prev, s.ID)
			}
			return nil, nil, err
		}
		events = append(events, added...)
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, events, nil
}

// Lookup returns the session with the given id.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ListActive returns every session not yet Ended, oldest first.
func (r *Registry) ListActive() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	active := out[:0]
	for _, s := range out {
		if !s.Phase().Terminal() {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}

// Remove forgets a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of sessions held, ended or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
