package camera

import (
	"errors"
	"sync"
	"time"
)

// Capacity is the maximum number of cameras held by a Registry.
const Capacity = 8

// Registry holds the connected camera sessions in connection order, plus
// the index of the active one (the target of single-camera commands).
// The registry owns its sessions: Remove and Close disconnect them.
type Registry struct {
	mu       sync.RWMutex
	sessions []*Session
	active   int
}

// Info is a point-in-time view of one registered session.
type Info struct {
	Index          int       `json:"index"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Active         bool      `json:"active"`
	Connected      bool      `json:"connected"`
	Paired         bool      `json:"paired"`
	Recording      bool      `json:"recording"`
	BatteryPercent float64   `json:"battery_percent"`
	LastUpdate     time.Time `json:"last_update"`
}

func NewRegistry() *Registry {
	return &Registry{sessions: make([]*Session, 0, Capacity)}
}

// Add appends s and returns its index. It is a no-op returning false when
// the registry is full. The active selection is left unchanged.
func (r *Registry) Add(s *Session) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.sessions {
		if existing == s {
			return i, true
		}
	}
	if len(r.sessions) >= Capacity {
		return -1, false
	}
	r.sessions = append(r.sessions, s)
	return len(r.sessions) - 1, true
}

// Remove drops s from the registry and closes it. Later sessions shift down
// one index; the active selection follows the session it pointed to, or
// falls back to the last remaining one.
func (r *Registry) Remove(s *Session) (int, bool) {
	r.mu.Lock()
	idx := -1
	for i, existing := range r.sessions {
		if existing == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return -1, false
	}
	r.sessions = append(r.sessions[:idx], r.sessions[idx+1:]...)
	if idx < r.active {
		r.active--
	}
	if r.active >= len(r.sessions) {
		r.active = max(len(r.sessions)-1, 0)
	}
	r.mu.Unlock()

	_ = s.Close()
	return idx, true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Full reports whether Add would be a no-op.
func (r *Registry) Full() bool {
	return r.Len() >= Capacity
}

// Get returns the session at index i.
func (r *Registry) Get(i int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.sessions) {
		return nil, false
	}
	return r.sessions[i], true
}

// Active returns the active session, if any.
func (r *Registry) Active() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active < 0 || r.active >= len(r.sessions) {
		return nil, false
	}
	return r.sessions[r.active], true
}

// ActiveIndex returns the active index. It may equal Len() when empty.
func (r *Registry) ActiveIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetActive selects the session at index i.
func (r *Registry) SetActive(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.sessions) {
		return ErrIndexOutOfRange
	}
	r.active = i
	return nil
}

// Sessions returns a copy of the registered sessions in index order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Snapshot describes every registered session.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	sessions := make([]*Session, len(r.sessions))
	copy(sessions, r.sessions)
	active := r.active
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for i, s := range sessions {
		infos = append(infos, Info{
			Index:          i,
			ID:             s.ID().String(),
			Name:           s.Name(),
			Active:         i == active,
			Connected:      s.IsConnected(),
			Paired:         s.IsPaired(),
			Recording:      s.IsRecording(),
			BatteryPercent: s.BatteryPercent(),
			LastUpdate:     s.LastUpdate(),
		})
	}
	return infos
}

// Close removes and disconnects every session.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make([]*Session, 0, Capacity)
	r.active = 0
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
