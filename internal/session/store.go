// internal/session/store.go
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Repository holds every live lobby plus the participant-to-session index
// used to route a reconnecting client back to its lobby. All methods are
// safe for concurrent use.
type Repository struct {
	mu       sync.Mutex
	lobbies  map[uuid.UUID]*Lobby
	sessions map[uuid.UUID]uuid.UUID // participant id -> session id
}

func NewRepository() *Repository {
	return &Repository{
		lobbies:  make(map[uuid.UUID]*Lobby),
		sessions: make(map[uuid.UUID]uuid.UUID),
	}
}

// Add registers a lobby. Existing entries with the same id are replaced.
func (r *Repository) Add(l *Lobby) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lobbies[l.ID] = l
}

// Get returns the lobby with the given id.
func (r *Repository) Get(id uuid.UUID) (*Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[id]
	return l, ok
}

// Delete removes a lobby and every participant binding that pointed at it.
func (r *Repository) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lobbies, id)
	for pid, sid := range r.sessions {
		if sid == id {
			delete(r.sessions, pid)
		}
	}
}

// List returns all live lobbies in unspecified order.
func (r *Repository) List() []*Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		out = append(out, l)
	}
	return out
}

// BindParticipant records which session a participant belongs to.
func (r *Repository) BindParticipant(participantID, sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[participantID] = sessionID
}

// UnbindParticipant drops the participant's session binding.
func (r *Repository) UnbindParticipant(participantID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, participantID)
}

// SessionFor returns the session a participant is bound to, if any.
func (r *Repository) SessionFor(participantID uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, ok := r.sessions[participantID]
	return sid, ok
}
