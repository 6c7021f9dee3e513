// internal/session/snapshot.go
package session

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the full reconcilable view of a lobby: roster, seats, round,
// chat tail and scheduler status. Every broadcast envelope carries one, and
// the archive stores the final one at teardown. It round-trips through JSON
// without loss.
type Snapshot struct {
	SessionID    uuid.UUID                 `json:"session_id"`
	Name         string                    `json:"name"`
	OwnerID      uuid.UUID                 `json:"owner_id"`
	Started      bool                      `json:"started"`
	Round        int                       `json:"round"`
	MaxRounds    int                       `json:"max_rounds"`
	Capacity     int                       `json:"capacity"`
	Unbounded    bool                      `json:"unbounded"`
	CreatedAt    time.Time                 `json:"created_at"`
	Participants []Participant             `json:"participants"`
	Seats        map[string]SeatAssignment `json:"seats"`
	ChatLog      []ChatMessage             `json:"chat_log"`
	EventFeed    []EventEntry              `json:"event_feed"`
	Scheduler    SchedulerStatus           `json:"scheduler"`
	CurrentEvent *ActiveEventView          `json:"current_event,omitempty"`
}

// ActiveEventView is the public shape of the open event; responses stay
// private to the lobby.
type ActiveEventView struct {
	ID       uuid.UUID `json:"id"`
	Kind     EventKind `json:"kind"`
	Prompt   string    `json:"prompt"`
	Resolved bool      `json:"resolved"`
}

// Snapshot returns the current reconcilable state.
func (l *Lobby) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Lobby) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: l.ID,
		Name:      l.Name,
		OwnerID:   l.OwnerID,
		Started:   l.started,
		Round:     l.round,
		MaxRounds: l.cfg.MaxRounds,
		Capacity:  l.cfg.Capacity,
		Unbounded: l.cfg.Unbounded,
		CreatedAt: l.CreatedAt,
		Seats:     make(map[string]SeatAssignment, len(l.seats)),
		Scheduler: l.schedulerStatusLocked(),
	}
	for _, p := range l.rosterLocked() {
		snap.Participants = append(snap.Participants, *p)
	}
	for id, seat := range l.seats {
		snap.Seats[id.String()] = seat
	}
	snap.ChatLog = append(snap.ChatLog, l.chatLog...)
	snap.EventFeed = append(snap.EventFeed, l.eventFeed...)
	if l.current != nil {
		snap.CurrentEvent = &ActiveEventView{
			ID:       l.current.ID,
			Kind:     l.current.Spec.Kind,
			Prompt:   l.current.Spec.Prompt,
			Resolved: l.current.Resolved,
		}
	}
	return snap
}
