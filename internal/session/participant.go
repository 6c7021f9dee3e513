// internal/session/participant.go
package session

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantKind distinguishes real people from simulated participants.
type ParticipantKind string

const (
	KindHuman     ParticipantKind = "human"
	KindSimulated ParticipantKind = "simulated"
)

// Participant is a member of a lobby roster. It is owned exclusively by its
// Lobby; other components only see the snapshots the Lobby hands out.
type Participant struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Avatar   string          `json:"avatar"`
	Kind     ParticipantKind `json:"kind"`
	Points   int             `json:"points"`
	JoinedAt time.Time       `json:"joined_at"`
}

// IsSimulated reports whether the participant's chat lines come from the
// dialogue layer rather than a person.
func (p *Participant) IsSimulated() bool {
	return p.Kind == KindSimulated
}

// SeatAssignment binds a participant to one of the seven table seats plus a
// cosmetic sprite variant. Seat values are unique across the lobby at all times.
type SeatAssignment struct {
	Seat    int `json:"seat"`
	Variant int `json:"variant"`
}

const (
	seatCount    = 7
	variantCount = 2
)
