// internal/session/chat.go
package session

import (
	"time"

	"github.com/google/uuid"
)

// maxChatLog bounds the per-lobby chat log; the oldest entries are dropped
// first. maxEventFeed bounds the system event feed the same way.
const (
	maxChatLog   = 100
	maxEventFeed = 50
)

// ChatMessage is one entry in the lobby chat log. Insertion order is the only
// meaningful order.
type ChatMessage struct {
	ID          uuid.UUID `json:"id"`
	SenderID    string    `json:"sender_id"` // "system" for GameMaster lines
	SenderName  string    `json:"sender_name"`
	Avatar      string    `json:"avatar"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"ts"`
	IsSystem    bool      `json:"is_system"`
	IsSimulated bool      `json:"is_simulated"`
}

// EventEntry is one entry in the system event feed (round changes, event
// prompts, final scores). It is presentation data, not authoritative state.
type EventEntry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"ts"`
}
