// internal/session/envelope.go
package session

// EnvelopeKind tags the notification envelopes the core emits at the
// transport boundary. The transport layer decides how they reach clients;
// the core never touches a connection.
type EnvelopeKind string

const (
	EnvRosterChanged         EnvelopeKind = "roster_changed"
	EnvChatMessage           EnvelopeKind = "chat_message"
	EnvEventStarted          EnvelopeKind = "event_started"
	EnvEventResolved         EnvelopeKind = "event_resolved"
	EnvPointsAwarded         EnvelopeKind = "points_awarded"
	EnvParticipantEliminated EnvelopeKind = "participant_eliminated"
	EnvRoundChanged          EnvelopeKind = "round_changed"
	EnvSessionEnded          EnvelopeKind = "session_ended"
	EnvCountdownUpdate       EnvelopeKind = "countdown_update"
	EnvError                 EnvelopeKind = "error"
)

// Envelope is a lobby-scoped notification. Every broadcast carries a full
// snapshot so a client can reconcile state without incremental diffing.
type Envelope struct {
	Kind     EnvelopeKind           `json:"type"`
	Message  *ChatMessage           `json:"message,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	Snapshot *Snapshot              `json:"snapshot,omitempty"`
}

// BroadcastFunc delivers an envelope to every connected participant.
// SendFunc delivers to a single participant. Both must be non-blocking; the
// transport layer buffers or drops, the core never waits.
type (
	BroadcastFunc func(env Envelope)
	SendFunc      func(participantID string, env Envelope)
)
