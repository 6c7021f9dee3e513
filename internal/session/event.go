// internal/session/event.go
package session

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of mini-event variants. Outcome rules are
// dispatched through one resolver per kind (see resolvers.go), never by
// re-comparing these strings at the resolution site.
type EventKind string

const (
	SpeedChallenge EventKind = "speed_challenge"
	VoteBonus      EventKind = "vote_bonus"
	VoteEliminate  EventKind = "vote_eliminate"
	Trivia         EventKind = "trivia"
	Confession     EventKind = "confession"
	StoryTime      EventKind = "story_time"
	Debate         EventKind = "debate"
	WouldRather    EventKind = "would_rather"
	TalentShow     EventKind = "talent_show"
)

// EventSpec is one catalog entry: the kind, the prompt shown to the lobby,
// the response-collection deadline and, where scoring needs it, the expected
// answer.
type EventSpec struct {
	Kind    EventKind     `json:"kind"`
	Prompt  string        `json:"prompt"`
	Timeout time.Duration `json:"timeout"`
	Answer  string        `json:"answer,omitempty"`
}

// DefaultCatalog mirrors the stock event set the original service shipped.
func DefaultCatalog() []EventSpec {
	return []EventSpec{
		{Kind: SpeedChallenge, Prompt: "Speed Challenge! First to type 'FAST' wins 10 points!", Timeout: 15 * time.Second, Answer: "FAST"},
		{Kind: VoteBonus, Prompt: "Vote for who deserves bonus points! Type their name.", Timeout: 30 * time.Second},
		{Kind: VoteEliminate, Prompt: "Should we eliminate a random player? Vote YES or NO!", Timeout: 25 * time.Second},
		{Kind: Trivia, Prompt: "Trivia: What is the capital of France?", Timeout: 20 * time.Second, Answer: "Paris"},
		{Kind: Confession, Prompt: "Share your most embarrassing moment!", Timeout: 45 * time.Second},
		{Kind: StoryTime, Prompt: "Tell us a short story about your childhood!", Timeout: 60 * time.Second},
		{Kind: Debate, Prompt: "Debate: Pineapple on pizza - yes or no? Defend your position!", Timeout: 40 * time.Second},
		{Kind: WouldRather, Prompt: "Would you rather have the ability to fly or be invisible? Why?", Timeout: 30 * time.Second},
		{Kind: TalentShow, Prompt: "Talent show time! What's your hidden talent?", Timeout: 35 * time.Second},
	}
}

// EventResponse is one participant's answer to an open event. A later answer
// from the same participant overwrites the earlier one.
type EventResponse struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// GameEvent collects responses for one mini-event and resolves exactly once.
// States: open (collecting) -> resolved (terminal). At most one unresolved
// GameEvent exists per lobby at any instant; the Lobby enforces that.
type GameEvent struct {
	ID        uuid.UUID
	Spec      EventSpec
	StartedAt time.Time
	Responses map[uuid.UUID]EventResponse
	Resolved  bool
}

func newGameEvent(spec EventSpec, now time.Time) *GameEvent {
	return &GameEvent{
		ID:        uuid.New(),
		Spec:      spec,
		StartedAt: now,
		Responses: make(map[uuid.UUID]EventResponse),
	}
}

// record stores a response. Caller holds the lobby lock and has already
// checked Resolved.
func (ev *GameEvent) record(participantID uuid.UUID, text string, at time.Time) {
	ev.Responses[participantID] = EventResponse{Text: text, At: at}
}

// quorumReached reports whether enough responses arrived to resolve early.
// The speed challenge resolves on the first response; everything else waits
// for ceil(0.8 * current participant count).
func (ev *GameEvent) quorumReached(totalParticipants int) bool {
	n := len(ev.Responses)
	if ev.Spec.Kind == SpeedChallenge {
		return n > 0
	}
	if totalParticipants == 0 {
		return false
	}
	return n >= int(math.Ceil(float64(totalParticipants)*0.8))
}
