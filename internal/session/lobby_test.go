// internal/session/lobby_test.go
package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelopeRecorder collects envelopes instead of sending them over WS.
type envelopeRecorder struct {
	mu     sync.Mutex
	all    []Envelope
	direct map[string][]Envelope
}

func newEnvelopeRecorder() *envelopeRecorder {
	return &envelopeRecorder{direct: make(map[string][]Envelope)}
}

func (r *envelopeRecorder) broadcastFn(env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, env)
}

func (r *envelopeRecorder) sendFn(participantID string, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[participantID] = append(r.direct[participantID], env)
}

func (r *envelopeRecorder) countKind(kind EnvelopeKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, env := range r.all {
		if env.Kind == kind {
			n++
		}
	}
	return n
}

func (r *envelopeRecorder) lastOfKind(kind EnvelopeKind) *Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.all) - 1; i >= 0; i-- {
		if r.all[i].Kind == kind {
			env := r.all[i]
			return &env
		}
	}
	return nil
}

// setupTestLobby builds a lobby with a recorder attached and n human
// participants already joined.
func setupTestLobby(t *testing.T, cfg Config, numHumans int) (*Lobby, []uuid.UUID, *envelopeRecorder) {
	t.Helper()
	owner := uuid.New()
	l := NewLobby(cfg, owner)
	rec := newEnvelopeRecorder()
	l.BroadcastFn = rec.broadcastFn
	l.SendToFn = rec.sendFn

	ids := make([]uuid.UUID, 0, numHumans)
	for i := 0; i < numHumans; i++ {
		id := uuid.New()
		if i == 0 {
			id = owner
		}
		p := &Participant{ID: id, Name: fmt.Sprintf("Player%d", i+1), Kind: KindHuman}
		require.NoError(t, l.AddParticipant(p))
		ids = append(ids, id)
	}
	return l, ids, rec
}

func TestJoinAssignsUniqueSeats(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{}, 7)

	seen := make(map[int]bool)
	l.mu.Lock()
	for _, id := range ids {
		seat, ok := l.seats[id]
		require.True(t, ok, "participant %s has no seat", id)
		assert.GreaterOrEqual(t, seat.Seat, 1)
		assert.LessOrEqual(t, seat.Seat, 7)
		assert.GreaterOrEqual(t, seat.Variant, 1)
		assert.LessOrEqual(t, seat.Variant, 2)
		assert.False(t, seen[seat.Seat], "seat %d assigned twice", seat.Seat)
		seen[seat.Seat] = true
	}
	l.mu.Unlock()

	err := l.AddParticipant(&Participant{ID: uuid.New(), Name: "Late", Kind: KindHuman})
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestJoinRejectedAfterStart(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{TriggerMode: ByWallClock}, 2)
	require.NoError(t, l.Start(ids[0]))

	err := l.AddParticipant(&Participant{ID: uuid.New(), Name: "Late", Kind: KindHuman})
	assert.ErrorIs(t, err, ErrSessionStarted)
}

func TestStartRequiresOwner(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{TriggerMode: ByWallClock}, 2)

	assert.ErrorIs(t, l.Start(ids[1]), ErrNotOwner)
	assert.NoError(t, l.Start(ids[0]))
	assert.True(t, l.Started())
}

func TestSeatFreedOnLeave(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{}, 7)

	_, _, err := l.RemoveParticipant(ids[3])
	require.NoError(t, err)

	err = l.AddParticipant(&Participant{ID: uuid.New(), Name: "Replacement", Kind: KindHuman})
	assert.NoError(t, err)
}

func TestRemoveLastHumanReportsEmpty(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{Capacity: 3}, 1)
	require.NoError(t, l.AddParticipant(&Participant{ID: uuid.New(), Name: "Botty", Kind: KindSimulated}))

	empty, ownerLeft, err := l.RemoveParticipant(ids[0])
	require.NoError(t, err)
	assert.True(t, empty, "lobby with only simulated participants should report empty")
	assert.True(t, ownerLeft)
}

func TestChatLogCapped(t *testing.T) {
	l, ids, rec := setupTestLobby(t, Config{TriggerMode: ByWallClock}, 1)

	for i := 0; i < maxChatLog+20; i++ {
		require.NoError(t, l.AddChatMessage(ids[0], fmt.Sprintf("message %d", i)))
	}

	snap := l.Snapshot()
	assert.Len(t, snap.ChatLog, maxChatLog)
	assert.Equal(t, fmt.Sprintf("message %d", maxChatLog+19), snap.ChatLog[len(snap.ChatLog)-1].Text)
	assert.Equal(t, maxChatLog+20, rec.countKind(EnvChatMessage))
}

func TestMessageThresholdTriggersExactlyOneEvent(t *testing.T) {
	cfg := Config{
		TriggerMode:      ByMessageCount,
		MessageThreshold: 2,
		TriggerDelay:     10 * time.Millisecond,
		Catalog: []EventSpec{
			{Kind: Trivia, Prompt: "Trivia: What is the capital of France?", Timeout: time.Minute, Answer: "Paris"},
		},
	}
	l, ids, rec := setupTestLobby(t, cfg, 3)

	require.NoError(t, l.AddChatMessage(ids[0], "hello"))
	require.NoError(t, l.AddChatMessage(ids[1], "hi there"))

	require.Eventually(t, func() bool {
		return rec.countKind(EnvEventStarted) == 1
	}, time.Second, 10*time.Millisecond)

	// Messages during an open event feed the event, not the counter.
	require.NoError(t, l.AddChatMessage(ids[0], "not the answer"))
	require.NoError(t, l.AddChatMessage(ids[1], "still chatting"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.countKind(EnvEventStarted))
}

func TestSpeedChallengeFirstResponderWins(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: SpeedChallenge, Prompt: "Speed Challenge! First to type 'FAST' wins 10 points!", Timeout: time.Minute, Answer: "FAST"},
		},
	}
	l, ids, rec := setupTestLobby(t, cfg, 3)
	require.NoError(t, l.TriggerEvent())

	// First response resolves the speed challenge immediately.
	require.NoError(t, l.AddEventReply(ids[1], "FAST"))

	assert.Equal(t, 1, rec.countKind(EnvEventResolved))
	for _, p := range l.Participants() {
		if p.ID == ids[1] {
			assert.Equal(t, 10, p.Points)
		} else {
			assert.Equal(t, 0, p.Points)
		}
	}
}

func TestTriviaScoringIsCaseInsensitive(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: Trivia, Prompt: "Trivia: What is the capital of France?", Timeout: time.Minute, Answer: "Paris"},
		},
	}
	l, ids, rec := setupTestLobby(t, cfg, 3)
	require.NoError(t, l.TriggerEvent())

	// Quorum for 3 participants is ceil(2.4) = 3 responses.
	require.NoError(t, l.AddEventReply(ids[0], "paris"))
	require.NoError(t, l.AddEventReply(ids[1], "PARIS"))
	require.NoError(t, l.AddEventReply(ids[2], "London"))

	require.Equal(t, 1, rec.countKind(EnvEventResolved))
	points := make(map[uuid.UUID]int)
	for _, p := range l.Participants() {
		points[p.ID] = p.Points
	}
	assert.Equal(t, 5, points[ids[0]])
	assert.Equal(t, 5, points[ids[1]])
	assert.Equal(t, 0, points[ids[2]])
}

func TestVoteEliminateRemovesRandomParticipant(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: VoteEliminate, Prompt: "Should we eliminate a random player? Vote YES or NO!", Timeout: time.Minute},
		},
	}

	// The victim is drawn from the whole roster, not from any voted name.
	// Over repeated trials the eliminated participant must vary.
	victims := make(map[string]int)
	const trials = 40
	for i := 0; i < trials; i++ {
		l, ids, rec := setupTestLobby(t, cfg, 3)
		require.NoError(t, l.TriggerEvent())

		require.NoError(t, l.AddEventReply(ids[0], "YES"))
		require.NoError(t, l.AddEventReply(ids[1], "yes"))
		require.NoError(t, l.AddEventReply(ids[2], "NO"))

		require.Equal(t, 1, rec.countKind(EnvEventResolved))
		require.Len(t, l.Participants(), 2, "exactly one participant should be eliminated")
		require.Equal(t, 1, rec.countKind(EnvParticipantEliminated))

		remaining := make(map[string]bool)
		for _, p := range l.Participants() {
			remaining[p.Name] = true
		}
		for _, name := range []string{"Player1", "Player2", "Player3"} {
			if !remaining[name] {
				victims[name]++
			}
		}
	}

	total := 0
	for _, n := range victims {
		total += n
	}
	assert.Equal(t, trials, total)
	assert.GreaterOrEqual(t, len(victims), 2, "victim should vary across trials instead of tracking one participant")
}

func TestVoteEliminateFailsWithoutMajority(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: VoteEliminate, Prompt: "Should we eliminate a random player? Vote YES or NO!", Timeout: time.Minute},
		},
	}
	l, ids, rec := setupTestLobby(t, cfg, 2)
	require.NoError(t, l.TriggerEvent())

	require.NoError(t, l.AddEventReply(ids[0], "YES"))
	require.NoError(t, l.AddEventReply(ids[1], "NO"))

	require.Equal(t, 1, rec.countKind(EnvEventResolved))
	assert.Len(t, l.Participants(), 2)
	assert.Equal(t, 0, rec.countKind(EnvParticipantEliminated))
}

func TestVoteBonusPluralityWins(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: VoteBonus, Prompt: "Vote for who deserves bonus points! Type their name.", Timeout: time.Minute},
		},
	}
	l, ids, _ := setupTestLobby(t, cfg, 3)
	require.NoError(t, l.TriggerEvent())

	// Player2 gets two votes (case-insensitive), Player3 one.
	require.NoError(t, l.AddEventReply(ids[0], "player2"))
	require.NoError(t, l.AddEventReply(ids[1], "PLAYER2"))
	require.NoError(t, l.AddEventReply(ids[2], "Player3"))

	points := make(map[uuid.UUID]int)
	for _, p := range l.Participants() {
		points[p.ID] = p.Points
	}
	assert.Equal(t, 5, points[ids[1]])
	assert.Equal(t, 0, points[ids[0]])
	assert.Equal(t, 0, points[ids[2]])
}

func TestEventDeadlineResolvesOnce(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: Confession, Prompt: "Share your most embarrassing moment!", Timeout: 30 * time.Millisecond},
		},
	}
	l, _, rec := setupTestLobby(t, cfg, 2)
	require.NoError(t, l.TriggerEvent())

	require.Eventually(t, func() bool {
		return rec.countKind(EnvEventResolved) == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, rec.countKind(EnvEventResolved), "deadline must not double-resolve")
}

func TestQuorumResolutionBeatsDeadline(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: Debate, Prompt: "Debate: Pineapple on pizza - yes or no?", Timeout: 60 * time.Millisecond},
		},
	}
	l, ids, rec := setupTestLobby(t, cfg, 2)
	require.NoError(t, l.TriggerEvent())

	require.NoError(t, l.AddEventReply(ids[0], "yes, fight me"))
	require.NoError(t, l.AddEventReply(ids[1], "absolutely not"))

	require.Equal(t, 1, rec.countKind(EnvEventResolved))
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, rec.countKind(EnvEventResolved))
}

func TestSecondTriggerRejectedWhileEventOpen(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: StoryTime, Prompt: "Tell us a short story about your childhood!", Timeout: time.Minute},
		},
	}
	l, _, _ := setupTestLobby(t, cfg, 2)

	require.NoError(t, l.TriggerEvent())
	assert.ErrorIs(t, l.TriggerEvent(), ErrEventActive)
}

func TestAdvanceRoundEndsSessionPastMax(t *testing.T) {
	cfg := Config{TriggerMode: ByWallClock, MaxRounds: 2}
	l, ids, rec := setupTestLobby(t, cfg, 2)
	require.NoError(t, l.Start(ids[0]))

	var torndown bool
	var mu sync.Mutex
	l.OnTeardown = func(uuid.UUID) {
		mu.Lock()
		torndown = true
		mu.Unlock()
	}

	require.NoError(t, l.AdvanceRound(ids[0]))
	assert.Equal(t, 1, rec.countKind(EnvRoundChanged))
	assert.False(t, l.Closed())

	require.NoError(t, l.AdvanceRound(ids[0]))
	assert.True(t, l.Closed())
	assert.Equal(t, 1, rec.countKind(EnvSessionEnded))
	mu.Lock()
	assert.True(t, torndown)
	mu.Unlock()
}

func TestEndBroadcastsFinalScores(t *testing.T) {
	cfg := Config{TriggerMode: ByWallClock}
	l, ids, rec := setupTestLobby(t, cfg, 3)
	require.NoError(t, l.AwardPoints(ids[1], 15))
	require.NoError(t, l.AwardPoints(ids[2], 5))

	l.End()

	env := rec.lastOfKind(EnvSessionEnded)
	require.NotNil(t, env)
	scores, ok := env.Payload["final_scores"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 15, scores[ids[1].String()])
	assert.Equal(t, 5, scores[ids[2].String()])
	assert.Equal(t, 0, scores[ids[0].String()])

	assert.ErrorIs(t, l.AddChatMessage(ids[0], "too late"), ErrSessionClosed)
}

func TestUpdateConfigOwnerOnly(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{}, 2)

	newThreshold := 9
	err := l.UpdateConfig(ids[1], ConfigUpdate{MessageThreshold: &newThreshold})
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, l.UpdateConfig(ids[0], ConfigUpdate{MessageThreshold: &newThreshold}))
	assert.Equal(t, 9, l.Config().MessageThreshold)
}

func TestEliminatedHumanGetsPersonalNotice(t *testing.T) {
	l, ids, rec := setupTestLobby(t, Config{TriggerMode: ByWallClock}, 2)

	require.NoError(t, l.Eliminate(ids[1]))

	rec.mu.Lock()
	direct := rec.direct[ids[1].String()]
	rec.mu.Unlock()
	require.Len(t, direct, 1)
	assert.Equal(t, EnvParticipantEliminated, direct[0].Kind)
}
