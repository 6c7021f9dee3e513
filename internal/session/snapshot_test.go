// internal/session/snapshot_test.go
package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsState(t *testing.T) {
	cfg := Config{
		TriggerMode: ByWallClock,
		Catalog: []EventSpec{
			{Kind: Trivia, Prompt: "Trivia: What is the capital of France?", Timeout: time.Minute, Answer: "Paris"},
		},
	}
	l, ids, _ := setupTestLobby(t, cfg, 3)
	require.NoError(t, l.AddChatMessage(ids[0], "hello"))
	require.NoError(t, l.TriggerEvent())

	snap := l.Snapshot()
	assert.Equal(t, l.ID, snap.SessionID)
	assert.Equal(t, ids[0], snap.OwnerID)
	assert.Equal(t, 1, snap.Round)
	assert.Len(t, snap.Participants, 3)
	assert.Len(t, snap.Seats, 3)
	require.NotNil(t, snap.CurrentEvent)
	assert.Equal(t, Trivia, snap.CurrentEvent.Kind)
	assert.False(t, snap.CurrentEvent.Resolved)
	assert.True(t, snap.Scheduler.EventActive)

	// Roster ordering is stable by join time.
	assert.Equal(t, "Player1", snap.Participants[0].Name)
	assert.Equal(t, "Player3", snap.Participants[2].Name)
}

func TestSnapshotRoundTripsThroughJSON(t *testing.T) {
	l, ids, _ := setupTestLobby(t, Config{}, 2)
	require.NoError(t, l.AddChatMessage(ids[0], "persist me"))
	require.NoError(t, l.AwardPoints(ids[1], 5))

	snap := l.Snapshot()
	first, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(first, &decoded))
	second, err := json.Marshal(decoded)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}
