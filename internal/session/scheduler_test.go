// internal/session/scheduler_test.go
package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallClockCountdownFiresEvent(t *testing.T) {
	cfg := Config{
		TriggerMode:     ByWallClock,
		SecondsInterval: 1,
		TriggerDelay:    10 * time.Millisecond,
		Catalog: []EventSpec{
			{Kind: WouldRather, Prompt: "Would you rather fly or be invisible?", Timeout: time.Minute},
		},
	}
	l, ids, rec := setupTestLobby(t, cfg, 2)
	require.NoError(t, l.Start(ids[0]))

	// 1s countdown, then the trigger task fires one second later.
	require.Eventually(t, func() bool {
		return rec.countKind(EnvEventStarted) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMessageModeIgnoresCountdown(t *testing.T) {
	cfg := Config{
		TriggerMode:      ByMessageCount,
		MessageThreshold: 50,
	}
	l, ids, rec := setupTestLobby(t, cfg, 2)
	require.NoError(t, l.Start(ids[0]))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.countKind(EnvEventStarted))
	assert.False(t, l.Tasks().Pending(taskCountdownTick))
}

func TestSchedulerStatusCountsMessages(t *testing.T) {
	cfg := Config{TriggerMode: ByMessageCount, MessageThreshold: 5}
	l, ids, _ := setupTestLobby(t, cfg, 2)

	require.NoError(t, l.AddChatMessage(ids[0], "one"))
	require.NoError(t, l.AddChatMessage(ids[1], "two"))

	st := l.Snapshot().Scheduler
	assert.Equal(t, ByMessageCount, st.Mode)
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 3, st.Remaining)
	assert.Equal(t, 5, st.Total)
	assert.False(t, st.EventActive)
}

func TestTriggerSettingsChangeResetsCounter(t *testing.T) {
	cfg := Config{TriggerMode: ByMessageCount, MessageThreshold: 5}
	l, ids, _ := setupTestLobby(t, cfg, 2)

	require.NoError(t, l.AddChatMessage(ids[0], "one"))
	require.NoError(t, l.AddChatMessage(ids[1], "two"))

	newThreshold := 8
	require.NoError(t, l.UpdateConfig(ids[0], ConfigUpdate{MessageThreshold: &newThreshold}))

	st := l.Snapshot().Scheduler
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, 8, st.Total)
}
