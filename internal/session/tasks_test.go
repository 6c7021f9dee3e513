// internal/session/tasks_test.go
package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerReplacesSameTag(t *testing.T) {
	s := NewTaskScheduler()
	var mu sync.Mutex
	var fired []string

	s.Schedule(20*time.Millisecond, "job", func() {
		mu.Lock()
		fired = append(fired, "first")
		mu.Unlock()
	})
	s.Schedule(20*time.Millisecond, "job", func() {
		mu.Lock()
		fired = append(fired, "second")
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) > 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"second"}, fired, "replaced task must not fire")
	mu.Unlock()
}

func TestSchedulerCancel(t *testing.T) {
	s := NewTaskScheduler()
	var fired bool
	var mu sync.Mutex

	s.Schedule(20*time.Millisecond, "job", func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	assert.True(t, s.Pending("job"))
	s.Cancel("job")
	assert.False(t, s.Pending("job"))

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.False(t, fired)
	mu.Unlock()
}

func TestSchedulerCancelAllStops(t *testing.T) {
	s := NewTaskScheduler()
	var count int
	var mu sync.Mutex
	inc := func() {
		mu.Lock()
		count++
		mu.Unlock()
	}

	s.Schedule(20*time.Millisecond, "a", inc)
	s.Schedule(20*time.Millisecond, "b", inc)
	s.CancelAll()

	// Scheduling after CancelAll is a no-op.
	s.Schedule(10*time.Millisecond, "c", inc)
	assert.False(t, s.Pending("c"))

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, count)
	mu.Unlock()
}
