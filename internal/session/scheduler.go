// internal/session/scheduler.go
package session

import "time"

// Task tags for the timers the scheduler owns on the lobby's TaskScheduler.
const (
	taskEventTrigger  = "event-trigger"
	taskEventDeadline = "event-deadline"
	taskCountdownTick = "countdown-tick"
)

// EventScheduler decides when the next mini-event fires, either after a
// number of chat messages or after a wall-clock countdown. It is part of the
// lobby aggregate: every field is guarded by the lobby mutex and every method
// here assumes the caller holds it.
//
// The scheduler never requests a second trigger while eventActive is set, and
// the lobby independently re-validates "no unresolved event" before honoring
// a trigger, so a just-fired countdown racing a manual trigger cannot start
// two events.
type EventScheduler struct {
	mode        TriggerMode
	target      int
	counter     int // messages since the last event (ByMessageCount)
	remaining   int // seconds until the next event (ByWallClock)
	eventActive bool
}

// SchedulerStatus is the snapshot view of the scheduler.
type SchedulerStatus struct {
	Mode        TriggerMode `json:"mode"`
	Remaining   int         `json:"remaining"`
	Total       int         `json:"total"`
	Current     int         `json:"current"`
	EventActive bool        `json:"event_active"`
}

func newEventScheduler(cfg Config) *EventScheduler {
	return &EventScheduler{
		mode:      cfg.TriggerMode,
		target:    cfg.target(),
		remaining: cfg.target(),
	}
}

// onMessageLocked counts one qualifying chat message. When the threshold is
// reached the trigger is scheduled after a short deliberate delay so the
// triggering message renders before the event prompt.
func (l *Lobby) onMessageLocked(isHuman bool) {
	s := l.sched
	if s.mode != ByMessageCount || s.eventActive {
		return
	}
	s.counter++
	l.broadcastLocked(Envelope{Kind: EnvCountdownUpdate})
	if s.counter >= s.target {
		s.eventActive = true
		l.tasks.Schedule(l.cfg.TriggerDelay, taskEventTrigger, func() {
			if err := l.TriggerEvent(); err != nil {
				l.clearStaleTrigger()
			}
		})
	}
}

// startCountdownLocked arms the wall-clock countdown. No-op in message mode.
func (l *Lobby) startCountdownLocked() {
	s := l.sched
	if s.mode != ByWallClock {
		return
	}
	s.remaining = s.target
	l.tasks.Schedule(time.Second, taskCountdownTick, l.countdownTick)
}

// countdownTick runs once per second off the task scheduler. It re-acquires
// the lobby lock and re-validates mode and eventActive before acting: the
// config may have changed or an event may have started since it was armed.
func (l *Lobby) countdownTick() {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sched
	if l.closed || s.mode != ByWallClock || s.eventActive {
		return
	}
	s.remaining--
	if s.remaining%5 == 0 || s.remaining <= 10 {
		l.broadcastLocked(Envelope{Kind: EnvCountdownUpdate})
	}
	if s.remaining <= 0 {
		s.eventActive = true
		l.tasks.Schedule(time.Second, taskEventTrigger, func() {
			if err := l.TriggerEvent(); err != nil {
				l.clearStaleTrigger()
			}
		})
		return
	}
	l.tasks.Schedule(time.Second, taskCountdownTick, l.countdownTick)
}

// onEventResolvedLocked resets the counters and, in wall-clock mode, restarts
// the countdown.
func (l *Lobby) onEventResolvedLocked() {
	s := l.sched
	s.eventActive = false
	s.counter = 0
	s.remaining = s.target
	if s.mode == ByWallClock {
		l.startCountdownLocked()
	}
}

// resetSchedulerLocked re-reads the trigger settings after a config change.
func (l *Lobby) resetSchedulerLocked() {
	s := l.sched
	s.mode = l.cfg.TriggerMode
	s.target = l.cfg.target()
	s.counter = 0
	s.remaining = s.target
	l.tasks.Cancel(taskCountdownTick)
	if !s.eventActive && s.mode == ByWallClock && l.started {
		l.startCountdownLocked()
	}
}

// clearStaleTrigger recovers the eventActive flag when a scheduled trigger
// lost the race against a manual one (the lobby already has an open event
// owned by someone else's trigger, or tore down).
func (l *Lobby) clearStaleTrigger() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil && !l.current.Resolved {
		return // an event is genuinely open; its resolution resets the flag
	}
	l.sched.eventActive = false
}

// schedulerStatusLocked builds the snapshot view.
func (l *Lobby) schedulerStatusLocked() SchedulerStatus {
	s := l.sched
	st := SchedulerStatus{
		Mode:        s.mode,
		Total:       s.target,
		EventActive: s.eventActive,
	}
	if s.eventActive {
		st.Current = s.counter
		return st
	}
	if s.mode == ByMessageCount {
		st.Current = s.counter
		if rem := s.target - s.counter; rem > 0 {
			st.Remaining = rem
		}
	} else {
		st.Remaining = s.remaining
	}
	return st
}
