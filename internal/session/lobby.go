// internal/session/lobby.go
package session

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/journal"
)

// System speaker identity for GameMaster lines.
const (
	systemSenderID   = "system"
	systemSenderName = "GameMaster"
	systemAvatar     = "ai_player"
)

// Reactor receives lobby activity the dialogue layer cares about. Calls are
// made after the lobby lock is released, so implementations are free to call
// back into the lobby's public methods.
type Reactor interface {
	// MessageAdded fires for every genuine participant contribution (not
	// system lines, not event replies).
	MessageAdded(l *Lobby, msg ChatMessage, fromHuman bool)
	// EventStarted fires when a mini-event opens.
	EventStarted(l *Lobby, spec EventSpec)
	// SessionClosed fires once when the lobby tears down.
	SessionClosed(sessionID uuid.UUID)
}

// Lobby is the aggregate root for one session: roster, seats, chat log,
// round counter, scheduler state and the at-most-one open event. All
// mutation goes through its entry points; collaborators only ever hold ids
// and the snapshots it returns.
type Lobby struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time

	mu           sync.Mutex
	cfg          Config
	started      bool
	closed       bool
	round        int
	participants map[uuid.UUID]*Participant
	seats        map[uuid.UUID]SeatAssignment
	chatLog      []ChatMessage
	eventFeed    []EventEntry
	current      *GameEvent
	sched        *EventScheduler
	tasks        *TaskScheduler
	rng          *rand.Rand
	reactor      Reactor

	// BroadcastFn/SendToFn are wired by the transport layer. Both must be
	// non-blocking; nil means notifications are dropped (tests).
	BroadcastFn BroadcastFunc
	SendToFn    SendFunc

	// OnTeardown is invoked once after the lobby closes, typically to remove
	// it from the repository.
	OnTeardown func(sessionID uuid.UUID)
}

// NewLobby builds a lobby with defaults applied to cfg. The owner is not
// added to the roster here; the caller joins them like any participant.
func NewLobby(cfg Config, ownerID uuid.UUID) *Lobby {
	cfg = cfg.withDefaults()
	l := &Lobby{
		ID:           uuid.New(),
		Name:         cfg.Name,
		OwnerID:      ownerID,
		CreatedAt:    time.Now(),
		cfg:          cfg,
		round:        1,
		participants: make(map[uuid.UUID]*Participant),
		seats:        make(map[uuid.UUID]SeatAssignment),
		tasks:        NewTaskScheduler(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	l.sched = newEventScheduler(cfg)
	return l
}

// SetReactor wires the dialogue layer. Must be called before participants
// start chatting.
func (l *Lobby) SetReactor(r Reactor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reactor = r
}

// Tasks exposes the lobby's task scheduler so collaborators schedule their
// deferred work (replies, ambient cycles) under the same cancellation group.
func (l *Lobby) Tasks() *TaskScheduler { return l.tasks }

// SetTransport wires the broadcast hooks under the lock, so the transport can
// attach after the lobby is already live.
func (l *Lobby) SetTransport(broadcast BroadcastFunc, sendTo SendFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.BroadcastFn = broadcast
	l.SendToFn = sendTo
}

// Config returns a copy of the current configuration.
func (l *Lobby) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Started reports whether the session has begun.
func (l *Lobby) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// Closed reports whether the lobby has torn down.
func (l *Lobby) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// AddParticipant joins a participant, assigning a random free seat.
// Rejected when the session is full, already started, or closed.
func (l *Lobby) AddParticipant(p *Participant) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrSessionClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrSessionStarted
	}
	if !l.cfg.Unbounded && len(l.participants) >= l.cfg.Capacity {
		l.mu.Unlock()
		return ErrSessionFull
	}
	seat, ok := l.assignSeatLocked()
	if !ok {
		l.mu.Unlock()
		return ErrSessionFull
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	l.participants[p.ID] = p
	l.seats[p.ID] = seat
	l.broadcastLocked(Envelope{
		Kind:    EnvRosterChanged,
		Payload: map[string]interface{}{"joined": p.ID.String(), "name": p.Name},
	})
	l.mu.Unlock()
	return nil
}

// assignSeatLocked draws uniformly from the unoccupied seats in 1..7.
func (l *Lobby) assignSeatLocked() (SeatAssignment, bool) {
	occupied := make(map[int]bool, len(l.seats))
	for _, s := range l.seats {
		occupied[s.Seat] = true
	}
	var free []int
	for s := 1; s <= seatCount; s++ {
		if !occupied[s] {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return SeatAssignment{}, false
	}
	return SeatAssignment{
		Seat:    free[l.rng.Intn(len(free))],
		Variant: 1 + l.rng.Intn(variantCount),
	}, true
}

// RemoveParticipant releases the participant's seat and reports whether the
// departure leaves the lobby without humans or was the owner leaving. The
// caller decides teardown; the lobby does not destroy itself.
func (l *Lobby) RemoveParticipant(id uuid.UUID) (empty, ownerLeft bool, err error) {
	l.mu.Lock()
	p, ok := l.participants[id]
	if !ok {
		l.mu.Unlock()
		return false, false, ErrUnknownParticipant
	}
	delete(l.participants, id)
	delete(l.seats, id)
	l.broadcastLocked(Envelope{
		Kind:    EnvRosterChanged,
		Payload: map[string]interface{}{"left": id.String(), "name": p.Name},
	})
	humans := 0
	for _, q := range l.participants {
		if !q.IsSimulated() {
			humans++
		}
	}
	l.mu.Unlock()
	return humans == 0, id == l.OwnerID, nil
}

// Participants returns value copies of the roster sorted by join time.
func (l *Lobby) Participants() []Participant {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Participant, 0, len(l.participants))
	for _, p := range l.rosterLocked() {
		out = append(out, *p)
	}
	return out
}

// rosterLocked returns the live roster sorted by join time (ties by id).
func (l *Lobby) rosterLocked() []*Participant {
	out := make([]*Participant, 0, len(l.participants))
	for _, p := range l.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (l *Lobby) participantByNameLocked(name string) *Participant {
	for _, p := range l.rosterLocked() {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// AddChatMessage appends a genuine contribution from a participant. Human
// messages feed the open event (if any), the scheduler counter, and the
// dialogue layer; simulated messages feed only the scheduler and history.
func (l *Lobby) AddChatMessage(senderID uuid.UUID, text string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrSessionClosed
	}
	p, ok := l.participants[senderID]
	if !ok {
		l.mu.Unlock()
		return ErrUnknownParticipant
	}
	msg := ChatMessage{
		ID:          uuid.New(),
		SenderID:    p.ID.String(),
		SenderName:  p.Name,
		Avatar:      p.Avatar,
		Text:        text,
		Timestamp:   time.Now(),
		IsSimulated: p.IsSimulated(),
	}
	l.appendChatLocked(msg)

	fromHuman := !p.IsSimulated()
	if fromHuman && l.current != nil && !l.current.Resolved {
		l.current.record(p.ID, text, msg.Timestamp)
		l.checkResolutionLocked()
	}
	l.onMessageLocked(fromHuman)
	reactor := l.reactor
	l.mu.Unlock()

	if reactor != nil {
		reactor.MessageAdded(l, msg, fromHuman)
	}
	return nil
}

// AddEventReply appends a simulated participant's answer to the open event.
// It reaches the chat log and the event's response set but never re-enters
// the scheduler or the dialogue layer, so bot replies cannot chain.
func (l *Lobby) AddEventReply(senderID uuid.UUID, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSessionClosed
	}
	p, ok := l.participants[senderID]
	if !ok {
		return ErrUnknownParticipant
	}
	msg := ChatMessage{
		ID:          uuid.New(),
		SenderID:    p.ID.String(),
		SenderName:  p.Name,
		Avatar:      p.Avatar,
		Text:        text,
		Timestamp:   time.Now(),
		IsSimulated: p.IsSimulated(),
	}
	l.appendChatLocked(msg)
	if l.current != nil && !l.current.Resolved {
		l.current.record(p.ID, text, msg.Timestamp)
		l.checkResolutionLocked()
	}
	return nil
}

// AddSystemMessage posts a GameMaster line. Append and broadcast only.
func (l *Lobby) AddSystemMessage(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.systemMessageLocked(text)
}

func (l *Lobby) systemMessageLocked(text string) {
	l.appendChatLocked(ChatMessage{
		ID:         uuid.New(),
		SenderID:   systemSenderID,
		SenderName: systemSenderName,
		Avatar:     systemAvatar,
		Text:       text,
		Timestamp:  time.Now(),
		IsSystem:   true,
	})
}

func (l *Lobby) appendChatLocked(msg ChatMessage) {
	l.chatLog = append(l.chatLog, msg)
	if len(l.chatLog) > maxChatLog {
		l.chatLog = l.chatLog[len(l.chatLog)-maxChatLog:]
	}
	l.broadcastLocked(Envelope{Kind: EnvChatMessage, Message: &msg})
}

func (l *Lobby) addEventFeedLocked(text, kind string) {
	l.eventFeed = append(l.eventFeed, EventEntry{
		ID:        uuid.New(),
		Text:      text,
		Kind:      kind,
		Round:     l.round,
		Timestamp: time.Now(),
	})
	if len(l.eventFeed) > maxEventFeed {
		l.eventFeed = l.eventFeed[len(l.eventFeed)-maxEventFeed:]
	}
}

// AwardPoints credits delta points and broadcasts the change.
func (l *Lobby) AwardPoints(id uuid.UUID, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.participants[id]; !ok {
		return ErrUnknownParticipant
	}
	l.awardPointsLocked(id, delta)
	return nil
}

func (l *Lobby) awardPointsLocked(id uuid.UUID, delta int) {
	p, ok := l.participants[id]
	if !ok {
		return
	}
	p.Points += delta
	l.broadcastLocked(Envelope{
		Kind:    EnvPointsAwarded,
		Payload: map[string]interface{}{"participant_id": id.String(), "points": delta},
	})
}

// Eliminate removes a participant from the game, releasing the seat.
func (l *Lobby) Eliminate(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	l.systemMessageLocked(fmt.Sprintf("%s has been eliminated from the game!", p.Name))
	l.eliminateLocked(id)
	return nil
}

func (l *Lobby) eliminateLocked(id uuid.UUID) {
	p, ok := l.participants[id]
	if !ok {
		return
	}
	delete(l.participants, id)
	delete(l.seats, id)
	l.broadcastLocked(Envelope{
		Kind:    EnvParticipantEliminated,
		Payload: map[string]interface{}{"participant_id": id.String(), "name": p.Name},
	})
	if !p.IsSimulated() && l.SendToFn != nil {
		l.SendToFn(id.String(), Envelope{
			Kind:    EnvParticipantEliminated,
			Payload: map[string]interface{}{"you": true},
		})
	}
}

// TriggerEvent opens a new mini-event drawn uniformly from the catalog.
// Fails without side effects while another event is unresolved, which closes
// the race between a fired countdown and a manual trigger.
func (l *Lobby) TriggerEvent() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrSessionClosed
	}
	if l.current != nil && !l.current.Resolved {
		l.mu.Unlock()
		return ErrEventActive
	}
	spec := l.cfg.Catalog[l.rng.Intn(len(l.cfg.Catalog))]
	ev := newGameEvent(spec, time.Now())
	l.current = ev
	l.sched.eventActive = true

	l.addEventFeedLocked(spec.Prompt, "game_event")
	l.systemMessageLocked(spec.Prompt)
	l.broadcastLocked(Envelope{
		Kind: EnvEventStarted,
		Payload: map[string]interface{}{
			"event_id":    ev.ID.String(),
			"kind":        string(spec.Kind),
			"prompt":      spec.Prompt,
			"timeout_sec": int(spec.Timeout / time.Second),
		},
	})

	evID := ev.ID
	l.tasks.Schedule(spec.Timeout, taskEventDeadline, func() {
		l.resolveByDeadline(evID)
	})
	reactor := l.reactor
	l.mu.Unlock()

	if reactor != nil {
		reactor.EventStarted(l, spec)
	}
	return nil
}

// resolveByDeadline fires when the response window closes. The event may
// have resolved by quorum (or the lobby torn down) since the timer was
// armed, so everything is re-validated under the lock.
func (l *Lobby) resolveByDeadline(eventID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.current == nil || l.current.ID != eventID || l.current.Resolved {
		return
	}
	log.Printf("lobby %s: auto-resolving event %s after timeout", l.ID, eventID)
	l.resolveLocked(l.current)
}

func (l *Lobby) checkResolutionLocked() {
	if l.current == nil || l.current.Resolved {
		return
	}
	if l.current.quorumReached(len(l.participants)) {
		l.resolveLocked(l.current)
	}
}

// resolveLocked transitions the event to its terminal state exactly once and
// applies the kind's outcome rule.
func (l *Lobby) resolveLocked(ev *GameEvent) {
	if ev.Resolved {
		return
	}
	ev.Resolved = true
	outcome := resolverFor(ev.Spec.Kind).resolve(l, ev)
	responses := len(ev.Responses)
	l.current = nil
	l.tasks.Cancel(taskEventDeadline)
	l.onEventResolvedLocked()
	l.broadcastLocked(Envelope{
		Kind: EnvEventResolved,
		Payload: map[string]interface{}{
			"event_id": ev.ID.String(),
			"kind":     string(ev.Spec.Kind),
			"outcome":  outcome,
		},
	})

	// Best-effort analytics record, never on the hot path.
	rec := journal.EventRecord{
		SessionID: l.ID,
		EventID:   ev.ID,
		Kind:      string(ev.Spec.Kind),
		Outcome:   outcome,
		Responses: responses,
		Timestamp: time.Now().UnixMilli(),
	}
	go func() {
		if err := journal.PublishEventRecord(rec); err != nil {
			log.Printf("lobby %s: journal publish failed: %v", l.ID, err)
		}
	}()
}

// Start begins the session. Owner only.
func (l *Lobby) Start(actorID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSessionClosed
	}
	if actorID != l.OwnerID {
		return ErrNotOwner
	}
	if l.started {
		return ErrSessionStarted
	}
	l.started = true
	l.systemMessageLocked(fmt.Sprintf("Game started! Round %d of %d. Good luck everyone!", l.round, l.cfg.MaxRounds))
	if l.cfg.TriggerMode == ByWallClock {
		l.startCountdownLocked()
	}
	return nil
}

// AdvanceRound increments the round counter; past the configured maximum it
// ends the session with a final scoring snapshot.
func (l *Lobby) AdvanceRound(actorID uuid.UUID) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrSessionClosed
	}
	if actorID != l.OwnerID {
		l.mu.Unlock()
		return ErrNotOwner
	}
	if l.round < l.cfg.MaxRounds {
		l.round++
		l.addEventFeedLocked(fmt.Sprintf("Round %d started!", l.round), "round_start")
		l.systemMessageLocked(fmt.Sprintf("Round %d started!", l.round))
		l.broadcastLocked(Envelope{
			Kind:    EnvRoundChanged,
			Payload: map[string]interface{}{"round": l.round},
		})
		l.mu.Unlock()
		return nil
	}
	l.endLocked()
	l.finishTeardown()
	return nil
}

// End finishes the session immediately with a final scoring broadcast.
func (l *Lobby) End() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.endLocked()
	l.finishTeardown()
}

// endLocked posts final scores, broadcasts session_ended and cancels every
// owned timer. Caller still holds the lock; finishTeardown completes the
// teardown after release.
func (l *Lobby) endLocked() {
	ranked := l.rosterLocked()
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Points > ranked[j].Points })

	var b strings.Builder
	b.WriteString("Game ended! Final scores:\n")
	for i, p := range ranked {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "%d. %s: %d points\n", i+1, p.Name, p.Points)
	}
	l.addEventFeedLocked(b.String(), "game_end")
	l.systemMessageLocked(b.String())

	scores := make(map[string]int, len(ranked))
	for _, p := range ranked {
		scores[p.ID.String()] = p.Points
	}
	l.broadcastLocked(Envelope{
		Kind:    EnvSessionEnded,
		Payload: map[string]interface{}{"final_scores": scores},
	})
	l.closed = true
	l.tasks.CancelAll()
}

// Close tears the lobby down silently (empty roster, owner departure).
func (l *Lobby) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.tasks.CancelAll()
	l.finishTeardown()
}

// finishTeardown releases the lock and runs the teardown callbacks.
func (l *Lobby) finishTeardown() {
	reactor := l.reactor
	onTeardown := l.OnTeardown
	l.mu.Unlock()
	if reactor != nil {
		reactor.SessionClosed(l.ID)
	}
	if onTeardown != nil {
		onTeardown(l.ID)
	}
}

// UpdateConfig applies an owner-supplied settings patch. Changing trigger
// settings resets the scheduler and restarts the countdown where relevant.
func (l *Lobby) UpdateConfig(actorID uuid.UUID, patch ConfigUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSessionClosed
	}
	if actorID != l.OwnerID {
		return ErrNotOwner
	}
	triggerChanged := patch.apply(&l.cfg)
	if triggerChanged {
		l.resetSchedulerLocked()
	}
	l.broadcastLocked(Envelope{Kind: EnvRosterChanged})
	return nil
}

// ConfigUpdate is a partial settings change; nil fields are untouched.
type ConfigUpdate struct {
	TriggerMode      *TriggerMode `json:"trigger_mode,omitempty"`
	MessageThreshold *int         `json:"message_threshold,omitempty"`
	SecondsInterval  *int         `json:"seconds_interval,omitempty"`
	MaxRounds        *int         `json:"max_rounds,omitempty"`
	Capacity         *int         `json:"capacity,omitempty"`
	Unbounded        *bool        `json:"unbounded,omitempty"`
}

// apply mutates cfg and reports whether any trigger setting changed.
func (u ConfigUpdate) apply(cfg *Config) bool {
	trigger := false
	if u.TriggerMode != nil && *u.TriggerMode != cfg.TriggerMode {
		cfg.TriggerMode = *u.TriggerMode
		trigger = true
	}
	if u.MessageThreshold != nil && *u.MessageThreshold > 0 && *u.MessageThreshold != cfg.MessageThreshold {
		cfg.MessageThreshold = *u.MessageThreshold
		trigger = true
	}
	if u.SecondsInterval != nil && *u.SecondsInterval > 0 && *u.SecondsInterval != cfg.SecondsInterval {
		cfg.SecondsInterval = *u.SecondsInterval
		trigger = true
	}
	if u.MaxRounds != nil && *u.MaxRounds > 0 {
		cfg.MaxRounds = *u.MaxRounds
	}
	if u.Capacity != nil && *u.Capacity > 0 {
		cfg.Capacity = *u.Capacity
	}
	if u.Unbounded != nil {
		cfg.Unbounded = *u.Unbounded
	}
	return trigger
}

// broadcastLocked attaches a full snapshot and hands the envelope to the
// transport. BroadcastFn must not block and must not call back into the
// lobby.
func (l *Lobby) broadcastLocked(env Envelope) {
	if l.BroadcastFn == nil {
		return
	}
	snap := l.snapshotLocked()
	env.Snapshot = &snap
	l.BroadcastFn(env)
}
