// internal/dialogue/orchestrator.go
package dialogue

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/session"
	"github.com/colehaney/parlor/internal/textgen"
)

const (
	maxHistory        = 40
	ambientInterval   = 15 * time.Second
	minSilence        = 10 * time.Second
	ambientCooldown   = 4 * time.Second
	replyCooldown     = 1500 * time.Millisecond
	ambientStartProb  = 0.4
	eventResponseProb = 0.8
	generationTimeout = 10 * time.Second
)

// Ambient and reply task tags on the lobby's task scheduler.
const (
	taskAmbientCycle = "dialogue-ambient"
	taskInitialOpen  = "dialogue-initial"
)

type lobbyState struct {
	history   []historyEntry
	bots      []uuid.UUID
	profiles  map[uuid.UUID]Profile
	lastSpoke map[uuid.UUID]time.Time
}

// Orchestrator runs the simulated participants: it spawns them, keeps a
// rolling conversation memory per lobby, starts ambient exchanges, and reacts
// to human messages and mini-events. It implements session.Reactor.
//
// All deferred work is scheduled on the lobby's own task scheduler, so a
// lobby teardown cancels every pending bot line along with the game timers.
type Orchestrator struct {
	gen textgen.Generator

	mu      sync.Mutex
	lobbies map[uuid.UUID]*lobbyState
	rng     *rand.Rand
}

// NewOrchestrator builds an orchestrator around the given generator. gen may
// be nil; bots then speak entirely from the fallback templates.
func NewOrchestrator(gen textgen.Generator) *Orchestrator {
	return &Orchestrator{
		gen:     gen,
		lobbies: make(map[uuid.UUID]*lobbyState),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SpawnParticipants creates count simulated participants and joins them to
// the lobby. Joining stops early if the lobby runs out of seats.
func (o *Orchestrator) SpawnParticipants(l *session.Lobby, count int) error {
	for i := 0; i < count; i++ {
		o.mu.Lock()
		p, profile := newSimulatedParticipant(o.rng, i)
		o.mu.Unlock()

		if err := l.AddParticipant(p); err != nil {
			if err == session.ErrSessionFull {
				return nil
			}
			return fmt.Errorf("spawn simulated participant: %w", err)
		}

		o.mu.Lock()
		st := o.stateLocked(l.ID)
		st.bots = append(st.bots, p.ID)
		st.profiles[p.ID] = profile
		o.mu.Unlock()
		log.Printf("simulated participant joined: %s (%s)", profile.Name, profile.Personality)
	}
	return nil
}

// Attach registers the orchestrator as the lobby's reactor and arms the
// ambient conversation cycle plus the initial exchange.
func (o *Orchestrator) Attach(l *session.Lobby) {
	l.SetReactor(o)
	l.Tasks().Schedule(ambientInterval, taskAmbientCycle, func() { o.ambientCycle(l) })
	l.Tasks().Schedule(4*time.Second, taskInitialOpen, func() { o.initialExchange(l) })
}

func (o *Orchestrator) stateLocked(lobbyID uuid.UUID) *lobbyState {
	st, ok := o.lobbies[lobbyID]
	if !ok {
		st = &lobbyState{
			profiles:  make(map[uuid.UUID]Profile),
			lastSpoke: make(map[uuid.UUID]time.Time),
		}
		o.lobbies[lobbyID] = st
	}
	return st
}

// MessageAdded records the line in the rolling history and, for human
// messages, runs the response gates to pick at most one bot to reply.
func (o *Orchestrator) MessageAdded(l *session.Lobby, msg session.ChatMessage, fromHuman bool) {
	if msg.IsSystem {
		return
	}

	o.mu.Lock()
	st := o.stateLocked(l.ID)
	st.history = append(st.history, historyEntry{
		Speaker:   msg.SenderName,
		Text:      msg.Text,
		At:        msg.Timestamp,
		Simulated: msg.IsSimulated,
	})
	if len(st.history) > maxHistory {
		st.history = st.history[len(st.history)-maxHistory:]
	}
	if msg.IsSimulated {
		for _, id := range st.bots {
			if st.profiles[id].Name == msg.SenderName {
				st.lastSpoke[id] = time.Now()
			}
		}
	}
	if !fromHuman {
		o.mu.Unlock()
		return
	}

	// Gate pass over the bots that are off cooldown; one winner speaks.
	now := time.Now()
	var candidates []uuid.UUID
	for _, id := range st.bots {
		if now.Sub(st.lastSpoke[id]) < replyCooldown {
			continue
		}
		if shouldRespond(o.rng, msg.SenderName, msg.Text, st.profiles[id], st.history) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		o.mu.Unlock()
		return
	}
	pick := 2
	if len(candidates) < pick {
		pick = len(candidates)
	}
	botID := candidates[o.rng.Intn(pick)]
	profile := st.profiles[botID]
	delay := time.Duration(o.rng.Float64()*1500+800) * time.Millisecond
	o.mu.Unlock()

	l.Tasks().Schedule(delay, "dialogue-reply:"+botID.String(), func() {
		text := o.generateReply(l.ID, profile, msg.SenderName, msg.Text)
		if text == "" || l.Closed() {
			return
		}
		if err := l.AddChatMessage(botID, text); err != nil {
			log.Printf("bot reply dropped: %v", err)
		}
	})
}

// EventStarted has each bot independently decide whether to answer the event,
// then schedules its reply a few seconds out so answers trickle in like
// humans typing.
func (o *Orchestrator) EventStarted(l *session.Lobby, spec session.EventSpec) {
	o.mu.Lock()
	st := o.stateLocked(l.ID)
	type pending struct {
		id      uuid.UUID
		profile Profile
		delay   time.Duration
	}
	var replies []pending
	for _, id := range st.bots {
		if o.rng.Float64() >= eventResponseProb {
			continue
		}
		replies = append(replies, pending{
			id:      id,
			profile: st.profiles[id],
			delay:   time.Duration(o.rng.Float64()*3000+1000) * time.Millisecond,
		})
	}
	o.mu.Unlock()

	for _, r := range replies {
		r := r
		l.Tasks().Schedule(r.delay, "dialogue-event:"+r.id.String(), func() {
			text := o.eventAnswer(l, spec, r.id, r.profile)
			if text == "" || l.Closed() {
				return
			}
			if err := l.AddEventReply(r.id, text); err != nil {
				log.Printf("bot event reply dropped: %v", err)
			}
		})
	}
}

// SessionClosed drops all per-lobby state. Pending timers were already
// cancelled by the lobby's scheduler teardown.
func (o *Orchestrator) SessionClosed(sessionID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.lobbies, sessionID)
}

// initialExchange has the first two bots open the room shortly after attach.
func (o *Orchestrator) initialExchange(l *session.Lobby) {
	o.mu.Lock()
	st := o.stateLocked(l.ID)
	if len(st.bots) < 2 {
		o.mu.Unlock()
		return
	}
	first, second := st.bots[0], st.bots[1]
	firstProfile, secondProfile := st.profiles[first], st.profiles[second]
	o.mu.Unlock()

	o.runExchange(l, first, firstProfile, second, secondProfile)
}

// ambientCycle keeps the room alive: if the chat has been silent long enough
// and the dice allow, two rested bots trade an exchange. It reschedules
// itself until the lobby closes.
func (o *Orchestrator) ambientCycle(l *session.Lobby) {
	if l.Closed() {
		return
	}
	defer l.Tasks().Schedule(ambientInterval, taskAmbientCycle, func() { o.ambientCycle(l) })

	o.mu.Lock()
	st := o.stateLocked(l.ID)
	if len(st.history) > 0 && time.Since(st.history[len(st.history)-1].At) < minSilence {
		o.mu.Unlock()
		return
	}
	now := time.Now()
	var rested []uuid.UUID
	for _, id := range st.bots {
		if now.Sub(st.lastSpoke[id]) > ambientCooldown {
			rested = append(rested, id)
		}
	}
	if len(rested) < 2 || o.rng.Float64() >= ambientStartProb {
		o.mu.Unlock()
		return
	}
	o.rng.Shuffle(len(rested), func(i, j int) { rested[i], rested[j] = rested[j], rested[i] })
	first, second := rested[0], rested[1]
	firstProfile, secondProfile := st.profiles[first], st.profiles[second]
	o.mu.Unlock()

	o.runExchange(l, first, firstProfile, second, secondProfile)
}

// runExchange posts a starter from the first bot, then a reply from the
// second about a second and a half later.
func (o *Orchestrator) runExchange(l *session.Lobby, first uuid.UUID, firstProfile Profile, second uuid.UUID, secondProfile Profile) {
	starter := o.generateStarter(l.ID, firstProfile)
	if starter == "" || l.Closed() {
		return
	}
	if err := l.AddChatMessage(first, starter); err != nil {
		return
	}
	l.Tasks().Schedule(1500*time.Millisecond, "dialogue-reply:"+second.String(), func() {
		reply := o.generateReply(l.ID, secondProfile, firstProfile.Name, starter)
		if reply == "" || l.Closed() {
			return
		}
		if err := l.AddChatMessage(second, reply); err != nil {
			log.Printf("bot exchange reply dropped: %v", err)
		}
	})
}

func (o *Orchestrator) recentHistory(lobbyID uuid.UUID, count int) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.stateLocked(lobbyID)
	h := st.history
	if len(h) > count {
		h = h[len(h)-count:]
	}
	if len(h) == 0 {
		return "No recent messages"
	}
	lines := make([]string, 0, len(h))
	for _, e := range h {
		lines = append(lines, e.Speaker+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) generateStarter(lobbyID uuid.UUID, profile Profile) string {
	if o.gen == nil {
		return o.pickFallback(func(rng *rand.Rand) string { return fallbackStarter(rng, profile) })
	}
	prompt := fmt.Sprintf(`You are %s, %s. Start an engaging conversation about one of your interests: %s.

Recent chat to avoid repeating:
%s

Write something specific, interesting, and conversational. No greetings or introductions. Be natural and engaging. Under 25 words.

Avoid generic phrases like "hey", "anyone else", "what do you think".`,
		profile.Name, profile.Personality, strings.Join(profile.FavoriteTopics, ", "),
		o.recentHistory(lobbyID, 8))

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()
	out, err := o.gen.Complete(ctx, prompt, textgen.Params{MaxTokens: 60, Temperature: 0.9})
	if err != nil {
		log.Printf("starter generation failed: %v", err)
		return o.pickFallback(func(rng *rand.Rand) string { return fallbackStarter(rng, profile) })
	}
	return cleanResponse(out, profile.Name)
}

func (o *Orchestrator) generateReply(lobbyID uuid.UUID, profile Profile, speaker, message string) string {
	if o.gen == nil {
		return o.pickFallback(func(rng *rand.Rand) string { return fallbackReply(rng, profile) })
	}
	prompt := fmt.Sprintf(`You are %s, %s.
Your response style: %s.
Your interests: %s.

%s just said: "%s"

Respond naturally and conversationally. Build on what they said, add your perspective, or share related knowledge. Be specific and engaging. Under 30 words.

Recent conversation context:
%s

Avoid generic responses like "interesting", "totally", "I agree".`,
		profile.Name, profile.Personality, profile.ResponseStyle,
		strings.Join(profile.FavoriteTopics, ", "), speaker, message,
		o.recentHistory(lobbyID, 6))

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()
	out, err := o.gen.Complete(ctx, prompt, textgen.Params{MaxTokens: 70, Temperature: 0.8})
	if err != nil {
		log.Printf("reply generation failed: %v", err)
		return o.pickFallback(func(rng *rand.Rand) string { return fallbackReply(rng, profile) })
	}
	out = cleanResponse(out, profile.Name)
	if isGenericResponse(out) {
		return o.pickFallback(func(rng *rand.Rand) string { return fallbackReply(rng, profile) })
	}
	return out
}

var quotedWord = regexp.MustCompile(`'([^']+)'`)

// eventAnswer produces a bot's entry for the open event. Scored kinds get a
// fixed strategy; open-ended kinds go through the generator.
func (o *Orchestrator) eventAnswer(l *session.Lobby, spec session.EventSpec, botID uuid.UUID, profile Profile) string {
	switch spec.Kind {
	case session.SpeedChallenge:
		if m := quotedWord.FindStringSubmatch(spec.Prompt); m != nil {
			return m[1]
		}
		return "CHAMPION"
	case session.VoteBonus:
		var others []string
		for _, p := range l.Participants() {
			if p.ID != botID {
				others = append(others, p.Name)
			}
		}
		if len(others) == 0 {
			return ""
		}
		return others[o.randIntn(len(others))]
	case session.VoteEliminate:
		if o.randFloat() > 0.6 {
			return "YES"
		}
		return "NO"
	case session.Trivia:
		if o.randFloat() > 0.3 {
			return spec.Answer
		}
		wrong := []string{"London", "Berlin", "Madrid", "1944", "1946", "Rome", "Saturn"}
		return wrong[o.randIntn(len(wrong))]
	default:
		return o.generateEventReply(spec, profile)
	}
}

func (o *Orchestrator) randFloat() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64()
}

func (o *Orchestrator) randIntn(n int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Intn(n)
}

func (o *Orchestrator) generateEventReply(spec session.EventSpec, profile Profile) string {
	if o.gen == nil {
		return "That's a tough one to answer!"
	}
	prompt := fmt.Sprintf(`Event: "%s".

You are %s (%s). Respond naturally to this event as if you're in a casual game with friends. Be specific and authentic. Under 25 words.`,
		spec.Prompt, profile.Name, profile.Personality)

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()
	out, err := o.gen.Complete(ctx, prompt, textgen.Params{MaxTokens: 50, Temperature: 0.8})
	if err != nil {
		return "That's a tough one to answer!"
	}
	return cleanResponse(out, profile.Name)
}

// pickFallback runs a template picker under the orchestrator lock so the
// shared rng stays race-free.
func (o *Orchestrator) pickFallback(pick func(rng *rand.Rand) string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return pick(o.rng)
}
