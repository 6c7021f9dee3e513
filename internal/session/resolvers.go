// internal/session/resolvers.go
package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	speedChallengeBonus = 10
	voteBonusPoints     = 5
	triviaBonus         = 5
)

// outcomeResolver computes one event kind's outcome. resolve is called with
// the lobby lock held, applies all point/roster mutations through the lobby's
// locked helpers, posts the outcome system message, and returns a short
// outcome summary for the event journal.
type outcomeResolver interface {
	resolve(l *Lobby, ev *GameEvent) string
}

// resolverFor maps the closed kind set onto resolvers; anything without a
// scoring rule falls through to the open-ended acknowledgement.
func resolverFor(kind EventKind) outcomeResolver {
	switch kind {
	case SpeedChallenge:
		return speedChallengeResolver{}
	case VoteBonus:
		return voteBonusResolver{}
	case VoteEliminate:
		return voteEliminateResolver{}
	case Trivia:
		return triviaResolver{}
	default:
		return openEndedResolver{}
	}
}

// arrivalOrder returns (participant, response) pairs sorted by arrival time.
// Equal timestamps fall back to the participant id so the order is stable.
type arrivedResponse struct {
	ParticipantID uuid.UUID
	EventResponse
}

func arrivalOrder(ev *GameEvent) []arrivedResponse {
	out := make([]arrivedResponse, 0, len(ev.Responses))
	for id, r := range ev.Responses {
		out = append(out, arrivedResponse{ParticipantID: id, EventResponse: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].ParticipantID.String() < out[j].ParticipantID.String()
	})
	return out
}

type speedChallengeResolver struct{}

func (speedChallengeResolver) resolve(l *Lobby, ev *GameEvent) string {
	for _, r := range arrivalOrder(ev) {
		winner, ok := l.participants[r.ParticipantID]
		if !ok {
			continue // responder left before resolution
		}
		l.awardPointsLocked(winner.ID, speedChallengeBonus)
		l.systemMessageLocked(fmt.Sprintf("%s won the speed challenge! +%d points", winner.Name, speedChallengeBonus))
		return "winner " + winner.Name
	}
	l.systemMessageLocked("No one responded in time!")
	return "no winner"
}

type voteBonusResolver struct{}

func (voteBonusResolver) resolve(l *Lobby, ev *GameEvent) string {
	ordered := arrivalOrder(ev)
	if len(ordered) == 0 {
		l.systemMessageLocked("No votes received!")
		return "no votes"
	}

	// Tally case-insensitive name guesses; reachedAt is the arrival index of
	// each candidate's latest vote, which breaks plurality ties in favor of
	// whoever hit the max count first.
	type tally struct {
		name      string
		count     int
		reachedAt int
	}
	counts := make(map[string]*tally)
	for i, r := range ordered {
		key := strings.ToLower(strings.TrimSpace(r.Text))
		if key == "" {
			continue
		}
		t, ok := counts[key]
		if !ok {
			t = &tally{name: strings.TrimSpace(r.Text)}
			counts[key] = t
		}
		t.count++
		t.reachedAt = i
	}

	var best *tally
	for _, t := range counts {
		if best == nil || t.count > best.count || (t.count == best.count && t.reachedAt < best.reachedAt) {
			best = t
		}
	}
	if best == nil {
		l.systemMessageLocked("No votes received!")
		return "no votes"
	}

	winner := l.participantByNameLocked(best.name)
	if winner == nil {
		l.systemMessageLocked("The votes didn't match anyone at the table. No bonus this time!")
		return "unmatched name " + best.name
	}
	l.awardPointsLocked(winner.ID, voteBonusPoints)
	l.systemMessageLocked(fmt.Sprintf("%s received the most votes (%d) and gets +%d points!", winner.Name, best.count, voteBonusPoints))
	return "winner " + winner.Name
}

type voteEliminateResolver struct{}

func (voteEliminateResolver) resolve(l *Lobby, ev *GameEvent) string {
	var yes, no int
	for _, r := range ev.Responses {
		switch strings.ToUpper(strings.TrimSpace(r.Text)) {
		case "YES", "Y":
			yes++
		case "NO", "N":
			no++
		}
	}
	if yes <= no {
		l.systemMessageLocked(fmt.Sprintf("Vote failed (%d vs %d). No one was eliminated.", yes, no))
		return "vote failed"
	}

	// The victim is drawn uniformly from the whole roster, not from the
	// nominees. Preserved from the original service.
	roster := l.rosterLocked()
	if len(roster) == 0 {
		return "vote passed, empty roster"
	}
	victim := roster[l.rng.Intn(len(roster))]
	l.systemMessageLocked(fmt.Sprintf("Vote passed (%d vs %d). %s was eliminated!", yes, no, victim.Name))
	l.eliminateLocked(victim.ID)
	return "eliminated " + victim.Name
}

type triviaResolver struct{}

func (triviaResolver) resolve(l *Lobby, ev *GameEvent) string {
	answer := strings.ToLower(strings.TrimSpace(ev.Spec.Answer))
	var winners []string
	for _, r := range arrivalOrder(ev) {
		if strings.ToLower(strings.TrimSpace(r.Text)) != answer {
			continue
		}
		p, ok := l.participants[r.ParticipantID]
		if !ok {
			continue
		}
		l.awardPointsLocked(p.ID, triviaBonus)
		winners = append(winners, p.Name)
	}
	if len(winners) == 0 {
		l.systemMessageLocked(fmt.Sprintf("Correct answer: %s. No one got it right!", ev.Spec.Answer))
		return "no winners"
	}
	l.systemMessageLocked(fmt.Sprintf("Correct answer: %s. Winners: %s (+%d points each)",
		ev.Spec.Answer, strings.Join(winners, ", "), triviaBonus))
	return fmt.Sprintf("%d winners", len(winners))
}

type openEndedResolver struct{}

func (openEndedResolver) resolve(l *Lobby, ev *GameEvent) string {
	l.systemMessageLocked("Event concluded. Thanks for participating!")
	return "acknowledged"
}
