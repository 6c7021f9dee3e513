// internal/handlers/session.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/colehaney/parlor/internal/session"
)

var validTriggerModes = map[session.TriggerMode]bool{
	"":                     true,
	session.ByMessageCount: true,
	session.ByWallClock:    true,
}

// sessionSummary is the list/create response shape.
type sessionSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Owner        string `json:"owner_id"`
	Public       bool   `json:"public"`
	Started      bool   `json:"started"`
	Participants int    `json:"participants"`
	Capacity     int    `json:"capacity"`
	Unbounded    bool   `json:"unbounded"`
}

func summarize(l *session.Lobby) sessionSummary {
	cfg := l.Config()
	return sessionSummary{
		ID:           l.ID.String(),
		Name:         l.Name,
		Owner:        l.OwnerID.String(),
		Public:       cfg.Public,
		Started:      l.Started(),
		Participants: len(l.Participants()),
		Capacity:     cfg.Capacity,
		Unbounded:    cfg.Unbounded,
	}
}

// CreateSessionHandler creates an in-memory session from the posted config.
// The caller becomes the owner; simulated participants join immediately so
// the room is alive before the first human connects.
func CreateSessionHandler(s *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, _, err := EnsureParticipant(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var cfg session.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad session request payload", http.StatusBadRequest)
			return
		}
		if !validTriggerModes[cfg.TriggerMode] {
			http.Error(w, "invalid trigger mode", http.StatusBadRequest)
			return
		}

		l := session.NewLobby(cfg, ownerID)
		s.setupSession(l, cfg.SimulatedCount)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summarize(l))
	}
}

// ListSessionsHandler returns the public sessions currently in memory.
func ListSessionsHandler(s *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := EnsureParticipant(w, r); err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		out := []sessionSummary{}
		for _, l := range s.Repo.List() {
			if !l.Config().Public || l.Closed() {
				continue
			}
			out = append(out, summarize(l))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}
