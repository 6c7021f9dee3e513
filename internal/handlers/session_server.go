// internal/handlers/session_server.go
package handlers

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/archive"
	"github.com/colehaney/parlor/internal/dialogue"
	"github.com/colehaney/parlor/internal/session"
)

// SessionServer is the high-level struct tying the repository, the dialogue
// orchestrator and the per-session connection rooms together.
type SessionServer struct {
	Repo *session.Repository
	Orch *dialogue.Orchestrator

	mu    sync.Mutex
	rooms map[uuid.UUID]*room
}

func NewSessionServer(orch *dialogue.Orchestrator) *SessionServer {
	return &SessionServer{
		Repo:  session.NewRepository(),
		Orch:  orch,
		rooms: make(map[uuid.UUID]*room),
	}
}

// room returns the connection room for a session, creating it on first use
// and wiring the lobby's broadcast hooks to it.
func (s *SessionServer) roomFor(l *session.Lobby) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[l.ID]
	if !ok {
		rm = newRoom()
		s.rooms[l.ID] = rm
		l.SetTransport(rm.broadcast, rm.sendTo)
	}
	return rm
}

// setupSession registers a freshly created lobby: teardown hook, simulated
// participants, dialogue reactor, repository entry.
func (s *SessionServer) setupSession(l *session.Lobby, simulated int) {
	l.OnTeardown = func(sessionID uuid.UUID) {
		snap := l.Snapshot()
		s.mu.Lock()
		rm := s.rooms[sessionID]
		delete(s.rooms, sessionID)
		s.mu.Unlock()
		if rm != nil {
			rm.closeAll()
		}
		s.Repo.Delete(sessionID)

		if archive.Enabled() {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := archive.SaveSessionResult(ctx, snap); err != nil {
					log.Warnf("archive save failed for session %s: %v", sessionID, err)
				}
			}()
		}
	}

	if simulated > 0 {
		if err := s.Orch.SpawnParticipants(l, simulated); err != nil {
			log.Warnf("session %s: spawning simulated participants: %v", l.ID, err)
		}
	}
	s.Orch.Attach(l)
	s.Repo.Add(l)
}
