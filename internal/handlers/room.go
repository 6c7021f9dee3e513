// internal/handlers/room.go
package handlers

import (
	"sync"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/session"
)

// wsConn is one live websocket client inside a room. OutChan is drained by
// the connection's write pump; a full channel drops the envelope rather than
// blocking the lobby.
type wsConn struct {
	ParticipantID uuid.UUID
	OutChan       chan session.Envelope
	Cancel        func()
}

func (c *wsConn) send(env session.Envelope) {
	select {
	case c.OutChan <- env:
	default:
	}
}

// room fans lobby envelopes out to every connected client of one session.
type room struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*wsConn
}

func newRoom() *room {
	return &room{conns: make(map[uuid.UUID]*wsConn)}
}

// add registers a connection, closing any previous connection held by the
// same participant (reconnect replaces).
func (rm *room) add(c *wsConn) {
	rm.mu.Lock()
	prev := rm.conns[c.ParticipantID]
	rm.conns[c.ParticipantID] = c
	rm.mu.Unlock()
	if prev != nil && prev != c {
		prev.Cancel()
	}
}

// remove drops the connection if it is still the participant's current one.
func (rm *room) remove(c *wsConn) {
	rm.mu.Lock()
	if rm.conns[c.ParticipantID] == c {
		delete(rm.conns, c.ParticipantID)
	}
	rm.mu.Unlock()
}

// has reports whether the participant currently holds a connection.
func (rm *room) has(participantID uuid.UUID) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok := rm.conns[participantID]
	return ok
}

func (rm *room) broadcast(env session.Envelope) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, c := range rm.conns {
		c.send(env)
	}
}

func (rm *room) sendTo(participantID string, env session.Envelope) {
	id, err := uuid.Parse(participantID)
	if err != nil {
		return
	}
	rm.mu.Lock()
	c := rm.conns[id]
	rm.mu.Unlock()
	if c != nil {
		c.send(env)
	}
}

// closeAll cancels every connection; used at session teardown.
func (rm *room) closeAll() {
	rm.mu.Lock()
	conns := make([]*wsConn, 0, len(rm.conns))
	for _, c := range rm.conns {
		conns = append(conns, c)
	}
	rm.conns = make(map[uuid.UUID]*wsConn)
	rm.mu.Unlock()
	for _, c := range conns {
		c.Cancel()
	}
}
