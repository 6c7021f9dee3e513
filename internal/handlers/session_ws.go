// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/colehaney/parlor/internal/middleware"
	"github.com/colehaney/parlor/internal/session"
)

// SessionWSHandler upgrades the client, joins it to the session named in the
// URL and runs the read/write pumps until disconnect.
func SessionWSHandler(logger *logrus.Logger, s *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		idStr := strings.TrimPrefix(r.URL.Path, "/session/ws/")
		if i := strings.IndexByte(idStr, '/'); i >= 0 {
			idStr = idStr[:i]
		}
		sessionID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid session_id", http.StatusBadRequest)
			return
		}

		// Resolve identity before Accept so a freshly minted cookie rides the
		// handshake response.
		participantID, name, err := EnsureParticipant(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}
		avatar := strings.TrimSpace(r.URL.Query().Get("avatar"))
		if avatar == "" {
			avatar = "human_1"
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"session"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "session" {
			c.Close(BadSubprotocolError, "client must speak the session subprotocol")
			return
		}

		l, exists := s.Repo.Get(sessionID)
		if !exists {
			c.Close(InvalidSessionIDError, "session does not exist")
			return
		}

		rm := s.roomFor(l)

		// Join the roster unless this is a reconnect.
		alreadyJoined := false
		for _, p := range l.Participants() {
			if p.ID == participantID {
				alreadyJoined = true
				break
			}
		}
		if !alreadyJoined {
			p := &session.Participant{
				ID:     participantID,
				Name:   name,
				Avatar: avatar,
				Kind:   session.KindHuman,
			}
			if err := l.AddParticipant(p); err != nil {
				switch {
				case errors.Is(err, session.ErrSessionFull):
					c.Close(SessionFullError, "session is full")
				case errors.Is(err, session.ErrSessionStarted):
					c.Close(websocket.StatusPolicyViolation, "session already started")
				default:
					c.Close(websocket.StatusPolicyViolation, err.Error())
				}
				return
			}
			s.Repo.BindParticipant(participantID, sessionID)
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &wsConn{
			ParticipantID: participantID,
			OutChan:       make(chan session.Envelope, 32),
			Cancel:        cancel,
		}
		rm.add(conn)

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)
		logger.Infof("participant %v (%s) connected to session %v", participantID, remoteAddr, sessionID)

		// Hand the newcomer the current state directly; the join broadcast
		// happened before this connection registered.
		snap := l.Snapshot()
		conn.send(session.Envelope{Kind: session.EnvRosterChanged, Snapshot: &snap})

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, s, l, conn, logger)

		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
		rm.remove(conn)
		cancel()
		// A reconnect replaces the old connection before the old pump exits;
		// only the participant's current connection may remove them.
		if !rm.has(participantID) {
			s.leaveSession(l, participantID)
		}
	}
}

// leaveSession removes the participant and tears the session down when that
// departure ends it: a closing owner ends the game with final scores, the
// last human leaving closes the room silently.
func (s *SessionServer) leaveSession(l *session.Lobby, participantID uuid.UUID) {
	s.Repo.UnbindParticipant(participantID)
	empty, ownerLeft, err := l.RemoveParticipant(participantID)
	if err != nil {
		return
	}
	switch {
	case ownerLeft:
		l.End()
	case empty:
		l.Close()
	}
}

// readPump handles incoming packets until the connection drops.
func readPump(ctx context.Context, c *websocket.Conn, s *SessionServer, l *session.Lobby, conn *wsConn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus != websocket.StatusNormalClosure && closeStatus != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("session %s: read error for participant %v: %v", l.ID, conn.ParticipantID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet struct {
			Type   string                `json:"type"`
			Text   string                `json:"text"`
			Config *session.ConfigUpdate `json:"config"`
		}
		if err := json.Unmarshal(msg, &packet); err != nil {
			logger.Warnf("session %s: invalid json from participant %v: %v", l.ID, conn.ParticipantID, err)
			continue
		}

		if done := handleSessionPacket(s, l, conn, packet.Type, packet.Text, packet.Config, logger); done {
			return
		}
	}
}

// handleSessionPacket dispatches one client action. Returns true when the
// connection should wind down (leave).
func handleSessionPacket(s *SessionServer, l *session.Lobby, conn *wsConn, action, text string, cfg *session.ConfigUpdate, logger *logrus.Logger) bool {
	switch action {
	case "chat":
		text = strings.TrimSpace(text)
		if text == "" {
			return false
		}
		if err := l.AddChatMessage(conn.ParticipantID, text); err != nil {
			sendError(conn, err.Error())
		}
	case "start":
		if err := l.Start(conn.ParticipantID); err != nil {
			sendError(conn, err.Error())
		}
	case "next_round":
		if err := l.AdvanceRound(conn.ParticipantID); err != nil {
			sendError(conn, err.Error())
		}
	case "trigger_event":
		if conn.ParticipantID != l.OwnerID {
			sendError(conn, "only the session owner can trigger events")
			return false
		}
		if err := l.TriggerEvent(); err != nil {
			sendError(conn, err.Error())
		}
	case "update_config":
		if cfg == nil {
			sendError(conn, "missing config payload")
			return false
		}
		if err := l.UpdateConfig(conn.ParticipantID, *cfg); err != nil {
			sendError(conn, err.Error())
		}
	case "leave":
		return true
	default:
		logger.Warnf("session %s: unknown action %q from participant %v", l.ID, action, conn.ParticipantID)
		sendError(conn, "unknown action type: "+action)
	}
	return false
}

// sendError pushes an error envelope down one client's pipe.
func sendError(conn *wsConn, msg string) {
	conn.send(session.Envelope{
		Kind:    session.EnvError,
		Payload: map[string]interface{}{"message": msg},
	})
}

// writePump drains the connection's outbound channel and keeps the socket
// alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *wsConn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				logger.Warnf("failed to marshal outgoing envelope for %v: %v", conn.ParticipantID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for %v: %v", conn.ParticipantID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for %v, assuming disconnect: %v", conn.ParticipantID, err)
				return
			}
		}
	}
}
