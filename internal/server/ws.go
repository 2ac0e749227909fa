package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // reference server accepts any origin
	},
}

// handleWebSocket serves one push-channel connection: register
// handshake, join/leave bookkeeping, and announce fan-out.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	m := newMember()
	s.wg.Add(1)
	go s.writePump(conn, m)

	defer func() {
		s.hub.Remove(m)
		close(m.outgoing)
		conn.Close()
	}()

	registered := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var ev protocol.Event
		if err := ev.Decode(data); err != nil {
			s.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		if err := ev.Validate(); err != nil {
			s.log.Warn("dropping invalid event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}

		switch ev.Type {
		case protocol.EventRegister:
			m.identity = *ev.Identity
			registered = true
			ack, _ := (&protocol.Event{Type: protocol.EventRegistered}).Encode()
			if !m.trySend(ack) {
				s.log.Warn("dropping register ack, member not draining",
					zap.String("user", m.identity.UserID))
			}
			s.log.Info("session registered",
				zap.String("user", m.identity.UserID),
				zap.String("remote", conn.RemoteAddr().String()))

		case protocol.EventJoin:
			if !registered {
				continue
			}
			s.hub.Join(m, ev.ConversationID)

		case protocol.EventLeave:
			if !registered {
				continue
			}
			s.hub.Leave(m, ev.ConversationID)

		case protocol.EventAnnounce:
			if !registered {
				continue
			}
			s.fanOut(ev, m)
		}
	}
}

// fanOut rebroadcasts an announced message to the conversation's other
// subscribers as a delivery event. With a Redis bridge configured the
// frame goes through Redis so every server instance rebroadcasts it;
// the announcer then receives its own echo, which clients reconcile by
// correlation token.
func (s *Server) fanOut(ev protocol.Event, from *member) {
	delivery := protocol.Event{
		Type:           protocol.EventMessage,
		ConversationID: ev.ConversationID,
		Message:        ev.Message,
	}
	frame, err := delivery.Encode()
	if err != nil {
		s.log.Error("failed to encode delivery", zap.Error(err))
		return
	}

	if s.bridge != nil {
		if err := s.bridge.Publish(s.runCtx, ev.ConversationID, frame); err != nil {
			s.log.Warn("redis publish failed, falling back to local fan-out", zap.Error(err))
			s.hub.Broadcast(ev.ConversationID, frame, from)
		}
		return
	}
	s.hub.Broadcast(ev.ConversationID, frame, from)
}

// writePump drains a member's outgoing channel onto the connection.
func (s *Server) writePump(conn *websocket.Conn, m *member) {
	defer s.wg.Done()
	for data := range m.outgoing {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
