package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/minutes/internal/agent"
	"github.com/ziadkadry99/minutes/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type      string `json:"type"`       // "query", "agent" or "reset"
	SessionID string `json:"session_id"` // empty starts a new session
	Topic     string `json:"topic,omitempty"`
	Content   string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type      string      `json:"type"` // "session", "delta", "step", "answer", "reset" or "error"
	SessionID string      `json:"session_id"`
	Content   string      `json:"content,omitempty"`
	Step      *agent.Step `json:"step,omitempty"`
	Status    int         `json:"status,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", logging.Err(err))
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "", http.StatusBadRequest, "invalid message format")
			continue
		}
		req.Content = strings.TrimSpace(req.Content)
		if req.Content == "" && req.Type != "reset" {
			s.sendError(conn, req.SessionID, http.StatusBadRequest, "content is required")
			continue
		}

		switch req.Type {
		case "query", "agent", "reset":
		default:
			s.sendError(conn, req.SessionID, http.StatusBadRequest, "unknown message type: "+req.Type)
			continue
		}

		if req.SessionID == "" {
			info, err := s.sessions.Create(r.Context(), "websocket")
			if err != nil {
				s.sendError(conn, "", statusFor(err), "failed to create session: "+err.Error())
				continue
			}
			req.SessionID = info.ID
			s.send(conn, chatResponse{Type: "session", SessionID: info.ID})
		}

		switch req.Type {
		case "query":
			s.chatQuery(conn, r, req)
		case "agent":
			s.chatAgent(conn, r, req)
		case "reset":
			if err := s.sessions.Reset(r.Context(), req.SessionID); err != nil {
				s.sendError(conn, req.SessionID, statusFor(err), err.Error())
				continue
			}
			s.send(conn, chatResponse{Type: "reset", SessionID: req.SessionID})
		}
	}
}

func (s *Server) chatQuery(conn *websocket.Conn, r *http.Request, req chatRequest) {
	onDelta := func(d string) error {
		return conn.WriteJSON(chatResponse{Type: "delta", SessionID: req.SessionID, Content: d})
	}
	a, err := s.sessions.Query(r.Context(), req.SessionID, req.Topic, req.Content, onDelta)
	if err != nil {
		s.sendError(conn, req.SessionID, statusFor(err), err.Error())
		return
	}
	s.send(conn, chatResponse{Type: "answer", SessionID: req.SessionID, Content: a.Text})
}

func (s *Server) chatAgent(conn *websocket.Conn, r *http.Request, req chatRequest) {
	onStep := func(step agent.Step) {
		s.send(conn, chatResponse{Type: "step", SessionID: req.SessionID, Step: &step})
	}
	res, err := s.sessions.Agent(r.Context(), req.SessionID, req.Content, onStep)
	if err != nil {
		s.sendError(conn, req.SessionID, statusFor(err), err.Error())
		return
	}
	s.send(conn, chatResponse{Type: "answer", SessionID: req.SessionID, Content: res.Answer})
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", logging.Err(err))
	}
}

func (s *Server) sendError(conn *websocket.Conn, sessionID string, status int, message string) {
	s.send(conn, chatResponse{
		Type:      "error",
		SessionID: sessionID,
		Content:   message,
		Status:    status,
	})
}
