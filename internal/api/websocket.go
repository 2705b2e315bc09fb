package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"englishtutor/internal/auth"
	"englishtutor/internal/sessions"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// wsClientMessage is what the frontend sends for one turn.
type wsClientMessage struct {
	Text string `json:"text"`
}

// wsServerMessage is one event on the way back: a streamed "chunk", a
// terminal "done" with the persisted messages, or an "error". After an
// error the client keeps whatever prefix it already rendered; nothing was
// persisted server-side.
type wsServerMessage struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	Message      string            `json:"message,omitempty"`
	UserMessage  *sessions.Message `json:"user_message,omitempty"`
	AgentMessage *sessions.Message `json:"agent_message,omitempty"`
}

// ChatWebSocketHandler upgrades the connection and serves turns until the
// client disconnects. Each incoming message runs one full turn; reply text
// is streamed chunk by chunk as the model produces it.
func (h *Handler) ChatWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.sessionService.GetOwned(r.Context(), sessionID, userID); err != nil {
		h.sessionError(w, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logrus.Errorf("Failed to accept websocket for session %d: %v", sessionID, err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	logrus.Infof("Chat websocket opened for session %d by user %d", sessionID, userID)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, ctx.Err()) {
				logrus.Warnf("Websocket read error for session %d: %v", sessionID, err)
			}
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.wsSend(ctx, ws, wsServerMessage{Type: "error", Message: "invalid message"})
			continue
		}

		result, err := h.controller.SendMessage(ctx, userID, sessionID, msg.Text, "", func(chunk string) {
			h.wsSend(ctx, ws, wsServerMessage{Type: "chunk", Text: chunk})
		})
		if err != nil {
			logrus.Errorf("Turn failed for session %d: %v", sessionID, err)
			h.wsSend(ctx, ws, wsServerMessage{Type: "error", Message: "The tutor is unavailable right now, please try again"})
			continue
		}
		if result == nil {
			// Empty input, nothing happened.
			continue
		}

		h.wsSend(ctx, ws, wsServerMessage{
			Type:         "done",
			UserMessage:  result.UserMessage,
			AgentMessage: result.AgentMessage,
		})
	}
}

func (h *Handler) wsSend(ctx context.Context, ws *websocket.Conn, v wsServerMessage) {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.Errorf("Failed to marshal websocket message: %v", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		logrus.Debugf("Websocket write failed: %v", err)
	}
}
