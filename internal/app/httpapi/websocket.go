package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cartrewards/service_layer/internal/app/services/rewards"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// sessionMessage is a cart drawer event.
type sessionMessage struct {
	Type      string `json:"type"`
	CartValue *int64 `json:"cartValue,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

// sessionFrame is sent after every client message.
type sessionFrame struct {
	Type     string `json:"type"`
	Accepted *bool  `json:"accepted,omitempty"`
	Error    string `json:"error,omitempty"`
	*rewards.Eligibility
}

// rewardSession holds one selection state machine per connection, mirroring
// a cart drawer that stays open while the cart total changes.
func (h *handler) rewardSession(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.log.WithTrace(r.Context()).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithTrace(r.Context())
	session := h.app.Rewards.NewSession()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	current := session.Current()
	if err := writeFrame(conn, sessionFrame{Type: "state", Eligibility: &current}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("reward session closed")
			}
			return
		}
		frame := handleSessionMessage(session, data)
		if err := writeFrame(conn, frame); err != nil {
			log.WithError(err).Debug("reward session write failed")
			return
		}
	}
}

func handleSessionMessage(session *rewards.Session, data []byte) sessionFrame {
	var msg sessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorFrame(fmt.Errorf("invalid message: %w", err))
	}

	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "cart":
		if msg.CartValue == nil {
			return errorFrame(fmt.Errorf("cartValue is required"))
		}
		result, err := session.UpdateCart(*msg.CartValue)
		if err != nil {
			return errorFrame(err)
		}
		return sessionFrame{Type: "state", Eligibility: &result}
	case "toggle":
		result, err := session.Toggle(msg.ProductID)
		if err != nil {
			return errorFrame(err)
		}
		accepted := result.Accepted
		return sessionFrame{Type: "state", Accepted: &accepted, Eligibility: &result.Eligibility}
	default:
		return errorFrame(fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

func errorFrame(err error) sessionFrame {
	return sessionFrame{Type: "error", Error: err.Error()}
}

func writeFrame(conn *websocket.Conn, frame sessionFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
