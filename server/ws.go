package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/xhad/pdfchat/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the WebSocket envelope in both directions. Inbound messages
// carry type "chat" with a question and document id; outbound messages use
// types "stream", "error" and "done".
type Message struct {
	Type       string `json:"type"`
	Content    string `json:"content,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Gorilla connections allow one concurrent writer.
	var writeMu sync.Mutex
	send := func(msgType, content string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
			log.Printf("Error sending message: %v", err)
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			send("error", "invalid message")
			continue
		}
		if msg.Type != "chat" {
			send("error", "unsupported message type: "+msg.Type)
			continue
		}

		s.handleChatMessage(r, userID, msg, send)
	}
}

// handleChatMessage drains one answer stream into the connection. Questions
// on one connection are answered in arrival order.
func (s *Server) handleChatMessage(r *http.Request, userID string, msg Message, send func(msgType, content string)) {
	for event := range s.query.Answer(r.Context(), msg.DocumentID, userID, msg.Content) {
		switch event.Type {
		case models.EventToken:
			send("stream", event.Text)
		case models.EventError:
			send("error", event.Text)
		case models.EventDone:
			send("done", "")
		}
	}
}
