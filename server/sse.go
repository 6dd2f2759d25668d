package server

import (
	"fmt"
	"net/http"

	"github.com/xhad/pdfchat/internal/models"
)

// handleChat streams one answer over Server-Sent Events. Token payloads are
// sent raw, errors as "[ERROR] <message>" and the terminal frame is a
// literal "[DONE]". Every frame is flushed immediately.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	documentID := r.URL.Query().Get("documentId")
	question := r.URL.Query().Get("question")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for event := range s.query.Answer(r.Context(), documentID, userID, question) {
		switch event.Type {
		case models.EventToken:
			fmt.Fprintf(w, "data: %s\n\n", event.Text)
		case models.EventError:
			fmt.Fprintf(w, "data: [ERROR] %s\n\n", event.Text)
		case models.EventDone:
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
		flusher.Flush()
	}
}
