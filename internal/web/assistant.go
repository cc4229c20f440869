// ABOUTME: Assistant routes: the chat page and the JSON endpoint relaying to the model provider
// ABOUTME: Provider failures are returned as {"error": ...} payloads

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/assistant"
)

type assistantRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAssistantPage(w http.ResponseWriter, r *http.Request) {
	csrfToken := s.ensureCSRFToken(w, r)
	s.render(w, r, "ai_chat.html", "ai.title", csrfToken, nil)
}

func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "csrf"})
		return
	}

	var req assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	reply, err := s.assistant.Reply(r.Context(), req.Message)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty"})
	case errors.Is(err, assistant.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "API key not configured"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, reply)
	}
}
