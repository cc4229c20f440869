// ABOUTME: Direct message routes: conversation list, room page and the polling JSON API
// ABOUTME: Unknown conversations and non-members both answer 404

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/account"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/chat"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/session"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

const chatListPath = "/chat/"

type sendMessageRequest struct {
	Content string `json:"content"`
}

type markReadRequest struct {
	At string `json:"at"`
}

func (s *Server) handleChatList(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	csrfToken := s.ensureCSRFToken(w, r)

	chats, err := s.chat.ListConversationSummaries(r.Context(), user.ID, s.accounts)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.render(w, r, "chat_list.html", "chat.title", csrfToken, chatListData{Chats: chats})
}

// handleChatStart opens the conversation with a username, creating it on first contact
func (s *Server) handleChatStart(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, chatListPath, "error", "errors.bad_request")
		return
	}
	if !s.validateCSRF(r) {
		redirectWithFlash(w, r, chatListPath, "error", "errors.csrf")
		return
	}

	username, err := validation.Required("username", r.FormValue("username"), "chat.user_required")
	if err != nil {
		redirectWithFlash(w, r, chatListPath, "error", validation.Key(err))
		return
	}
	target, err := s.accounts.GetByUsername(r.Context(), username)
	if errors.Is(err, account.ErrNotFound) {
		redirectWithFlash(w, r, chatListPath, "error", "chat.user_not_found")
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	c, err := s.chat.GetOrCreateChat(r.Context(), user.ID, target.ID)
	if err != nil {
		if errors.Is(err, validation.ErrInvalid) {
			redirectWithFlash(w, r, chatListPath, "error", validation.Key(err))
			return
		}
		s.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, chatListPath+c.ID, http.StatusSeeOther)
}

// handleChatRoom shows one conversation and marks it read for the viewer
func (s *Server) handleChatRoom(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	csrfToken := s.ensureCSRFToken(w, r)

	c, err := s.chat.RequireParticipant(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	messages, err := s.chat.ListMessages(r.Context(), c.ID, "")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	partner := chat.UnknownPartner
	if p, err := s.accounts.GetByID(r.Context(), c.Partner(user.ID)); err == nil {
		partner = p.Username
	}

	if _, err := s.chat.SetLastRead(r.Context(), c.ID, user.ID, ""); err != nil {
		s.logger.Warn("failed to mark chat read", "chat_id", c.ID, "error", err)
	}

	s.render(w, r, "chat_room.html", "chat.title", csrfToken, chatRoomData{
		Chat:     c,
		Partner:  partner,
		Messages: messages,
	})
}

// requireChat resolves the path conversation for the API routes, writing a
// JSON error when the viewer may not see it
func (s *Server) requireChat(w http.ResponseWriter, r *http.Request) (*chat.Chat, bool) {
	user := session.UserFromContext(r.Context())
	c, err := s.chat.RequireParticipant(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("failed to load chat", "chat_id", r.PathValue("id"), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return nil, false
	}
	return c, true
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requireChat(w, r)
	if !ok {
		return
	}

	messages, err := s.chat.ListMessages(r.Context(), c.ID, r.URL.Query().Get("since"))
	if err != nil {
		s.logger.Error("failed to list messages", "chat_id", c.ID, "error", err)
		writeJSON(w, statusFor(err), map[string]string{"error": http.StatusText(statusFor(err))})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	if !s.validateCSRF(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"ok": false, "error": "csrf"})
		return
	}

	c, ok := s.requireChat(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, statusFor(err), map[string]any{"ok": false})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}

	msg, err := s.chat.AddMessage(r.Context(), c.ID, user.ID, req.Content)
	if err != nil {
		if !errors.Is(err, validation.ErrInvalid) {
			s.logger.Error("failed to add message", "chat_id", c.ID, "error", err)
		}
		writeJSON(w, statusFor(err), map[string]any{"ok": false, "error": errorKey(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": msg})
}

// handleMarkRead moves the viewer's read marker. The body may carry
// {"at": "<timestamp>"}; otherwise the current time is used.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	if !s.validateCSRF(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"ok": false, "error": "csrf"})
		return
	}

	c, ok := s.requireChat(w, r)
	if !ok {
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}
	if req.At != "" {
		if _, err := store.ParseTime(req.At); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
			return
		}
	}

	ts, err := s.chat.SetLastRead(r.Context(), c.ID, user.ID, req.At)
	if err != nil {
		s.logger.Error("failed to mark chat read", "chat_id", c.ID, "error", err)
		writeJSON(w, statusFor(err), map[string]any{"ok": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "last_read_at": ts})
}

// handleUnreadCount never fails; errors read as zero
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"count": s.unreadCount(r.Context(), user.ID)})
}
