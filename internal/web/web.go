// ABOUTME: HTTP surface of the app: routes, CSRF protection, flash messages and JSON helpers
// ABOUTME: Handlers delegate to the account, gallery, chat and assistant services

package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/account"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/assistant"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/chat"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/gallery"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/i18n"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/media"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/session"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

const (
	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "cleanchem_csrf"

	// FlashCookieName carries one message across a redirect
	FlashCookieName = "cleanchem_flash"

	// DefaultMaxBodyBytes caps request bodies when Config.MaxBodyBytes is unset
	DefaultMaxBodyBytes = 16 << 20
)

// Config holds HTTP surface settings
type Config struct {
	// MaxBodyBytes is the request body ceiling, uploads included
	MaxBodyBytes int64
}

// Services are the domain services behind the handlers
type Services struct {
	Accounts  *account.Service
	Sessions  *session.Manager
	Gallery   *gallery.Service
	Chat      *chat.Service
	Assistant *assistant.Service
	Media     media.Storage
	I18n      *i18n.Bundle
}

// Server handles every app route
type Server struct {
	accounts  *account.Service
	sessions  *session.Manager
	gallery   *gallery.Service
	chat      *chat.Service
	assistant *assistant.Service
	media     media.Storage
	i18n      *i18n.Bundle
	config    Config
	logger    *slog.Logger
}

// New creates the HTTP surface
func New(svc Services, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		accounts:  svc.Accounts,
		sessions:  svc.Sessions,
		gallery:   svc.Gallery,
		chat:      svc.Chat,
		assistant: svc.Assistant,
		media:     svc.Media,
		i18n:      svc.I18n,
		config:    cfg,
		logger:    slog.Default().With("component", "web"),
	}
}

// RegisterRoutes registers all routes on the given mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))

	// Accounts
	mux.HandleFunc("GET /auth/login", s.handleLoginPage)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/register", s.handleRegisterPage)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("GET /auth/logout", session.RequireUser(s.handleLogout))
	mux.HandleFunc("GET /auth/u/{username}", s.handleUserPage)

	// Gallery
	mux.HandleFunc("GET /gallery/{$}", session.RequireUser(s.handleGallery))
	mux.HandleFunc("POST /gallery/upload", session.RequireUser(s.handleUpload))
	mux.HandleFunc("GET /uploads/{name}", s.handleMedia)

	// Direct messages
	mux.HandleFunc("GET /chat/{$}", session.RequireUser(s.handleChatList))
	mux.HandleFunc("POST /chat/start", session.RequireUser(s.handleChatStart))
	mux.HandleFunc("GET /chat/{id}", session.RequireUser(s.handleChatRoom))
	mux.HandleFunc("GET /chat/api/unread", session.RequireUser(s.handleUnreadCount))
	mux.HandleFunc("GET /chat/api/{id}/messages", session.RequireUser(s.handleMessages))
	mux.HandleFunc("POST /chat/api/{id}/messages", session.RequireUser(s.handleSendMessage))
	mux.HandleFunc("POST /chat/api/{id}/read", session.RequireUser(s.handleMarkRead))

	// Assistant
	mux.HandleFunc("GET /ai/{$}", session.RequireUser(s.handleAssistantPage))
	mux.HandleFunc("POST /ai/api/chat", session.RequireUser(s.handleAssistantChat))

	s.logger.Info("routes registered")
}

// Handler returns the routes wrapped in the request middleware: body
// ceiling, language negotiation and session identity.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var h http.Handler = mux
	h = s.sessions.Identify(h)
	h = s.i18n.Middleware(h)
	h = s.limitBody(h)
	return h
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	csrfToken := s.ensureCSRFToken(w, r)

	data := indexData{}
	if user := session.UserFromContext(r.Context()); user != nil {
		data.Unread = s.unreadCount(r.Context(), user.ID)
	}
	s.render(w, r, "index.html", "nav.home", csrfToken, data)
}

// unreadCount never fails; a store error reads as zero
func (s *Server) unreadCount(ctx context.Context, userID string) int {
	n, err := s.chat.CountUnreadConversations(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to count unread conversations", "error", err, "user_id", userID)
		return 0
	}
	return n
}

// ensureCSRFToken returns the request's CSRF token, issuing a cookie when absent
func (s *Server) ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	return token
}

// validateCSRF checks the CSRF token from the form or the X-CSRF-Token header against the cookie
func (s *Server) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	token := r.Header.Get("X-CSRF-Token")
	if token == "" {
		token = r.FormValue("csrf_token")
	}

	return token != "" && token == cookie.Value
}

func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// flashMessage is a localization key plus a display category
type flashMessage struct {
	Category string
	Key      string
}

// setFlash stores a message for the next rendered page
func setFlash(w http.ResponseWriter, category, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    url.QueryEscape(category + ":" + key),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash message
func popFlash(w http.ResponseWriter, r *http.Request) []flashMessage {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	category, key, ok := strings.Cut(raw, ":")
	if !ok || key == "" {
		return nil
	}
	return []flashMessage{{Category: category, Key: key}}
}

// redirectWithFlash sets a flash message and answers 303 See Other
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, category, key string) {
	setFlash(w, category, key)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, gallery.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, chat.ErrUnauthorized),
		errors.Is(err, account.ErrNotFound), errors.Is(err, media.ErrNotFound),
		errors.Is(err, media.ErrInvalidName), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStoreUnavailable), errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorKey picks the localization key shown for err
func errorKey(err error) string {
	if key := validation.Key(err); key != "" {
		return key
	}
	switch statusFor(err) {
	case http.StatusNotFound:
		return "errors.not_found"
	case http.StatusRequestEntityTooLarge:
		return "errors.too_large"
	case http.StatusServiceUnavailable:
		return "errors.unavailable"
	default:
		return "errors.internal"
	}
}
