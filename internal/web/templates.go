// ABOUTME: Template rendering functions for the web UI
// ABOUTME: Builds the shared page frame and the per-request template functions

package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/account"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/chat"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/gallery"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/i18n"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/session"
)

// page is the frame every full page renders with
type page struct {
	TitleKey  string
	User      *account.User
	Lang      string
	Languages []string
	CSRFToken string
	Flashes   []flashMessage
	Data      any
}

type indexData struct {
	Unread int
}

type authFormData struct {
	Username string
	Email    string
}

type userPageData struct {
	Profile *account.User
	Posts   []gallery.Post
}

type galleryData struct {
	Posts   []gallery.Post
	Tag     string
	Query   string
	Subject string
	Accept  string
}

type chatListData struct {
	Chats []chat.Summary
}

type chatRoomData struct {
	Chat     *chat.Chat
	Partner  string
	Messages []chat.Message
}

type errorData struct {
	Status int
	Key    string
}

// funcs returns the template functions bound to lang
func (s *Server) funcs(lang string) template.FuncMap {
	return template.FuncMap{
		"t":        s.i18n.Translator(lang),
		"markdown": renderMarkdown,
		"lower":    strings.ToLower,
	}
}

// renderMarkdown converts user text to HTML. goldmark drops raw HTML by default.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(buf.String())
}

// render executes templates/<name> inside the base layout
func (s *Server) render(w http.ResponseWriter, r *http.Request, name, titleKey, csrfToken string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, titleKey, csrfToken, popFlash(w, r), data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name, titleKey, csrfToken string, flashes []flashMessage, data any) {
	lang := i18n.LangFromContext(r.Context())
	if lang == "" {
		lang = s.i18n.Default()
	}

	tmpl, err := template.New("base.html").Funcs(s.funcs(lang)).ParseFS(templateFS,
		"templates/base.html",
		"templates/partials/*.html",
		"templates/"+name,
	)
	if err != nil {
		s.logger.Error("failed to parse template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p := page{
		TitleKey:  titleKey,
		User:      session.UserFromContext(r.Context()),
		Lang:      lang,
		Languages: s.i18n.Languages(),
		CSRFToken: csrfToken,
		Flashes:   flashes,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		s.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows an error page for err
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	csrfToken := s.ensureCSRFToken(w, r)
	s.renderStatus(w, r, status, "error.html", "errors.title", csrfToken, nil, errorData{Status: status, Key: errorKey(err)})
}
