// ABOUTME: Account routes: login, registration, logout and public profile pages
// ABOUTME: Failed attempts re-render the form with a flash message and never set a session

package web

import (
	"errors"
	"net/http"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/account"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/session"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	csrfToken := s.ensureCSRFToken(w, r)
	s.render(w, r, "login.html", "auth.login", csrfToken, authFormData{})
}

func (s *Server) renderAuthForm(w http.ResponseWriter, r *http.Request, status int, name, titleKey, flashKey string, form authFormData) {
	csrfToken := s.ensureCSRFToken(w, r)
	s.renderStatus(w, r, status, name, titleKey, csrfToken, []flashMessage{{Category: "error", Key: flashKey}}, form)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderAuthForm(w, r, http.StatusBadRequest, "login.html", "auth.login", "errors.bad_request", authFormData{})
		return
	}

	if !s.validateCSRF(r) {
		s.renderAuthForm(w, r, http.StatusForbidden, "login.html", "auth.login", "errors.csrf", authFormData{})
		return
	}

	username := validation.NormalizeUsername(r.FormValue("username"))
	password := r.FormValue("password")
	form := authFormData{Username: username}

	user, err := s.accounts.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			s.logger.Info("login failed", "username", username)
			s.renderAuthForm(w, r, http.StatusUnauthorized, "login.html", "auth.login", "auth.invalid_credentials", form)
			return
		}
		s.logger.Error("failed to authenticate", "error", err)
		s.renderAuthForm(w, r, statusFor(err), "login.html", "auth.login", errorKey(err), form)
		return
	}

	if err := s.sessions.Issue(w, r, user.ID); err != nil {
		s.logger.Error("failed to create session", "error", err)
		s.renderAuthForm(w, r, http.StatusInternalServerError, "login.html", "auth.login", "errors.internal", form)
		return
	}

	s.logger.Info("login successful", "username", user.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if session.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	csrfToken := s.ensureCSRFToken(w, r)
	s.render(w, r, "register.html", "auth.register", csrfToken, authFormData{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderAuthForm(w, r, http.StatusBadRequest, "register.html", "auth.register", "errors.bad_request", authFormData{})
		return
	}

	if !s.validateCSRF(r) {
		s.renderAuthForm(w, r, http.StatusForbidden, "register.html", "auth.register", "errors.csrf", authFormData{})
		return
	}

	form := authFormData{
		Username: validation.NormalizeUsername(r.FormValue("username")),
		Email:    r.FormValue("email"),
	}

	user, err := s.accounts.Register(r.Context(), form.Username, form.Email, r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, validation.ErrInvalid) {
			s.logger.Error("failed to register user", "error", err)
		}
		s.renderAuthForm(w, r, statusFor(err), "register.html", "auth.register", errorKey(err), form)
		return
	}

	if err := s.sessions.Issue(w, r, user.ID); err != nil {
		s.logger.Error("failed to create session", "error", err)
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleUserPage shows a profile with the user's posts. Unknown users get an empty page.
func (s *Server) handleUserPage(w http.ResponseWriter, r *http.Request) {
	csrfToken := s.ensureCSRFToken(w, r)

	data := userPageData{}
	profile, err := s.accounts.GetByUsername(r.Context(), r.PathValue("username"))
	switch {
	case errors.Is(err, account.ErrNotFound):
	case err != nil:
		s.renderError(w, r, err)
		return
	default:
		data.Profile = profile
		data.Posts, err = s.gallery.ListPostsByAuthor(r.Context(), profile.ID)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
	}

	s.render(w, r, "user.html", "profile.title", csrfToken, data)
}
