// ABOUTME: Gallery routes: filtered post listing, media upload and stored media serving
// ABOUTME: Upload outcomes are reported with a flash message after redirecting to the gallery

package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/gallery"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/query"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/session"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

const galleryPath = "/gallery/"

// multipartMemory is how much of a multipart body is held in memory before spilling to disk
const multipartMemory = 8 << 20

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	csrfToken := s.ensureCSRFToken(w, r)

	q := r.URL.Query()
	filter := query.PostFilter{
		Tag:     strings.TrimSpace(q.Get("tag")),
		Subject: strings.TrimSpace(q.Get("subject")),
		Text:    strings.TrimSpace(q.Get("q")),
	}

	posts, err := s.gallery.ListPosts(r.Context(), filter)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	accept := make([]string, 0)
	for _, ext := range s.gallery.AllowedExtensions() {
		accept = append(accept, "."+ext)
	}

	s.render(w, r, "gallery.html", "gallery.title", csrfToken, galleryData{
		Posts:   posts,
		Tag:     filter.Tag,
		Query:   filter.Text,
		Subject: filter.Subject,
		Accept:  strings.Join(accept, ","),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.logger.Warn("upload too large", "user_id", user.ID, "limit", maxBytes.Limit)
			s.renderError(w, r, err)
			return
		}
		redirectWithFlash(w, r, galleryPath, "error", "errors.bad_request")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if !s.validateCSRF(r) {
		redirectWithFlash(w, r, galleryPath, "error", "errors.csrf")
		return
	}

	req := gallery.UploadRequest{
		Content:     r.FormValue("content"),
		Tags:        r.FormValue("tags"),
		Description: r.FormValue("description"),
		Subject:     r.FormValue("subject"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		redirectWithFlash(w, r, galleryPath, "error", "errors.bad_request")
		return
	default:
		defer file.Close()
		req.Filename = header.Filename
		req.Body = file
		req.Size = header.Size
	}

	if _, err := s.gallery.Upload(r.Context(), user.ID, req); err != nil {
		switch {
		case errors.Is(err, validation.ErrInvalid):
			redirectWithFlash(w, r, galleryPath, "error", validation.Key(err))
		case errors.Is(err, gallery.ErrUnsupportedMediaType):
			redirectWithFlash(w, r, galleryPath, "error", "gallery.invalid_type")
		default:
			s.renderError(w, r, err)
		}
		return
	}

	redirectWithFlash(w, r, galleryPath, "success", "gallery.upload_success")
}

// handleMedia serves a stored upload
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	body, info, err := s.media.Open(r.Context(), r.PathValue("name"))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("failed to open media", "name", r.PathValue("name"), "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name, info.ModTime, body)
}
