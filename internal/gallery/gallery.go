// ABOUTME: Gallery posts: media upload ingestion and filtered listing
// ABOUTME: Checks the extension allow-list, stores the file under a random name and records the post

package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/media"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/query"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

// ErrUnsupportedMediaType is returned when the file extension is not allow-listed
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Media kinds
const (
	KindImage = "image"
	KindVideo = "video"
)

// URLPrefix is the route stored media is served under
const URLPrefix = "/uploads/"

// DefaultAllowedExtensions is used when no allow-list is configured
var DefaultAllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "mp4", "mov", "webm"}

var videoExtensions = map[string]bool{"mp4": true, "mov": true, "webm": true}

// Post is one row of the posts table
type Post struct {
	ID          string
	AuthorID    string
	Content     string
	MediaURL    string
	MediaType   string
	Tags        string
	Description string
	Subject     string
	CreatedAt   string
}

// TagList returns the trimmed, non-empty tags
func (p Post) TagList() []string {
	return query.SplitTags(p.Tags)
}

// IsVideo reports whether the post holds a video
func (p Post) IsVideo() bool {
	return p.MediaType == KindVideo
}

func postFromRecord(r store.Record) Post {
	return Post{
		ID:          r.Get("id"),
		AuthorID:    r.Get("author_id"),
		Content:     r.Get("content"),
		MediaURL:    r.Get("media_url"),
		MediaType:   r.Get("media_type"),
		Tags:        r.Get("tags"),
		Description: r.Get("description"),
		Subject:     r.Get("subject"),
		CreatedAt:   r.Get("created_at"),
	}
}

// UploadRequest is one submitted gallery item
type UploadRequest struct {
	Filename string
	Body     io.Reader
	Size     int64

	Content     string
	Tags        string
	Description string
	Subject     string
}

// Service ingests uploads and lists posts
type Service struct {
	store   store.RecordStore
	media   media.Storage
	allowed map[string]bool
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a gallery service. An empty allow-list uses DefaultAllowedExtensions.
func NewService(s store.RecordStore, m media.Storage, allowed []string) *Service {
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	set := make(map[string]bool, len(allowed))
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = true
		}
	}
	return &Service{
		store:   s,
		media:   m,
		allowed: set,
		logger:  slog.Default().With("component", "gallery"),
		now:     time.Now,
	}
}

// Extension returns the lowercased extension of filename without the dot
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// KindFor maps an extension to its media kind
func KindFor(ext string) string {
	if videoExtensions[ext] {
		return KindVideo
	}
	return KindImage
}

// AllowedExtensions returns the allow-list, sorted
func (s *Service) AllowedExtensions() []string {
	out := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Allowed reports whether filename has an allow-listed extension
func (s *Service) Allowed(filename string) bool {
	ext := Extension(filename)
	return ext != "" && s.allowed[ext]
}

// Upload stores the file under <uuid>.<ext> and creates the post.
// The content is not sniffed; only the extension is checked, and the stored
// content type is derived from it rather than taken from the client.
func (s *Service) Upload(ctx context.Context, authorID string, req UploadRequest) (*Post, error) {
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return nil, validation.New("file", "gallery.no_file")
	}
	if !s.Allowed(req.Filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, req.Filename)
	}

	ext := Extension(req.Filename)
	name := uuid.New().String() + "." + ext
	if err := s.media.Save(ctx, name, req.Body, req.Size, media.ContentTypeFor(name)); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	post := &Post{
		ID:          uuid.New().String(),
		AuthorID:    authorID,
		Content:     req.Content,
		MediaURL:    URLPrefix + name,
		MediaType:   KindFor(ext),
		Tags:        req.Tags,
		Description: req.Description,
		Subject:     req.Subject,
		CreatedAt:   store.FormatTime(s.now()),
	}
	err := s.store.Append(ctx, store.TablePosts, map[string]string{
		"id":          post.ID,
		"author_id":   post.AuthorID,
		"content":     post.Content,
		"media_url":   post.MediaURL,
		"media_type":  post.MediaType,
		"tags":        post.Tags,
		"description": post.Description,
		"subject":     post.Subject,
		"created_at":  post.CreatedAt,
	})
	if err != nil {
		s.logger.Error("post not recorded, stored media is orphaned", "media", name, "error", err)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created", "post_id", post.ID, "media", name, "kind", post.MediaType)
	return post, nil
}

// ListPosts returns posts matching the filter, newest first
func (s *Service) ListPosts(ctx context.Context, f query.PostFilter) ([]Post, error) {
	records, err := s.store.ScanAll(ctx, store.TablePosts)
	if err != nil {
		return nil, fmt.Errorf("scanning posts: %w", err)
	}

	matched := query.Posts(records, f)
	posts := make([]Post, len(matched))
	for i, r := range matched {
		posts[i] = postFromRecord(r)
	}
	return posts, nil
}

// ListPostsByAuthor returns the posts of one author, newest first
func (s *Service) ListPostsByAuthor(ctx context.Context, authorID string) ([]Post, error) {
	if authorID == "" {
		return nil, nil
	}
	return s.ListPosts(ctx, query.PostFilter{AuthorID: authorID})
}
