// ABOUTME: Tests for upload ingestion and post listing
// ABOUTME: Uses disk media storage in a temp dir and the in-memory record store

package gallery

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/media"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/query"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

var storedName = regexp.MustCompile(`^/uploads/[0-9a-f-]{36}\.png$`)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, store.EnsureSchema(context.Background(), s))
	dir := filepath.Join(t.TempDir(), "uploads")
	return NewService(s, media.NewDiskStorage(dir), nil), dir
}

func TestUpload_UppercaseExtensionAccepted(t *testing.T) {
	svc, dir := newTestService(t)

	post, err := svc.Upload(context.Background(), "ana", UploadRequest{
		Filename: "photo.PNG",
		Body:     strings.NewReader("png-bytes"),
		Size:     9,
		Tags:     "chem, lab",
	})
	require.NoError(t, err)

	assert.Regexp(t, storedName, post.MediaURL)
	assert.Equal(t, KindImage, post.MediaType)
	assert.Equal(t, "ana", post.AuthorID)

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(post.MediaURL, URLPrefix)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestUpload_RejectsExecutable(t *testing.T) {
	svc, dir := newTestService(t)

	_, err := svc.Upload(context.Background(), "ana", UploadRequest{
		Filename: "payload.exe",
		Body:     strings.NewReader("MZ"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "nothing should be written for rejected uploads")

	posts, err := svc.ListPosts(context.Background(), query.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestUpload_MissingFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "ana", UploadRequest{Filename: ""})
	assert.ErrorIs(t, err, validation.ErrInvalid)
	assert.Equal(t, "gallery.no_file", validation.Key(err))
}

func TestUpload_NoExtension(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "ana", UploadRequest{Filename: "README", Body: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestKindFor(t *testing.T) {
	for _, ext := range []string{"mp4", "mov", "webm"} {
		assert.Equal(t, KindVideo, KindFor(ext), ext)
	}
	for _, ext := range []string{"png", "jpg", "gif"} {
		assert.Equal(t, KindImage, KindFor(ext), ext)
	}
}

func TestCustomAllowList(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), media.NewDiskStorage(t.TempDir()), []string{" .PNG", "webp"})

	assert.True(t, svc.Allowed("a.png"))
	assert.True(t, svc.Allowed("a.WEBP"))
	assert.False(t, svc.Allowed("a.jpg"))
}

func TestListPosts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	upload := func(author, tags, desc string) *Post {
		t.Helper()
		p, err := svc.Upload(ctx, author, UploadRequest{
			Filename:    "x.mp4",
			Body:        strings.NewReader("v"),
			Tags:        tags,
			Description: desc,
		})
		require.NoError(t, err)
		return p
	}

	chem := upload("ana", "chem, lab", "acid base")
	bio := upload("bo", "bio", "cells")

	posts, err := svc.ListPosts(ctx, query.PostFilter{Tag: "chem"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, chem.ID, posts[0].ID)
	assert.True(t, posts[0].IsVideo())
	assert.Equal(t, []string{"chem", "lab"}, posts[0].TagList())

	byAuthor, err := svc.ListPostsByAuthor(ctx, "bo")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, bio.ID, byAuthor[0].ID)

	none, err := svc.ListPostsByAuthor(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// recordingStorage keeps the content type passed to Save for each name
type recordingStorage struct {
	media.Storage
	contentTypes map[string]string
}

func (r *recordingStorage) Save(ctx context.Context, name string, body io.Reader, size int64, contentType string) error {
	r.contentTypes[name] = contentType
	return r.Storage.Save(ctx, name, body, size, contentType)
}

func TestUpload_ContentTypeFromExtension(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, store.EnsureSchema(context.Background(), s))
	rec := &recordingStorage{
		Storage:      media.NewDiskStorage(t.TempDir()),
		contentTypes: make(map[string]string),
	}
	svc := NewService(s, rec, nil)

	tests := []struct {
		filename string
		want     string
	}{
		{"photo.png", "image/png"},
		{"clip.MP4", "video/mp4"},
	}
	for _, tt := range tests {
		post, err := svc.Upload(context.Background(), "ana", UploadRequest{
			Filename: tt.filename,
			Body:     strings.NewReader("<script>alert(1)</script>"),
		})
		require.NoError(t, err, tt.filename)

		name := strings.TrimPrefix(post.MediaURL, URLPrefix)
		assert.Equal(t, tt.want, rec.contentTypes[name], tt.filename)
	}
}

// appendFailingStore rejects every Append
type appendFailingStore struct {
	store.RecordStore
}

func (appendFailingStore) Append(ctx context.Context, table string, values map[string]string) error {
	return store.ErrStoreUnavailable
}

func TestUpload_StoreFailureAfterSave(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, store.EnsureSchema(context.Background(), s))
	dir := t.TempDir()
	svc := NewService(appendFailingStore{s}, media.NewDiskStorage(dir), nil)

	_, err := svc.Upload(context.Background(), "ana", UploadRequest{
		Filename: "photo.png",
		Body:     strings.NewReader("png-bytes"),
	})
	require.ErrorIs(t, err, store.ErrStoreUnavailable)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "saved media stays on disk for cleanup")
}
