// ABOUTME: Storage abstraction for uploaded media files
// ABOUTME: Objects are flat names such as <uuid>.png served back under /uploads/

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a stored object does not exist
var ErrNotFound = errors.New("media not found")

// ErrInvalidName is returned for names that are empty or would escape the storage root
var ErrInvalidName = errors.New("invalid media name")

// Info describes a stored object
type Info struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Storage persists uploaded files under flat names
type Storage interface {
	// Save writes body under name. size may be -1 when unknown.
	Save(ctx context.Context, name string, body io.Reader, size int64, contentType string) error

	// Open returns a seekable reader for name
	Open(ctx context.Context, name string) (io.ReadSeekCloser, Info, error)
}

// ValidateName rejects names that are not a single plain path element
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case filepath.Base(name) != name:
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// videoTypes covers extensions missing from Go's builtin table, so the
// result does not depend on the host's mime.types
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// ContentTypeFor guesses a content type from the name's extension
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
