// ABOUTME: Local directory implementation of media Storage
// ABOUTME: Creates the upload directory on demand and writes files atomically via rename

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskStorage keeps media in a single directory
type DiskStorage struct {
	dir    string
	logger *slog.Logger
}

// Ensure DiskStorage implements Storage.
var _ Storage = (*DiskStorage)(nil)

// NewDiskStorage returns storage rooted at dir. The directory is created on first write.
func NewDiskStorage(dir string) *DiskStorage {
	return &DiskStorage{
		dir:    dir,
		logger: slog.Default().With("component", "media", "backend", "disk"),
	}
}

// Dir returns the root directory
func (d *DiskStorage) Dir() string {
	return d.dir
}

// Save writes body to <dir>/<name>
func (d *DiskStorage) Save(ctx context.Context, name string, body io.Reader, size int64, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.dir, name)); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}

	d.logger.Debug("media saved", "name", name)
	return nil
}

// Open opens <dir>/<name> for reading
func (d *DiskStorage) Open(ctx context.Context, name string) (io.ReadSeekCloser, Info, error) {
	if err := ValidateName(name); err != nil {
		return nil, Info{}, err
	}

	f, err := os.Open(filepath.Join(d.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, Info{}, fmt.Errorf("opening %s: %w", name, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Info{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return f, Info{
		Name:        name,
		Size:        st.Size(),
		ContentType: ContentTypeFor(name),
		ModTime:     st.ModTime(),
	}, nil
}
