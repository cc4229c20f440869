// ABOUTME: Tests for media name validation, disk storage and S3 configuration
// ABOUTME: Disk tests run in t.TempDir(); S3 tests stop short of network calls

package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	valid := []string{"a.png", "2f1c7e9a-1111-4222-8333-944445555666.mp4"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", ".", "..", "../etc/passwd", "sub/a.png", `..\a.png`, "a..png"}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, name)
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("x.PNG"))
	assert.Equal(t, "video/mp4", ContentTypeFor("clip.MP4"))
	assert.Equal(t, "video/quicktime", ContentTypeFor("clip.mov"))
	assert.Equal(t, "video/webm", ContentTypeFor("clip.webm"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("noext"))
}

func TestDiskStorage_SaveAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	d := NewDiskStorage(dir)
	ctx := context.Background()

	require.NoError(t, d.Save(ctx, "a.png", strings.NewReader("pixels"), 6, "image/png"))

	f, info, err := d.Open(ctx, "a.png")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
	assert.Equal(t, int64(6), info.Size)
	assert.Equal(t, "image/png", info.ContentType)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDiskStorage_OpenMissing(t *testing.T) {
	d := NewDiskStorage(t.TempDir())

	_, _, err := d.Open(context.Background(), "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStorage_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	d := NewDiskStorage(filepath.Join(root, "uploads"))

	err := d.Save(context.Background(), "../escape.png", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, statErr := os.Stat(filepath.Join(root, "escape.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestS3Config_Validate(t *testing.T) {
	err := S3Config{Endpoint: "localhost:9000"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
	assert.Contains(t, err.Error(), "secret_key")

	cfg := S3Config{Endpoint: "localhost:9000", Bucket: "media", AccessKey: "k", SecretKey: "s", Prefix: "/uploads/"}
	require.NoError(t, cfg.Validate())

	o, err := NewObjectStorage(cfg)
	require.NoError(t, err)
	assert.Equal(t, "uploads/a.png", o.key("a.png"))
}

func TestObjectStorage_RejectsInvalidNameBeforeNetwork(t *testing.T) {
	o, err := NewObjectStorage(S3Config{Endpoint: "localhost:1", Bucket: "b", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)

	err = o.Save(context.Background(), "../x", strings.NewReader(""), 0, "")
	assert.ErrorIs(t, err, ErrInvalidName)
}
