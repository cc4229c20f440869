// ABOUTME: S3-compatible object storage implementation of media Storage using minio-go
// ABOUTME: Objects are stored as <prefix>/<name> in a single bucket

package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures ObjectStorage
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// Validate checks that the required fields are set. Region can be empty for MinIO.
func (c S3Config) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing s3 settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ObjectStorage keeps media in an S3 bucket
type ObjectStorage struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Ensure ObjectStorage implements Storage.
var _ Storage = (*ObjectStorage)(nil)

// NewObjectStorage creates an S3 client. No request is made until first use.
func NewObjectStorage(cfg S3Config) (*ObjectStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	return &ObjectStorage{
		client: cl,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: slog.Default().With("component", "media", "backend", "s3"),
	}, nil
}

func (o *ObjectStorage) key(name string) string {
	if o.prefix == "" {
		return name
	}
	return o.prefix + "/" + name
}

// Save uploads body as one object
func (o *ObjectStorage) Save(ctx context.Context, name string, body io.Reader, size int64, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}

	info, err := o.client.PutObject(ctx, o.bucket, o.key(name), body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}

	o.logger.Debug("media uploaded", "key", info.Key, "size", info.Size)
	return nil
}

// Open fetches an object; the returned reader is seekable for range requests
func (o *ObjectStorage) Open(ctx context.Context, name string) (io.ReadSeekCloser, Info, error) {
	if err := ValidateName(name); err != nil {
		return nil, Info{}, err
	}

	obj, err := o.client.GetObject(ctx, o.bucket, o.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, fmt.Errorf("fetching %s: %w", name, err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if resp := minio.ToErrorResponse(err); resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, Info{}, fmt.Errorf("stat %s: %w", name, err)
	}

	// stored metadata is not trusted; the extension decides
	return obj, Info{
		Name:        name,
		Size:        st.Size,
		ContentType: ContentTypeFor(name),
		ModTime:     st.LastModified,
	}, nil
}
