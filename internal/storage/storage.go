// Package storage holds the artifact store used for uploaded images and
// generated audio. Backends are an S3-compatible bucket (MinIO, AWS S3) or a
// local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"captionapi/internal/config"
)

var (
	// ErrNotFound is returned when no object exists under the requested key.
	ErrNotFound = errors.New("object not found")
	// ErrPresignUnsupported is returned by backends that cannot hand out signed URLs.
	ErrPresignUnsupported = errors.New("presigned urls are not supported by this storage backend")
)

// CaptionPrefix is the key prefix under which every caption keeps its artifacts.
const CaptionPrefix = "captions/"

// CaptionKey returns the key of artifact name stored for caption id.
func CaptionKey(id, name string) string {
	return path.Join(CaptionPrefix, id, name)
}

// CaptionIDOf returns the caption id a key belongs to, or "" for keys outside
// CaptionPrefix.
func CaptionIDOf(key string) string {
	rest, ok := strings.CutPrefix(key, CaptionPrefix)
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return id
}

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
// Location is where the object can be found outside the service: a
// filesystem path for the local backend, an s3:// URI for bucket backends.
type ObjectInfo struct {
	Key          string
	Location     string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the artifact store client interface.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New opens the backend named by sc.Driver.
func New(sc config.StorageConfig, mc config.MinIOConfig) (Storage, error) {
	switch strings.ToLower(sc.Driver) {
	case "", "local":
		return NewLocal(sc.UploadDir)
	case "minio", "s3":
		return NewMinIO(mc)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}
