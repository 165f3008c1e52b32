package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	OriginalsPrefix  = "originals/"
	ThumbnailsPrefix = "thumbnails/"

	maxKeyLength = 1024
)

var (
	// ErrNotFound is returned (wrapped) when a blob key does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are empty, absolute or escape their prefix.
	ErrInvalidKey = errors.New("invalid blob key")
)

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string // quoted, ready for the ETag header
	LastModified time.Time
}

// Store is the binary object store holding originals and thumbnails.
type Store interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) (ObjectInfo, error)
	// Get returns the blob body; the caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete is idempotent: a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every blob whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

func OriginalKey(fileName string) string {
	return OriginalsPrefix + fileName
}

func ThumbnailKey(fileName string) string {
	return ThumbnailsPrefix + fileName
}

// FileNameFromKey strips the variant prefix from a blob key.
func FileNameFromKey(key string) string {
	if name, ok := strings.CutPrefix(key, OriginalsPrefix); ok {
		return name
	}
	if name, ok := strings.CutPrefix(key, ThumbnailsPrefix); ok {
		return name
	}
	return key
}

// ValidateKey rejects keys that are not already in clean, relative slash form.
func ValidateKey(key string) error {
	switch {
	case key == "", len(key) > maxKeyLength:
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case strings.HasPrefix(key, "/"), strings.Contains(key, "\\"), strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case path.Clean(key) != key:
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case key == "..", strings.HasPrefix(key, "../"):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func quoteETag(etag string) string {
	if etag == "" || strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, `W/"`) {
		return etag
	}
	return `"` + etag + `"`
}
