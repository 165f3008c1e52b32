package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	metaDirName = ".meta"
	tempDirName = ".tmp"
)

// LocalStorage implements the Store interface using the local filesystem.
// Blob bytes live at <base>/<key>; content type and ETag live in a JSON sidecar under <base>/.meta.
type LocalStorage struct {
	basePath string // absolute path to the MEDIA_STORAGE_PATH
	metaPath string
	tempPath string
	logger   *slog.Logger
}

type localMeta struct {
	ContentType string    `json:"contentType"`
	ETag        string    `json:"etag"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"storedAt"`
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, logger *slog.Logger) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	ls := &LocalStorage{
		basePath: absBasePath,
		metaPath: filepath.Join(absBasePath, metaDirName),
		tempPath: filepath.Join(absBasePath, tempDirName),
		logger:   logger,
	}
	for _, dir := range []string{ls.basePath, ls.metaPath, ls.tempPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory '%s': %w", dir, err)
		}
	}

	logger.Info("initialized local blob storage", "path", absBasePath)
	return ls, nil
}

// Put streams data into a temp file and renames it into place, so readers never see a partial blob.
func (ls *LocalStorage) Put(_ context.Context, key string, data io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	tmp, err := os.CreateTemp(ls.tempPath, "blob-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create temp file for '%s': %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), data)
	if err != nil {
		tmp.Close()
		return ObjectInfo{}, fmt.Errorf("failed to write data for '%s': %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to flush data for '%s': %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create directory for '%s': %w", key, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to move blob into place at '%s': %w", fullPath, err)
	}

	meta := localMeta{
		ContentType: contentType,
		ETag:        quoteETag(hex.EncodeToString(hasher.Sum(nil))),
		Size:        written,
		StoredAt:    time.Now().UTC(),
	}
	if err := ls.writeMeta(key, meta); err != nil {
		return ObjectInfo{}, err
	}

	ls.logger.Debug("stored blob", "key", key, "size", written)
	return ObjectInfo{
		Key:          key,
		Size:         written,
		ContentType:  meta.ContentType,
		ETag:         meta.ETag,
		LastModified: meta.StoredAt,
	}, nil
}

func (ls *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("blob '%s': %w", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, fmt.Errorf("failed to open blob '%s': %w", key, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("failed to stat blob '%s': %w", key, err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("blob '%s': %w", key, ErrNotFound)
	}

	return file, ls.describe(key, fullPath, stat), nil
}

// Delete removes the blob and its sidecar.
func (ls *LocalStorage) Delete(_ context.Context, key string) error {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob '%s': %w", key, err)
	}
	if err := os.Remove(ls.metaFile(fullPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		ls.logger.Warn("failed to delete blob sidecar", "key", key, "error", err)
	}
	return nil
}

func (ls *LocalStorage) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	err := filepath.WalkDir(ls.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == ls.metaPath || p == ls.tempPath {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(ls.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		stat, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ls.describe(key, p, stat))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs under '%s': %w", prefix, err)
	}
	return objects, nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	fullPath := filepath.Join(ls.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(fullPath, ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: '%s' resolves outside storage", ErrInvalidKey, key)
	}
	if fullPath == ls.metaPath || strings.HasPrefix(fullPath, ls.metaPath+string(filepath.Separator)) ||
		fullPath == ls.tempPath || strings.HasPrefix(fullPath, ls.tempPath+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: '%s' is reserved", ErrInvalidKey, key)
	}
	return fullPath, nil
}

// describe prefers the sidecar written by Put and falls back to sniffing for blobs placed by hand.
func (ls *LocalStorage) describe(key, fullPath string, stat fs.FileInfo) ObjectInfo {
	info := ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime().UTC(),
	}

	if meta, err := ls.readMeta(fullPath); err == nil && meta.Size == stat.Size() {
		info.ContentType = meta.ContentType
		info.ETag = meta.ETag
		return info
	}

	info.ETag = fmt.Sprintf(`"%x-%x"`, stat.ModTime().UnixNano(), stat.Size())
	if mt, err := mimetype.DetectFile(fullPath); err == nil {
		info.ContentType = mt.String()
	}
	return info
}

func (ls *LocalStorage) metaFile(fullPath string) string {
	rel, _ := filepath.Rel(ls.basePath, fullPath)
	return filepath.Join(ls.metaPath, rel+".json")
}

func (ls *LocalStorage) readMeta(fullPath string) (localMeta, error) {
	var meta localMeta
	raw, err := os.ReadFile(ls.metaFile(fullPath))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(raw, &meta)
	return meta, err
}

func (ls *LocalStorage) writeMeta(key string, meta localMeta) error {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return err
	}
	metaPath := ls.metaFile(fullPath)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return fmt.Errorf("failed to create sidecar directory for '%s': %w", key, err)
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode sidecar for '%s': %w", key, err)
	}
	if err := os.WriteFile(metaPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write sidecar for '%s': %w", key, err)
	}
	return nil
}
