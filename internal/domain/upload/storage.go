// internal/domain/upload/storage.go
package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UploadOptions describes where and how an object is stored
type UploadOptions struct {
	PublicID  string // without folder or extension
	Folder    string
	Extension string // including the dot
	MimeType  string
}

// StoredObject is what a storage backend reports back
type StoredObject struct {
	PublicID string
	URL      string
	Width    int
	Height   int
	Bytes    int64
}

// Storage persists uploaded images
type Storage interface {
	Name() string
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*StoredObject, error)
	Delete(ctx context.Context, publicID string) error
}

// LocalStorage writes files below a directory served under /uploads
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates a disk storage rooted at dir
func NewLocalStorage(dir, baseURL string) *LocalStorage {
	return &LocalStorage{root: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name identifies the provider on upload records
func (s *LocalStorage) Name() string { return "local" }

// Upload saves r to <root>/<folder>/<public id><ext>
func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*StoredObject, error) {
	publicID := path.Join(opts.Folder, opts.PublicID)
	relativePath := publicID + opts.Extension
	fullPath, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	var head bytes.Buffer
	n, err := io.Copy(dst, io.TeeReader(r, &head))
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	obj := &StoredObject{
		PublicID: publicID,
		URL:      s.baseURL + "/" + relativePath,
		Bytes:    n,
	}
	if cfg, _, err := image.DecodeConfig(&head); err == nil {
		obj.Width, obj.Height = cfg.Width, cfg.Height
	}
	return obj, nil
}

// Delete removes every file stored under publicID
func (s *LocalStorage) Delete(ctx context.Context, publicID string) error {
	pattern, err := s.resolve(publicID + ".*")
	if err != nil {
		return err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return nil
}

// resolve joins rel onto the root and refuses paths that escape it
func (s *LocalStorage) resolve(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	root := filepath.Clean(s.root)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", rel)
	}
	return full, nil
}
