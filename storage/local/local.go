// Package local stores objects on the local filesystem under
// base_path/{bucket}/{key}.
package local

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/storage"
)

// Store implements storage.Store using the local filesystem.
type Store struct {
	basePath  string
	publicURL string
}

// NewStore creates the base directory and returns a store rooted there.
func NewStore(cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Store{basePath: abs, publicURL: strings.TrimRight(cfg.PublicBaseURL, "/")}, nil
}

// BasePath returns the absolute root directory.
func (s *Store) BasePath() string { return s.basePath }

// path resolves bucket/key below the base directory.
func (s *Store) path(bucket, key string) string {
	return filepath.Join(s.basePath, storage.CleanKey(bucket), filepath.FromSlash(storage.CleanKey(key)))
}

// Put writes data from reader to a local file.
func (s *Store) Put(_ context.Context, bucket, key string, reader io.Reader, _ string) error {
	fullPath := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()           //nolint:errcheck // already failing
		os.Remove(tmp.Name()) //nolint:errcheck // best effort
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // best effort
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	return nil
}

// Get opens the local file for bucket/key.
func (s *Store) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("object", bucket+"/"+key)
		}
		return nil, fmt.Errorf("storage: open file: %w", err)
	}
	return f, nil
}

// Delete removes a local file. Returns nil if the file does not exist.
func (s *Store) Delete(_ context.Context, bucket, key string) error {
	if err := os.Remove(s.path(bucket, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// Exists checks whether a local file exists.
func (s *Store) Exists(_ context.Context, bucket, key string) (bool, error) {
	_, err := os.Stat(s.path(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat file: %w", err)
	}
	return true, nil
}

// URL returns PublicBaseURL/bucket/key, or a file:// URL without one.
func (s *Store) URL(bucket, key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + url.PathEscape(bucket) + "/" + escapeKey(storage.CleanKey(key))
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(s.path(bucket, key))}
	return u.String()
}

// CreateBucket creates the bucket directory. Local buckets are always
// readable through URL, so public is ignored.
func (s *Store) CreateBucket(_ context.Context, name string, _ bool) error {
	if err := os.MkdirAll(filepath.Join(s.basePath, storage.CleanKey(name)), 0o750); err != nil {
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	return nil
}

// List returns metadata for files in bucket whose key starts with prefix.
func (s *Store) List(_ context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	root := filepath.Join(s.basePath, storage.CleanKey(bucket))
	var files []storage.ObjectInfo

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		ct := mime.TypeByExtension(filepath.Ext(path))
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, storage.ObjectInfo{
			Bucket:       bucket,
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ct,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []storage.ObjectInfo{}, nil
		}
		return nil, fmt.Errorf("storage: list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// compile-time check
var _ storage.Store = (*Store)(nil)
