package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
)

// Adapter exposes a Store as cloud.Storage.
type Adapter struct {
	backend string
	store   Store
	log     *logger.Logger
}

// NewAdapter wraps store for the named backend. log may be nil.
func NewAdapter(backend string, store Store, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{backend: backend, store: store, log: log.WithComponent("storage")}
}

// Store returns the wrapped store.
func (a *Adapter) Store() Store { return a.store }

func (a *Adapter) key(bucket, path string) (string, string, error) {
	bucket = strings.Trim(bucket, "/")
	if bucket == "" {
		return "", "", errors.MissingField("bucket")
	}
	key := CleanKey(path)
	if key == "" {
		return "", "", errors.MissingField("path")
	}
	return bucket, key, nil
}

// Upload stores body and returns the object's public URL.
func (a *Adapter) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	bucket, key, err := a.key(bucket, path)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.store.Put(ctx, bucket, key, body, contentType); err != nil {
		return "", a.wrap(err)
	}
	a.log.Debug("object stored", logger.Fields("bucket", bucket, "key", key))
	return a.store.URL(bucket, key), nil
}

func (a *Adapter) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	bucket, key, err := a.key(bucket, path)
	if err != nil {
		return nil, err
	}
	rc, err := a.store.Get(ctx, bucket, key)
	if err != nil {
		return nil, a.wrap(err)
	}
	defer rc.Close() //nolint:errcheck // read-only
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, a.wrap(err)
	}
	return buf.Bytes(), nil
}

func (a *Adapter) Delete(ctx context.Context, bucket, path string) error {
	bucket, key, err := a.key(bucket, path)
	if err != nil {
		return err
	}
	return a.wrap(a.store.Delete(ctx, bucket, key))
}

func (a *Adapter) PublicURL(bucket, path string) string {
	return a.store.URL(strings.Trim(bucket, "/"), CleanKey(path))
}

func (a *Adapter) CreateBucket(ctx context.Context, name string, public bool) error {
	name = strings.Trim(name, "/")
	if name == "" {
		return errors.MissingField("bucket")
	}
	return a.wrap(a.store.CreateBucket(ctx, name, public))
}

// wrap keeps AppErrors from the store and reports anything else as a
// backend failure.
func (a *Adapter) wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	return errors.ExternalServiceError(a.backend, err)
}

var _ cloud.Storage = (*Adapter)(nil)
