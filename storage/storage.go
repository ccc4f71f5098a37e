// Package storage provides the object stores behind the rest and local
// providers and adapts them to cloud.Storage.
//
// # Backends
//
//   - storage/s3: Amazon S3 and S3-compatible services (MinIO, R2)
//   - storage/local: the local filesystem
package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Bucket       string
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Store defines bucket-aware object storage operations.
type Store interface {
	// Put writes data from reader to bucket/key.
	Put(ctx context.Context, bucket, key string, reader io.Reader, contentType string) error

	// Get returns a reader for bucket/key. The caller closes it.
	// A missing object yields an errors.NotFound AppError.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes bucket/key. Returns nil if the object does not exist.
	Delete(ctx context.Context, bucket, key string) error

	// Exists checks whether bucket/key exists.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// URL returns the public URL of bucket/key.
	URL(bucket, key string) string

	// CreateBucket creates a bucket, optionally readable by anyone.
	// Creating an existing bucket is not an error.
	CreateBucket(ctx context.Context, name string, public bool) error

	// List returns metadata for objects in bucket whose key starts with prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// CleanKey strips leading slashes and dot segments from an object key.
func CleanKey(key string) string {
	parts := strings.Split(strings.ReplaceAll(key, "\\", "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
