package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/glowbook/httpclient"
)

// storage implements cloud.Storage on Supabase Storage. Bucket management
// uses the service key when one is configured.
type storage struct{ p *Provider }

func objectPath(bucket, path string) string {
	return "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func escapePath(path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (s *storage) adminAuth() *httpclient.AuthConfig {
	if key := s.p.creds.serviceKey; key != "" {
		return httpclient.BearerAuth(key)
	}
	return nil
}

func (s *storage) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.p.api().Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    objectPath(bucket, path),
		Headers: map[string]string{"Content-Type": contentType, "x-upsert": "true"},
		Body:    body,
	})
	if err != nil {
		return "", httpclient.ToAppError(backend, "object", bucket+"/"+path, err)
	}
	return s.PublicURL(bucket, path), nil
}

func (s *storage) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	resp, err := s.p.api().Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    objectPath(bucket, path),
		Headers: map[string]string{"Accept": "*/*"},
	})
	if err != nil {
		return nil, httpclient.ToAppError(backend, "object", bucket+"/"+path, err)
	}
	return resp.Body, nil
}

func (s *storage) Delete(ctx context.Context, bucket, path string) error {
	_, err := s.p.api().Do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   "/storage/v1/object/" + url.PathEscape(bucket),
		Body:   map[string][]string{"prefixes": {strings.TrimLeft(path, "/")}},
	})
	return httpclient.ToAppError(backend, "object", bucket+"/"+path, err)
}

func (s *storage) PublicURL(bucket, path string) string {
	return s.p.creds.url + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func (s *storage) CreateBucket(ctx context.Context, name string, public bool) error {
	_, err := s.p.api().Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/storage/v1/bucket",
		Body:   map[string]any{"id": name, "name": name, "public": public},
		Auth:   s.adminAuth(),
	})
	return httpclient.ToAppError(backend, "bucket", name, err)
}
