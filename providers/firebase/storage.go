package firebase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/logger"
)

// storage implements cloud.Storage on Firebase Storage. The project has a
// single bucket, so the contract's bucket becomes a top-level folder.
type storage struct{ p *Provider }

func (s *storage) objectName(bucket, path string) string {
	return strings.Trim(bucket, "/") + "/" + strings.TrimLeft(path, "/")
}

func (s *storage) base() string {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	return s.p.creds.storageURL + "/b/" + url.PathEscape(s.p.creds.storageBucket) + "/o"
}

func (s *storage) objectURL(bucket, path string) string {
	return s.base() + "/" + url.PathEscape(s.objectName(bucket, path))
}

func (s *storage) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := s.objectName(bucket, path)
	_, err := s.p.client().Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    s.base(),
		Query:   url.Values{"uploadType": {"media"}, "name": {name}},
		Headers: map[string]string{"Content-Type": contentType},
		Body:    body,
	})
	if err != nil {
		return "", httpclient.ToAppError(backend, "object", name, err)
	}
	return s.PublicURL(bucket, path), nil
}

func (s *storage) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	resp, err := s.p.client().Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    s.objectURL(bucket, path),
		Query:   url.Values{"alt": {"media"}},
		Headers: map[string]string{"Accept": "*/*"},
	})
	if err != nil {
		return nil, httpclient.ToAppError(backend, "object", s.objectName(bucket, path), err)
	}
	return resp.Body, nil
}

func (s *storage) Delete(ctx context.Context, bucket, path string) error {
	_, err := s.p.client().Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: s.objectURL(bucket, path)})
	return httpclient.ToAppError(backend, "object", s.objectName(bucket, path), err)
}

func (s *storage) PublicURL(bucket, path string) string {
	return s.objectURL(bucket, path) + "?alt=media"
}

// CreateBucket does nothing: folders exist once an object is written.
func (s *storage) CreateBucket(_ context.Context, name string, _ bool) error {
	s.p.log.Debug("bucket creation skipped, folders are implicit", logger.Fields("bucket", name))
	return nil
}
