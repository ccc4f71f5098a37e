package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/glowbook/errors"
)

// fakeS3 is a path-style S3 endpoint keeping objects in memory.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	buckets  map[string]bool
	policies map[string]string
}

func newFakeS3(t *testing.T) (*fakeS3, *Store) {
	t.Helper()
	f := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, buckets: map[string]bool{}, policies: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	s, err := NewStore(context.Background(), Config{
		Region:    "eu-central-1",
		Endpoint:  srv.URL,
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	return f, s
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	body, _ := io.ReadAll(r.Body)

	if key == "" {
		switch {
		case r.Method == http.MethodPut && r.URL.Query().Has("policy"):
			f.policies[bucket] = string(body)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut:
			f.buckets[bucket] = true
			w.Header().Set("Location", "/"+bucket)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		f.objects[path] = body
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", f.types[path])
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	f, s := newFakeS3(t)

	if err := s.Put(ctx, "media", "salons/s1.jpg", strings.NewReader("jpg"), "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	if string(f.objects["media/salons/s1.jpg"]) != "jpg" || f.types["media/salons/s1.jpg"] != "image/jpeg" {
		t.Errorf("stored = %q (%s)", f.objects["media/salons/s1.jpg"], f.types["media/salons/s1.jpg"])
	}

	rc, err := s.Get(ctx, "media", "salons/s1.jpg")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "jpg" {
		t.Errorf("Get() = %q", data)
	}

	ok, err := s.Exists(ctx, "media", "salons/s1.jpg")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "media", "salons/s1.jpg"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, "media", "salons/s1.jpg")
	if err != nil || ok {
		t.Errorf("Exists(deleted) = %v, %v", ok, err)
	}
	if _, err := s.Get(ctx, "media", "salons/s1.jpg"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Get(deleted) error = %v", err)
	}
}

func TestCreatePublicBucket(t *testing.T) {
	f, s := newFakeS3(t)
	if err := s.CreateBucket(context.Background(), "avatars", true); err != nil {
		t.Fatal(err)
	}
	if !f.buckets["avatars"] {
		t.Error("bucket not created")
	}
	if p := f.policies["avatars"]; !strings.Contains(p, "arn:aws:s3:::avatars/*") || !strings.Contains(p, "s3:GetObject") {
		t.Errorf("policy = %s", p)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		s    Store
		want string
	}{
		{"public", Store{publicURL: "https://cdn.example.com", region: "eu-central-1"}, "https://cdn.example.com/media/a%20b.png"},
		{"endpoint", Store{endpoint: "http://minio:9000", pathStyle: true}, "http://minio:9000/media/a%20b.png"},
		{"aws virtual host", Store{region: "eu-central-1"}, "https://media.s3.eu-central-1.amazonaws.com/a%20b.png"},
		{"aws path style", Store{region: "eu-central-1", pathStyle: true}, "https://s3.eu-central-1.amazonaws.com/media/a%20b.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.URL("media", "a b.png"); got != tt.want {
				t.Errorf("URL() = %s, want %s", got, tt.want)
			}
		})
	}
}
