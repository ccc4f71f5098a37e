package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/server/middleware"
)

func engine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(mw...)
	return e
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestRecovery(t *testing.T) {
	e := engine(middleware.Recovery(logger.Nop()))
	e.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(*gin.Context) { panic("test panic") })

	if rr := serve(e, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr := serve(e, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" || strings.Contains(body.Error.Message, "test panic") {
		t.Fatalf("unexpected error body: %+v", body.Error)
	}
}

func TestRequestID(t *testing.T) {
	e := engine(middleware.RequestID())
	e.GET("/", func(c *gin.Context) {
		if c.GetString(middleware.RequestIDKey) == "" {
			t.Error("expected request id in context")
		}
		c.Status(http.StatusOK)
	})

	rr := serve(e, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected X-Request-Id in response headers")
	}

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "custom-id-123")
	if got := serve(e, req).Header().Get(middleware.RequestIDHeader); got != "custom-id-123" {
		t.Fatalf("expected custom-id-123, got %s", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        middleware.CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{
			name:       "allowed origin",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"https://example.com"}, AllowedMethods: []string{"GET", "POST"}},
			method:     http.MethodGet,
			origin:     "https://example.com",
			wantOrigin: "https://example.com",
			wantCode:   http.StatusOK,
		},
		{
			name:     "disallowed origin",
			cfg:      middleware.CORSConfig{AllowedOrigins: []string{"https://allowed.com"}},
			method:   http.MethodGet,
			origin:   "https://evil.com",
			wantCode: http.StatusOK,
		},
		{
			name:       "preflight",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"*"}},
			method:     http.MethodOptions,
			origin:     "https://app.example.com",
			wantOrigin: "https://app.example.com",
			wantCode:   http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engine(middleware.CORS(tt.cfg))
			e.Any("/api/salons", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/api/salons", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			rr := serve(e, req)
			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 10 * 1024 * 1024, false},
		{"512", 512, false},
		{"1KB", 1024, false},
		{"10mb", 10 * 1024 * 1024, false},
		{"2GB", 2 * 1024 * 1024 * 1024, false},
		{"lots", 0, true},
		{"-1MB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := middleware.ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBodySizeLimit(t *testing.T) {
	e := engine(middleware.BodySizeLimit("1KB"))
	e.POST("/upload", func(c *gin.Context) {
		var v map[string]string
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	small := `{"a":"b"}`
	if rr := serve(e, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(small))); rr.Code != http.StatusOK {
		t.Fatalf("small body: %d", rr.Code)
	}
	big := `{"a":"` + strings.Repeat("x", 2048) + `"}`
	if rr := serve(e, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(big))); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: %d", rr.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf strings.Builder
	log := logger.NewWriter(&buf, "debug")
	e := engine(middleware.RequestID(), middleware.RequestLogger(log))
	e.POST("/api/appointments", func(c *gin.Context) { c.Status(http.StatusCreated) })
	e.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(e, httptest.NewRequest(http.MethodPost, "/api/appointments", http.NoBody))
	if !strings.Contains(buf.String(), `"path":"/api/appointments"`) || !strings.Contains(buf.String(), `"status":201`) {
		t.Fatalf("request not logged: %s", buf.String())
	}

	buf.Reset()
	serve(e, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Errorf("health check logged: %s", buf.String())
	}
}
