package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/server"
	"github.com/kbukum/glowbook/server/endpoint"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg server.Config
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.MaxBodySize != "10MB" || len(cfg.CORS.AllowedOrigins) == 0 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*server.Config)
	}{
		{"port", func(c *server.Config) { c.Port = 70000 }},
		{"read timeout", func(c *server.Config) { c.ReadTimeout = -1 }},
		{"body size", func(c *server.Config) { c.MaxBodySize = "huge" }},
		{"short operator secret", func(c *server.Config) { c.OperatorSecret = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"app error", apperrors.NotFound("salon", "s1"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped app error", errors.Join(errors.New("context"), apperrors.Conflict("busy")), http.StatusConflict, "CONFLICT"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			server.RespondWithError(c, tt.err)
			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if string(body.Error.Code) != tt.wantBody {
				t.Errorf("code = %s, want %s", body.Error.Code, tt.wantBody)
			}
		})
	}
}

func TestRespondListNeverNull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	server.RespondList[string](c, nil)
	if got := rr.Body.String(); got != `{"data":[],"meta":{"total":0}}` {
		t.Errorf("body = %s", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	status := observability.HealthStatusUp
	checker := func(context.Context) *observability.ServiceHealth {
		sh := observability.NewServiceHealth("glowbook", "test")
		sh.Add(observability.Health{Name: "cloud", Status: status})
		return sh
	}
	e := gin.New()
	endpoint.Register(e, "glowbook", checker)

	tests := []struct {
		status observability.HealthStatus
		path   string
		want   int
	}{
		{observability.HealthStatusUp, "/health", http.StatusOK},
		{observability.HealthStatusDegraded, "/health", http.StatusOK},
		{observability.HealthStatusDown, "/health", http.StatusServiceUnavailable},
		{observability.HealthStatusDegraded, "/health/ready", http.StatusOK},
		{observability.HealthStatusDown, "/health/ready", http.StatusServiceUnavailable},
		{observability.HealthStatusDown, "/health/live", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+tt.path, func(t *testing.T) {
			status = tt.status
			rr := httptest.NewRecorder()
			e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if rr.Code != tt.want {
				t.Errorf("code = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestServerLifecycle(t *testing.T) {
	cfg := server.Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	srv := server.New(cfg, logger.Nop())
	srv.ApplyMiddleware()
	srv.Engine().GET("/ping", func(c *gin.Context) { server.RespondOK(c, "pong") })

	ctx := context.Background()
	if h := srv.Health(ctx); h.Status != observability.HealthStatusDown {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := srv.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if h := srv.Health(ctx); h.Status != observability.HealthStatusUp {
		t.Errorf("health while serving = %s", h.Status)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	var body server.DataResponse
	err = json.NewDecoder(resp.Body).Decode(&body)
	_ = resp.Body.Close()
	if err != nil || body.Data != "pong" {
		t.Errorf("body = %+v, err = %v", body, err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing request id")
	}

	if err := srv.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if h := srv.Health(ctx); h.Status != observability.HealthStatusDown {
		t.Errorf("health after stop = %s", h.Status)
	}
}
