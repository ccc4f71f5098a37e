package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	return m
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad level", Config{Level: "loud", Format: "json"}},
		{"bad format", Config{Level: "info", Format: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").WithComponent("registry")

	log.Info("activated", Fields(FieldProvider, "supabase", "attempt", 2))

	m := decodeLine(t, &buf)
	if m["component"] != "registry" {
		t.Errorf("component = %v", m["component"])
	}
	if m["provider"] != "supabase" {
		t.Errorf("provider = %v", m["provider"])
	}
	if m["message"] != "activated" {
		t.Errorf("message = %v", m["message"])
	}
}

func TestErrorValuesAreStringified(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "debug").Warn("failed", map[string]interface{}{"error": errors.New("boom")})

	m := decodeLine(t, &buf)
	if m["error"] != "boom" {
		t.Errorf("error = %v", m["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	log.Error("shown")
	if buf.Len() == 0 {
		t.Fatal("error should be written at warn level")
	}
}

func TestFileOutputRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glowbook.log")
	log := New(&Config{Level: "info", Format: "json", Output: path}, "glowbook")
	log.Info("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"service":"glowbook"`) {
		t.Errorf("log file missing service field: %s", data)
	}
}

func TestFieldsIgnoresDanglingKey(t *testing.T) {
	m := Fields("a", 1, "b")
	if len(m) != 1 || m["a"] != 1 {
		t.Errorf("Fields = %v", m)
	}
}
